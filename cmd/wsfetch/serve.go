package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattjoyce/wsfetch/internal/api"
	"github.com/mattjoyce/wsfetch/internal/lock"
	"github.com/mattjoyce/wsfetch/internal/log"
	"github.com/mattjoyce/wsfetch/internal/pipeline"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	listen := fs.String("listen", "", "Listen address (overrides api.listen)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *listen != "" {
		cfg.API.Listen = *listen
	}
	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer a.Close()

	pidLock, err := lock.AcquirePIDLock(cfg.LockPath())
	if err != nil {
		logger.Error("failed to acquire lock", "error", err)
		return 1
	}
	defer pidLock.Release()

	a.cleanupScratch(ctx)

	srv := api.New(api.Config{
		Listen: cfg.API.Listen,
		APIKey: cfg.API.APIKey,
	}, a.orch, a.buildRequest, a.history, a.hub, log.WithComponent("api"))

	err = srv.Start(ctx)

	if a.orch.Cancel() {
		logger.Info("canceling active run before exit")
		waitIdle(a.orch, cfg.Downloader.TerminationGrace+5*time.Second)
	}
	if err != nil {
		logger.Error("API server failed", "error", err)
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}

// waitIdle polls until the orchestrator has no active run or limit elapses.
func waitIdle(orch interface{ State() pipeline.State }, limit time.Duration) {
	deadline := time.Now().Add(limit)
	for orch.State().Status.Active() && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
}
