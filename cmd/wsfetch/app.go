package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattjoyce/wsfetch/internal/config"
	"github.com/mattjoyce/wsfetch/internal/events"
	"github.com/mattjoyce/wsfetch/internal/history"
	"github.com/mattjoyce/wsfetch/internal/log"
	"github.com/mattjoyce/wsfetch/internal/pipeline"
	"github.com/mattjoyce/wsfetch/internal/relocate"
	"github.com/mattjoyce/wsfetch/internal/runner"
	"github.com/mattjoyce/wsfetch/internal/settings"
	"github.com/mattjoyce/wsfetch/internal/steam"
	"github.com/mattjoyce/wsfetch/internal/storage"
	"github.com/mattjoyce/wsfetch/internal/tool"
	"github.com/mattjoyce/wsfetch/internal/workshop"
	"github.com/mattjoyce/wsfetch/internal/workspace"
)

// app is the fully wired pipeline for one process.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db         *sql.DB
	settings   *settings.SQLiteStore
	gameRoots  settings.Resolver
	history    *history.Store
	locator    *tool.Locator
	workspaces workspace.Manager
	hub        *events.Hub
	orch       *pipeline.Orchestrator
}

func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp opens state and wires every pipeline component from cfg.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := log.WithComponent("main")

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return nil, fmt.Errorf("open state database %s: %w", cfg.State.Path, err)
	}

	wsManager, err := workspace.NewFSManager(cfg.WorkspaceDir())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize workspace manager: %w", err)
	}

	client, err := steam.NewClient(steam.Options{
		Endpoint:  cfg.Workshop.CollectionEndpoint,
		Timeout:   cfg.Workshop.LookupTimeout,
		CacheSize: cfg.Workshop.CacheSize,
		Logger:    log.WithComponent("steam"),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize collection client: %w", err)
	}

	locator := tool.NewLocator(cfg.Downloader.Executable, cfg.Downloader.SearchRoots...)
	run := runner.New(locator, wsManager, runner.Options{
		AppID:       cfg.Workshop.AppID,
		Timeout:     cfg.Downloader.Timeout,
		GracePeriod: cfg.Downloader.TerminationGrace,
		Logger:      log.WithComponent("runner"),
	})

	hist := history.New(db)
	hub := events.NewHub(512)
	orch, err := pipeline.New(pipeline.Options{
		Parser:    workshop.NewParser(client, log.WithComponent("parser")),
		Runner:    run,
		Relocator: relocate.New(cfg.Relocate.Extension, log.WithComponent("relocate")),
		Recorder:  hist,
		Hub:       hub,
		Logger:    log.WithComponent("pipeline"),
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		settings:   settings.NewSQLiteStore(db),
		gameRoots:  settings.NewResolver(cfg.Relocate.ScenariosSubpath),
		history:    hist,
		locator:    locator,
		workspaces: wsManager,
		hub:        hub,
		orch:       orch,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// destination reloads the saved game root and revalidates it.
func (a *app) destination(ctx context.Context) (settings.Destination, error) {
	dest, err := a.gameRoots.LoadDestination(ctx, a.settings)
	if err != nil {
		return settings.Destination{}, err
	}
	if dest.Configured() && !dest.Valid() {
		a.logger.Warn("saved game root is no longer valid", "game_root", dest.GameRoot, "error", dest.Err)
	}
	return dest, nil
}

// buildRequest resolves the account and destination for a run.
func (a *app) buildRequest(ctx context.Context, lines []string, account string) (pipeline.Request, error) {
	dest, err := a.destination(ctx)
	if err != nil {
		return pipeline.Request{}, err
	}
	switch {
	case !dest.Configured():
		return pipeline.Request{}, fmt.Errorf("%w: no game root selected; run `wsfetch gameroot set <dir>`", pipeline.ErrConfiguration)
	case !dest.Valid():
		return pipeline.Request{}, fmt.Errorf("%w: %v", pipeline.ErrConfiguration, dest.Err)
	}

	creds, err := a.cfg.Credentials()
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("%w: %v", pipeline.ErrConfiguration, err)
	}
	accountID := a.cfg.AccountID(account)
	if accountID == "" {
		return pipeline.Request{}, fmt.Errorf("%w: no account selected; pass --account or set default_account", pipeline.ErrConfiguration)
	}
	if acct, ok := creds.Lookup(accountID); ok && acct.Secret.IsZero() {
		if v, unresolved := a.cfg.UnresolvedSecrets()[accountID]; unresolved {
			return pipeline.Request{}, fmt.Errorf("%w: account %q: environment variable ${%s} is not set", pipeline.ErrConfiguration, accountID, v)
		}
	}

	return pipeline.Request{
		Lines:       lines,
		Account:     strings.TrimSpace(accountID),
		Credentials: creds,
		Destination: dest.ScenariosDir,
	}, nil
}

// cleanupScratch removes scratch directories left behind by a crash.
func (a *app) cleanupScratch(ctx context.Context) {
	if a.cfg.Workspace.StaleAfter <= 0 {
		return
	}
	report, err := a.workspaces.Cleanup(ctx, a.cfg.Workspace.StaleAfter)
	if err != nil {
		a.logger.Warn("stale scratch cleanup failed", "error", err)
		return
	}
	if report.DeletedDirs > 0 {
		a.logger.Info("removed stale scratch directories", "count", report.DeletedDirs)
	}
}
