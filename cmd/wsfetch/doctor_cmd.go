package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/mattjoyce/wsfetch/internal/doctor"
	"github.com/mattjoyce/wsfetch/internal/settings"
	"github.com/mattjoyce/wsfetch/internal/tool"
)

func runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	var store settings.Store
	db, sqlStore, err := openSettings(ctx, cfg)
	if err == nil {
		defer db.Close()
		store = sqlStore
	}

	locator := tool.NewLocator(cfg.Downloader.Executable, cfg.Downloader.SearchRoots...)
	result := doctor.New(cfg, locator, store).Validate(ctx)

	if *jsonOut {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		printDoctorResult(result)
	}
	if !result.Valid {
		return 1
	}
	return 0
}

func printDoctorResult(result *doctor.Result) {
	if result.Downloader != "" {
		fmt.Printf("Downloader: %s\n", result.Downloader)
	}
	if result.ScenariosDir != "" {
		fmt.Printf("Scenarios:  %s\n", result.ScenariosDir)
	}
	if len(result.Errors) > 0 {
		fmt.Println("Errors:")
		for _, is := range result.Errors {
			fmt.Printf("  [%s] %s\n", is.Category, is.Message)
		}
	}
	if len(result.Warnings) > 0 {
		fmt.Println("Warnings:")
		for _, is := range result.Warnings {
			fmt.Printf("  [%s] %s\n", is.Category, is.Message)
		}
	}
	if result.Valid {
		fmt.Println("OK")
	}
}
