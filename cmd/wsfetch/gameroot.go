package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mattjoyce/wsfetch/internal/config"
	"github.com/mattjoyce/wsfetch/internal/settings"
	"github.com/mattjoyce/wsfetch/internal/storage"
)

func runGameRootNoun(args []string) int {
	if len(args) < 1 {
		printGameRootNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printGameRootNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "set":
		return runGameRootSet(actionArgs)
	case "show":
		return runGameRootShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown gameroot action: %s\n", action)
		return 1
	}
}

// openSettings opens the state database for commands that only need the
// settings table.
func openSettings(ctx context.Context, cfg *config.Config) (*sql.DB, *settings.SQLiteStore, error) {
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open state database %s: %w", cfg.State.Path, err)
	}
	return db, settings.NewSQLiteStore(db), nil
}

func runGameRootSet(args []string) int {
	fs := flag.NewFlagSet("gameroot set", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: wsfetch gameroot set <dir>")
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	db, store, err := openSettings(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer db.Close()

	dir, err := settings.NewResolver(cfg.Relocate.ScenariosSubpath).SelectGameRoot(ctx, store, fs.Arg(0))
	if err != nil {
		if errors.Is(err, settings.ErrInvalidGameRoot) {
			fmt.Fprintf(os.Stderr, "Not a game root: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Failed to save game root: %v\n", err)
		return 1
	}

	fmt.Printf("Game root saved.\nScenarios: %s\n", dir)
	return 0
}

type gameRootView struct {
	GameRoot     string `json:"game_root"`
	ScenariosDir string `json:"scenarios_dir,omitempty"`
	Valid        bool   `json:"valid"`
	Error        string `json:"error,omitempty"`
}

func runGameRootShow(args []string) int {
	fs := flag.NewFlagSet("gameroot show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output as JSON")
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
	db, store, err := openSettings(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer db.Close()

	dest, err := settings.NewResolver(cfg.Relocate.ScenariosSubpath).LoadDestination(ctx, store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read game root: %v\n", err)
		return 1
	}

	view := gameRootView{GameRoot: dest.GameRoot, ScenariosDir: dest.ScenariosDir, Valid: dest.Valid()}
	if dest.Err != nil {
		view.Error = dest.Err.Error()
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(view, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	if !dest.Configured() {
		fmt.Println("No game root selected. Run `wsfetch gameroot set <dir>`.")
		return 0
	}
	fmt.Printf("Game root: %s\n", view.GameRoot)
	if view.Valid {
		fmt.Printf("Scenarios: %s\n", view.ScenariosDir)
	} else {
		fmt.Printf("Status:    invalid (%s)\n", view.Error)
	}
	return 0
}

func printGameRootNounHelp(w io.Writer) {
	fmt.Fprint(w, `Usage: wsfetch gameroot <action> [flags]

Actions:
  set <dir>    Validate and save the game installation directory
  show         Show the saved game root and scenarios directory (--json)
`)
}
