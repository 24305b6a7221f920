package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/wsfetch/internal/config"
)

const redactedValue = "[redacted]"

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "show":
		return runConfigShow(actionArgs)
	case "path":
		return runConfigPath(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	shown := redactConfig(cfg)

	if *jsonOut {
		data, _ := json.MarshalIndent(shown, "", "  ")
		fmt.Println(string(data))
		return 0
	}
	data, err := yaml.Marshal(shown)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Render error: %v\n", err)
		return 1
	}
	fmt.Print(string(data))
	return 0
}

// redactConfig returns a copy safe to print. Unresolved ${VAR} references are
// kept so the user can see which variable is missing.
func redactConfig(cfg *config.Config) config.Config {
	out := *cfg
	out.Accounts = make([]config.AccountConfig, len(cfg.Accounts))
	for i, a := range cfg.Accounts {
		out.Accounts[i] = a
		out.Accounts[i].Secret = redactSecret(a.Secret)
	}
	out.API.APIKey = redactSecret(cfg.API.APIKey)
	return out
}

func redactSecret(s string) string {
	if s == "" || strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return s
	}
	return redactedValue
}

func runConfigPath(args []string) int {
	fs := flag.NewFlagSet("config path", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	if cfg.SourcePath == "" {
		fmt.Println("(defaults)")
		return 0
	}
	fmt.Println(cfg.SourcePath)
	return 0
}

func printConfigNounHelp(w io.Writer) {
	fmt.Fprint(w, `Usage: wsfetch config <action> [flags]

Actions:
  show    Print the effective configuration with secrets redacted (--json)
  path    Print the config file in use, or (defaults)
`)
}
