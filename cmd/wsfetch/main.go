package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage(os.Stderr)
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "run":
		if hasHelpFlag(args) {
			printRunHelp()
			return 0
		}
		return runRun(args)
	case "gameroot":
		return runGameRootNoun(args)
	case "config":
		return runConfigNoun(args)
	case "accounts":
		return runAccountsNoun(args)
	case "history":
		if hasHelpFlag(args) {
			printHistoryHelp()
			return 0
		}
		return runHistory(args)
	case "doctor":
		if hasHelpFlag(args) {
			printDoctorHelp()
			return 0
		}
		return runDoctor(args)
	case "serve":
		if hasHelpFlag(args) {
			printServeHelp()
			return 0
		}
		return runServe(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage(os.Stderr)
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: wsfetch version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("wsfetch %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if commit != "" {
		info.Commit = shortenCommit(commit)
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if t, err := time.Parse(time.RFC3339Nano, built); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `wsfetch - Steam Workshop scenario downloader

Usage:
  wsfetch <command> [flags]

Commands:
  run [ids...]          Download Workshop items and collections
  gameroot set <dir>    Select the game installation directory
  gameroot show         Show the saved game root and scenarios directory
  config show           Print the effective configuration (secrets redacted)
  config path           Print which config file is in use
  accounts list         List configured downloader accounts
  history               Show recent runs (--run <id> for item detail)
  doctor                Check downloader, game root, accounts and workspace
  serve                 Run the HTTP API
  version               Show version information
  help                  Show this help message

Every command accepts --config <path>. Without it wsfetch looks at
$WSFETCH_CONFIG, ~/.config/wsfetch/config.yaml and ./wsfetch.yaml in order.
`)
}

func printRunHelp() {
	fmt.Print(`Usage: wsfetch run [flags] [line ...]

Each line is a Workshop URL, a collection URL, or text containing an 8-10
digit item id. Lines come from arguments, --file, or stdin.

Flags:
  --config <path>    Configuration file
  --file <path>      Read lines from a file ("-" for stdin)
  --account <id>     Downloader account (default: default_account)
  --tui              Show the interactive terminal view
  -v, --verbose      Also print structured logs at the configured level
`)
}

func printHistoryHelp() {
	fmt.Print(`Usage: wsfetch history [--limit N] [--run <id>] [--json]
`)
}

func printDoctorHelp() {
	fmt.Print(`Usage: wsfetch doctor [--config <path>] [--json]

Exit code 0 when no errors were found, 1 otherwise.
`)
}

func printServeHelp() {
	fmt.Print(`Usage: wsfetch serve [--config <path>] [--listen <addr>]

Routes: GET /healthz, GET /status, POST /runs, POST /runs/cancel,
GET /events (SSE), GET /ws (websocket), GET /history.
`)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}
