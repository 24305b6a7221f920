package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

func runAccountsNoun(args []string) int {
	if len(args) < 1 {
		printAccountsNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printAccountsNounHelp(os.Stdout)
		return 0
	}

	switch args[0] {
	case "list":
		return runAccountsList(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown accounts action: %s\n", args[0])
		return 1
	}
}

type accountView struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Secret  string `json:"secret"`
	Default bool   `json:"default"`
}

func runAccountsList(args []string) int {
	fs := flag.NewFlagSet("accounts list", flag.ContinueOnError)
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
	creds, err := cfg.Credentials()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid accounts: %v\n", err)
		return 1
	}

	unresolved := cfg.UnresolvedSecrets()
	defaultID := cfg.AccountID("")
	views := make([]accountView, 0, creds.Len())
	for _, a := range creds.Accounts() {
		status := "set"
		if v, ok := unresolved[a.ID]; ok {
			status = fmt.Sprintf("unresolved ${%s}", v)
		} else if a.Secret.IsZero() {
			status = "missing"
		}
		views = append(views, accountView{
			ID:      a.ID,
			Label:   a.DisplayName(),
			Secret:  status,
			Default: a.ID == defaultID,
		})
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(views, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	if len(views) == 0 {
		fmt.Println("No accounts configured.")
		return 0
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tSECRET\tDEFAULT")
	for _, v := range views {
		def := ""
		if v.Default {
			def = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ID, v.Label, v.Secret, def)
	}
	_ = tw.Flush()
	return 0
}

func printAccountsNounHelp(w io.Writer) {
	fmt.Fprint(w, `Usage: wsfetch accounts list [--config <path>] [--json]

Secrets are never printed; the SECRET column shows set, missing, or the
unresolved environment variable.
`)
}
