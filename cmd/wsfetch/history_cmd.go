package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mattjoyce/wsfetch/internal/history"
	"github.com/mattjoyce/wsfetch/internal/storage"
)

func runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	limit := fs.Int("limit", 20, "Number of runs to show")
	runID := fs.String("run", "", "Show per-item detail for one run")
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
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open state database: %v\n", err)
		return 1
	}
	defer db.Close()
	store := history.New(db)

	if *runID != "" {
		return printRunDetail(ctx, store, *runID, *jsonOut)
	}

	runs, err := store.ListRuns(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
		return 1
	}
	if *jsonOut {
		data, _ := json.MarshalIndent(runs, "", "  ")
		fmt.Println(string(data))
		return 0
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return 0
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tACCOUNT\tSTATUS\tITEMS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Account, r.Status, r.CompletedJobs, r.TotalJobs)
	}
	_ = tw.Flush()
	return 0
}

type runDetail struct {
	Run  *history.Run        `json:"run"`
	Jobs []history.JobRecord `json:"jobs"`
}

func printRunDetail(ctx context.Context, store *history.Store, runID string, jsonOut bool) int {
	run, err := store.GetRun(ctx, runID)
	if errors.Is(err, history.ErrRunNotFound) {
		fmt.Fprintf(os.Stderr, "Run %s not found\n", runID)
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load run: %v\n", err)
		return 1
	}
	jobs, err := store.ListJobs(ctx, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load jobs: %v\n", err)
		return 1
	}

	if jsonOut {
		data, _ := json.MarshalIndent(runDetail{Run: run, Jobs: jobs}, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("Run:         %s\n", run.ID)
	fmt.Printf("Account:     %s\n", run.Account)
	fmt.Printf("Status:      %s\n", run.Status)
	fmt.Printf("Destination: %s\n", run.Destination)
	fmt.Printf("Started:     %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.FinishedAt != nil {
		fmt.Printf("Finished:    %s\n", run.FinishedAt.Local().Format(time.DateTime))
	}
	fmt.Println()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tITEM\tSTATUS\tEXIT\tMOVED\tERROR")
	for _, j := range jobs {
		exit := "-"
		if j.ExitCode != nil {
			exit = fmt.Sprintf("%d", *j.ExitCode)
		}
		msg := ""
		if j.LastError != nil {
			msg = *j.LastError
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", j.Seq, j.WorkshopID, j.Status, exit, j.MovedCount, msg)
	}
	_ = tw.Flush()
	return 0
}
