// Package pipeline drives a download run: resolve input, then for each item
// run the downloader and relocate its output, publishing progress as it goes.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/wsfetch/internal/credentials"
	"github.com/mattjoyce/wsfetch/internal/events"
	"github.com/mattjoyce/wsfetch/internal/history"
	"github.com/mattjoyce/wsfetch/internal/log"
	"github.com/mattjoyce/wsfetch/internal/relocate"
	"github.com/mattjoyce/wsfetch/internal/runner"
	"github.com/mattjoyce/wsfetch/internal/workshop"
)

// Resolver turns input lines into workshop IDs.
type Resolver interface {
	Resolve(ctx context.Context, lines []string) ([]workshop.ID, []workshop.Diagnostic)
}

// JobRunner runs the downloader for one job.
type JobRunner interface {
	Execute(ctx context.Context, job runner.Job) (runner.Outcome, error)
}

// Relocator moves artifacts out of a scratch directory and removes it.
type Relocator interface {
	Relocate(ctx context.Context, scratchDir, destDir string) (relocate.Result, error)
}

// Recorder persists run history. Optional.
type Recorder interface {
	StartRun(ctx context.Context, run history.Run) error
	SetTotal(ctx context.Context, runID string, total int) error
	RecordJob(ctx context.Context, rec history.JobRecord) error
	FinishRun(ctx context.Context, runID, status string) error
}

// runScoped is implemented by runners that cache lookups for one run.
type runScoped interface {
	BeginRun()
}

type Options struct {
	Parser    Resolver
	Runner    JobRunner
	Relocator Relocator
	Recorder  Recorder
	Hub       *events.Hub
	Logger    *slog.Logger
}

// Request starts a run.
type Request struct {
	Lines   []string
	Account string
	// Credentials is consulted once at start; the orchestrator keeps no
	// process-wide credential state.
	Credentials *credentials.Table
	// Destination is the scenarios directory files are moved into.
	Destination string
}

// Orchestrator runs at most one download run at a time.
type Orchestrator struct {
	parser    Resolver
	runner    JobRunner
	relocator Relocator
	recorder  Recorder
	hub       *events.Hub
	logger    *slog.Logger

	mu       sync.Mutex
	state    State
	canceled bool
	cancel   context.CancelFunc
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Parser == nil || opts.Runner == nil || opts.Relocator == nil {
		return nil, fmt.Errorf("pipeline needs a parser, runner and relocator")
	}
	hub := opts.Hub
	if hub == nil {
		hub = events.NewHub(256)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithComponent("pipeline")
	}
	return &Orchestrator{
		parser:    opts.Parser,
		runner:    opts.Runner,
		relocator: opts.Relocator,
		recorder:  opts.Recorder,
		hub:       hub,
		logger:    logger,
		state:     State{Status: StatusIdle},
	}, nil
}

func (o *Orchestrator) Hub() *events.Hub { return o.hub }

// State returns a snapshot of the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Run is a handle on a started run.
type Run struct {
	ID string

	done    chan struct{}
	summary Summary
	err     error
}

func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes. The error is ErrNoValidInput when no
// item could be resolved; per-item failures are not errors.
func (r *Run) Wait() (Summary, error) {
	<-r.done
	return r.summary, r.err
}

// Start validates req and launches the run on its own goroutine. The run is
// detached from ctx cancellation; use Cancel to stop it.
func (o *Orchestrator) Start(ctx context.Context, req Request) (*Run, error) {
	account, err := o.preflight(req)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.state.Status.Active() {
		o.mu.Unlock()
		return nil, ErrRunInProgress
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &Run{ID: uuid.NewString(), done: make(chan struct{})}
	o.state = State{Status: StatusRunning, RunID: run.ID}
	o.canceled = false
	o.cancel = cancel
	o.mu.Unlock()

	go o.execute(runCtx, cancel, run, req, account)
	return run, nil
}

// Cancel requests cancellation of the active run. No further items start and
// the in-flight downloader is terminated. Files already moved stay in place.
// It reports whether a run was active.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.state.Status.Active() {
		return false
	}
	o.canceled = true
	o.state.Status = StatusCanceling
	if o.cancel != nil {
		o.cancel()
	}
	return true
}

func (o *Orchestrator) preflight(req Request) (credentials.Account, error) {
	dest := strings.TrimSpace(req.Destination)
	if dest == "" {
		return credentials.Account{}, fmt.Errorf("%w: no destination directory configured", ErrConfiguration)
	}
	info, err := os.Stat(dest)
	if err != nil || !info.IsDir() {
		return credentials.Account{}, fmt.Errorf("%w: destination %s is not a directory", ErrConfiguration, dest)
	}

	account, ok := req.Credentials.Lookup(req.Account)
	if !ok {
		return credentials.Account{}, fmt.Errorf("%w: unknown account %q", ErrConfiguration, req.Account)
	}

	for _, line := range req.Lines {
		if strings.TrimSpace(line) != "" {
			return account, nil
		}
	}
	return credentials.Account{}, ErrNoInput
}

func (o *Orchestrator) isCanceled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.canceled
}

func (o *Orchestrator) execute(ctx context.Context, cancel context.CancelFunc, run *Run, req Request, account credentials.Account) {
	defer close(run.done)
	defer cancel()

	logger := log.WithRun(o.logger, run.ID)
	bg := context.WithoutCancel(ctx)
	dest := strings.TrimSpace(req.Destination)

	o.hub.Publish(EventRunStarted, RunStartedEvent{
		RunID:       run.ID,
		Account:     account.ID,
		Destination: dest,
		Lines:       len(req.Lines),
	})
	o.record(logger, "start run", func() error {
		return o.recorder.StartRun(bg, history.Run{ID: run.ID, Account: account.ID, Destination: dest})
	})

	ids, diags := o.parser.Resolve(ctx, req.Lines)
	for _, d := range diags {
		run.summary.Diagnostics = append(run.summary.Diagnostics, d.String())
		o.emit(logger, run.ID, severityLevel(d.Severity), "", d.String())
	}

	run.summary.RunID = run.ID
	if o.isCanceled() {
		o.emit(logger, run.ID, LevelWarn, "", "Download canceled.")
		run.summary.Outcome = OutcomeCanceled
		o.finish(logger, run, StatusCanceled)
		return
	}
	if len(ids) == 0 {
		o.emit(logger, run.ID, LevelError, "", "No valid IDs found.")
		run.summary.Outcome = OutcomeNoValidInput
		run.err = ErrNoValidInput
		o.finish(logger, run, StatusIdle)
		return
	}

	total := len(ids)
	o.mu.Lock()
	o.state.TotalJobs = total
	o.mu.Unlock()
	run.summary.TotalJobs = total
	o.record(logger, "set total", func() error { return o.recorder.SetTotal(bg, run.ID, total) })
	o.emit(logger, run.ID, LevelInfo, "", fmt.Sprintf("Total items to download: %d", total))

	if rs, ok := o.runner.(runScoped); ok {
		rs.BeginRun()
	}

	for i, id := range ids {
		if o.isCanceled() {
			break
		}

		moved, failed := o.runJob(ctx, logger, run.ID, i, total, id, account, dest)
		run.summary.Moved += moved
		if failed {
			run.summary.Failed++
		}

		o.mu.Lock()
		o.state.CompletedJobs++
		completed := o.state.CompletedJobs
		o.mu.Unlock()
		run.summary.Completed = completed

		o.hub.Publish(EventProgress, ProgressEvent{
			RunID:     run.ID,
			Completed: completed,
			Total:     total,
			Percent:   percent(completed, total),
		})
	}

	if o.isCanceled() {
		o.emit(logger, run.ID, LevelWarn, "", "Download canceled.")
	} else {
		o.emit(logger, run.ID, LevelInfo, "", "All downloads completed.")
	}
	o.finish(logger, run, "")
}

// finish settles the terminal status and publishes the finished event. When
// status is empty it is derived from the cancel flag under the same lock
// Cancel uses, so a late Cancel can never turn a finished run into a canceled
// one or vice versa.
func (o *Orchestrator) finish(logger *slog.Logger, run *Run, status Status) {
	o.mu.Lock()
	canceled := o.canceled
	if status == "" {
		status = StatusCompleted
		if canceled {
			status = StatusCanceled
		}
	}
	if run.summary.Outcome == "" {
		run.summary.Outcome = OutcomeCompleted
		if canceled {
			run.summary.Outcome = OutcomeCanceled
		}
	}
	o.state.Status = status
	o.cancel = nil
	snapshot := o.state
	o.mu.Unlock()

	o.record(logger, "finish run", func() error {
		return o.recorder.FinishRun(context.Background(), run.ID, string(run.summary.Outcome))
	})

	logger.Info("run finished",
		"outcome", run.summary.Outcome,
		"completed", snapshot.CompletedJobs,
		"total", snapshot.TotalJobs,
		"moved", run.summary.Moved,
		"failed", run.summary.Failed,
	)
	o.hub.Publish(EventFinished, FinishedEvent{
		RunID:     run.ID,
		Outcome:   run.summary.Outcome,
		Canceled:  run.summary.Outcome == OutcomeCanceled,
		Completed: snapshot.CompletedJobs,
		Total:     snapshot.TotalJobs,
		Moved:     run.summary.Moved,
		Failed:    run.summary.Failed,
	})
}

// runJob downloads and relocates one item. It never returns an error; every
// failure is logged and reported as failed.
func (o *Orchestrator) runJob(
	ctx context.Context,
	logger *slog.Logger,
	runID string,
	index, total int,
	id workshop.ID,
	account credentials.Account,
	dest string,
) (moved int, failed bool) {
	job := runner.Job{
		ID:         uuid.NewString(),
		WorkshopID: id,
		Account:    account.ID,
		Secret:     account.Secret,
	}
	jobLogger := log.WithJob(logger, job.ID, string(id))
	started := time.Now()

	o.hub.Publish(EventJobStarted, JobEvent{RunID: runID, JobID: job.ID, WorkshopID: string(id), Index: index, Total: total})
	o.emit(jobLogger, runID, LevelInfo, string(id), fmt.Sprintf("Downloading %s (%d/%d)", id, index+1, total))

	outcome, err := o.runner.Execute(ctx, job)

	var (
		status  history.JobStatus
		lastErr string
	)
	switch {
	case errors.Is(err, runner.ErrToolNotFound):
		status = history.JobToolMissing
		lastErr = err.Error()
		o.emit(jobLogger, runID, LevelError, string(id), fmt.Sprintf("Downloader not found, skipping %s", id))
	case err != nil:
		status = history.JobFailed
		lastErr = err.Error()
		o.emit(jobLogger, runID, LevelError, string(id), fmt.Sprintf("Download of %s failed: %v", id, err))
	case outcome.Canceled:
		status = history.JobCanceled
		o.emit(jobLogger, runID, LevelWarn, string(id), fmt.Sprintf("Download of %s interrupted", id))
	case outcome.TimedOut:
		status = history.JobTimedOut
		lastErr = "downloader timed out"
		o.emit(jobLogger, runID, LevelWarn, string(id), fmt.Sprintf("Download of %s timed out", id))
	case outcome.Succeeded():
		status = history.JobSucceeded
		o.emit(jobLogger, runID, LevelInfo, string(id), fmt.Sprintf("Download of %s completed", id))
	default:
		status = history.JobFailed
		lastErr = fmt.Sprintf("downloader exited with code %d", outcome.ExitCode)
		o.emit(jobLogger, runID, LevelWarn, string(id), fmt.Sprintf("Downloader exited with code %d for %s", outcome.ExitCode, id))
	}

	var result relocate.Result
	if outcome.ScratchDir != "" {
		// Relocation also cleans up the scratch dir, so it runs even after a
		// cancel.
		var rerr error
		result, rerr = o.relocator.Relocate(context.WithoutCancel(ctx), outcome.ScratchDir, dest)
		if rerr != nil {
			o.emit(jobLogger, runID, LevelWarn, string(id), fmt.Sprintf("Relocation problems for %s: %v", id, rerr))
		}
		for _, f := range result.Files {
			o.emit(jobLogger, runID, LevelInfo, string(id), fmt.Sprintf("Moved %s to %s", f.Name, dest))
		}
		if result.MovedCount == 0 {
			o.emit(jobLogger, runID, LevelWarn, string(id), fmt.Sprintf("No scenario files found for %s", id))
		}
	}

	rec := history.JobRecord{
		ID:          job.ID,
		RunID:       runID,
		Seq:         index,
		WorkshopID:  string(id),
		Status:      status,
		MovedCount:  result.MovedCount,
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
	if outcome.ScratchDir != "" {
		code := outcome.ExitCode
		rec.ExitCode = &code
	}
	if lastErr != "" {
		rec.LastError = &lastErr
	}
	if outcome.Output != "" {
		out := outcome.Output
		rec.Output = &out
	}
	if len(result.Files) > 0 {
		if b, err := json.Marshal(result.Files); err == nil {
			rec.MovedFiles = b
		}
	}
	o.record(jobLogger, "record job", func() error { return o.recorder.RecordJob(context.WithoutCancel(ctx), rec) })

	o.hub.Publish(EventJobCompleted, JobEvent{
		RunID:      runID,
		JobID:      job.ID,
		WorkshopID: string(id),
		Index:      index,
		Total:      total,
		Status:     string(status),
		ExitCode:   rec.ExitCode,
		Moved:      result.MovedCount,
	})

	return result.MovedCount, status != history.JobSucceeded && status != history.JobCanceled
}

func (o *Orchestrator) emit(logger *slog.Logger, runID string, level Level, workshopID, msg string) {
	switch level {
	case LevelError:
		logger.Error(msg)
	case LevelWarn:
		logger.Warn(msg)
	default:
		logger.Info(msg)
	}
	o.hub.Publish(EventLog, LogEvent{RunID: runID, Level: level, Message: msg, WorkshopID: workshopID})
}

func (o *Orchestrator) record(logger *slog.Logger, what string, fn func() error) {
	if o.recorder == nil {
		return
	}
	if err := fn(); err != nil {
		logger.Warn("history write failed", "op", what, "error", err)
	}
}

func severityLevel(s workshop.Severity) Level {
	switch s {
	case workshop.SeverityError:
		return LevelError
	case workshop.SeverityWarn:
		return LevelWarn
	default:
		return LevelInfo
	}
}
