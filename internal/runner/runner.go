package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"

	"github.com/mattjoyce/wsfetch/internal/credentials"
	"github.com/mattjoyce/wsfetch/internal/log"
	"github.com/mattjoyce/wsfetch/internal/workshop"
	"github.com/mattjoyce/wsfetch/internal/workspace"
)

const (
	DefaultAppID = "824270"

	defaultGracePeriod = 5 * time.Second
)

// ErrToolNotFound is returned when the downloader executable cannot be located.
var ErrToolNotFound = errors.New("downloader tool not found")

// Finder locates the downloader executable.
type Finder interface {
	Find() (string, error)
	Reset()
}

// Job is one item to download.
type Job struct {
	ID         string
	WorkshopID workshop.ID
	Account    string
	Secret     credentials.Secret
}

// Outcome describes how a subprocess ended.
type Outcome struct {
	ScratchDir string
	ExitCode   int
	Canceled   bool
	TimedOut   bool
	Output     string
	Duration   time.Duration
}

// Succeeded reports a clean zero exit.
func (o Outcome) Succeeded() bool {
	return !o.Canceled && !o.TimedOut && o.ExitCode == 0
}

// Options tune a Runner. Zero values pick the defaults.
type Options struct {
	AppID string
	// Timeout bounds one subprocess. Zero means no limit.
	Timeout time.Duration
	// GracePeriod is the wait between SIGTERM and SIGKILL.
	GracePeriod time.Duration
	Logger      *slog.Logger
}

// Runner spawns the downloader for one job at a time.
type Runner struct {
	finder     Finder
	workspaces workspace.Manager
	appID      string
	timeout    time.Duration
	grace      time.Duration
	logger     *slog.Logger
}

func New(finder Finder, workspaces workspace.Manager, opts Options) *Runner {
	appID := opts.AppID
	if appID == "" {
		appID = DefaultAppID
	}
	grace := opts.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithComponent("runner")
	}
	return &Runner{
		finder:     finder,
		workspaces: workspaces,
		appID:      appID,
		timeout:    opts.Timeout,
		grace:      grace,
		logger:     logger,
	}
}

// BeginRun drops the cached executable path so each run looks it up once.
func (r *Runner) BeginRun() {
	r.finder.Reset()
}

// Execute runs the downloader for job and blocks until it exits. Canceling ctx
// terminates the subprocess.
//
// ScratchDir is set only when the downloader ran; the caller owns that
// directory afterwards. If the downloader could not be run the scratch
// directory is removed here.
func (r *Runner) Execute(ctx context.Context, job Job) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{Canceled: true}, nil
	}

	jobLogger := log.WithJob(r.logger, job.ID, string(job.WorkshopID))

	exe, err := r.finder.Find()
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrToolNotFound, err)
	}

	scratch, err := r.workspaces.Create(ctx, string(job.WorkshopID))
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{Canceled: true}, nil
		}
		return Outcome{}, fmt.Errorf("allocate scratch: %w", err)
	}

	outcome := Outcome{ScratchDir: scratch.Dir}
	start := time.Now()
	err = r.spawn(ctx, exe, job, scratch.Dir, &outcome, jobLogger)
	outcome.Duration = time.Since(start)
	if err != nil {
		if rmErr := r.workspaces.Remove(context.WithoutCancel(ctx), scratch); rmErr != nil {
			jobLogger.Warn("failed to remove scratch", "dir", scratch.Dir, "error", rmErr)
		}
		outcome.ScratchDir = ""
	}
	return outcome, err
}

func (r *Runner) args(job Job, dir string) []string {
	return []string{
		"-app", r.appID,
		"-pubfile", string(job.WorkshopID),
		"-username", job.Account,
		"-password", job.Secret.Reveal(),
		"-dir", dir,
	}
}

func (r *Runner) spawn(ctx context.Context, exe string, job Job, dir string, outcome *Outcome, logger *slog.Logger) error {
	var timeoutC <-chan time.Time
	if r.timeout > 0 {
		timer := time.NewTimer(r.timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	// Termination is managed below rather than through CommandContext.
	cmd := exec.Command(exe, r.args(job, dir)...)
	sink := newOutputSink(logger)
	cmd.Stdout = sink
	cmd.Stderr = sink
	cmd.WaitDelay = r.grace

	logger.Debug("spawning downloader",
		"exe", exe,
		"app", r.appID,
		"account", job.Account,
		"password", job.Secret,
		"dir", dir,
	)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start downloader: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	var err error
	select {
	case err = <-waitErr:
	case <-ctx.Done():
		logger.Info("download canceled, stopping downloader")
		outcome.Canceled = true
		err = r.terminate(cmd, waitErr, logger)
	case <-timeoutC:
		logger.Warn("downloader timed out, stopping", "timeout", r.timeout)
		outcome.TimedOut = true
		err = r.terminate(cmd, waitErr, logger)
	}

	sink.Flush()
	outcome.Output = sink.Tail()
	if cmd.ProcessState != nil {
		outcome.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			if !outcome.Canceled && !outcome.TimedOut {
				logger.Warn("downloader exited with non-zero status", "exit_code", exitErr.ExitCode())
			}
		case errors.Is(err, exec.ErrWaitDelay):
			logger.Warn("downloader output still open after exit", "error", err)
		default:
			return fmt.Errorf("wait for downloader: %w", err)
		}
	}

	logger.Debug("downloader finished", "exit_code", outcome.ExitCode, "output_lines", sink.Lines())
	return nil
}

// terminate sends SIGTERM, waits the grace period, then kills. It returns the
// Wait error.
func (r *Runner) terminate(cmd *exec.Cmd, waitErr <-chan error, logger *slog.Logger) error {
	if cmd.Process == nil {
		return <-waitErr
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Platforms without signals (windows) only support Kill.
		logger.Debug("SIGTERM not delivered, killing", "error", err)
		_ = cmd.Process.Kill()
		return <-waitErr
	}

	grace := time.NewTimer(r.grace)
	defer grace.Stop()

	select {
	case err := <-waitErr:
		logger.Info("downloader exited after SIGTERM")
		return err
	case <-grace.C:
		logger.Warn("downloader did not exit after SIGTERM, sending SIGKILL")
		if err := cmd.Process.Kill(); err != nil {
			logger.Error("failed to send SIGKILL", "error", err)
		}
		return <-waitErr
	}
}
