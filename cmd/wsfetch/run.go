package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/mattjoyce/wsfetch/internal/lock"
	"github.com/mattjoyce/wsfetch/internal/log"
	"github.com/mattjoyce/wsfetch/internal/pipeline"
	"github.com/mattjoyce/wsfetch/internal/tui"
	"github.com/mattjoyce/wsfetch/internal/workshop"
)

// Exit codes for `wsfetch run`.
const (
	exitOK           = 0
	exitError        = 1
	exitNoValidInput = 2
	exitItemsFailed  = 3
	exitCanceled     = 130
)

var errNoInput = errors.New("no input: pass ids as arguments, --file, or pipe them on stdin")

func runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	file := fs.String("file", "", `Read input lines from a file ("-" for stdin)`)
	account := fs.String("account", "", "Downloader account id")
	useTUI := fs.Bool("tui", false, "Show the interactive terminal view")
	var verbose bool
	fs.BoolVar(&verbose, "verbose", false, "Print structured logs at the configured level")
	fs.BoolVar(&verbose, "v", false, "Shorthand for --verbose")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return exitError
	}

	lines, err := collectLines(fs.Args(), *file, os.Stdin, stdinIsTerminal())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitError
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitError
	}

	// Run progress goes to stdout as plain lines; structured logs repeat it, so
	// they are quieted unless asked for.
	level := cfg.Service.LogLevel
	if !verbose {
		floor := slog.LevelWarn
		if *useTUI {
			floor = slog.LevelError
		}
		if log.ParseLevel(level) < floor {
			level = floor.String()
		}
	}
	log.Setup(level, cfg.Service.LogFormat)

	ctx := context.Background()
	a, err := openApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup failed: %v\n", err)
		return exitError
	}
	defer a.Close()

	pidLock, err := lock.AcquirePIDLock(cfg.LockPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot start: %v\n", err)
		return exitError
	}
	defer pidLock.Release()

	a.cleanupScratch(ctx)

	req, err := a.buildRequest(ctx, lines, *account)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot start: %v\n", err)
		return exitError
	}

	if *useTUI {
		return runWithTUI(ctx, a.orch, req, os.Stdout)
	}
	return runStreaming(ctx, a.orch, req, os.Stdout)
}

// collectLines picks the input source: --file wins, then arguments, then
// stdin when it is not a terminal.
func collectLines(args []string, file string, stdin io.Reader, stdinTTY bool) ([]string, error) {
	switch {
	case file == "-":
		return readLines(stdin)
	case file != "":
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open input file: %w", err)
		}
		defer f.Close()
		return readLines(f)
	case len(args) > 0:
		return args, nil
	case !stdinTTY:
		return readLines(stdin)
	default:
		return nil, errNoInput
	}
}

func readLines(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return workshop.SplitLines(string(data)), nil
}

func stdinIsTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return true
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func runStreaming(ctx context.Context, orch *pipeline.Orchestrator, req pipeline.Request, w io.Writer) int {
	unbind := pipeline.Bind(orch.Hub(), streamHandlers(w))
	defer unbind()

	sig := cancelOnSignal(orch, os.Stderr)
	defer sig.Stop()

	run, err := orch.Start(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot start: %v\n", err)
		return exitCode(pipeline.Summary{}, err)
	}
	sig.Arm()

	summary, err := run.Wait()
	printSummary(w, summary)
	return exitCode(summary, err)
}

func runWithTUI(ctx context.Context, orch *pipeline.Orchestrator, req pipeline.Request, w io.Writer) int {
	prog := tui.NewProgram(ctx, orch.Hub(), orch.Cancel)

	run, err := orch.Start(ctx, req)
	if err != nil {
		prog.Close()
		fmt.Fprintf(os.Stderr, "Cannot start: %v\n", err)
		return exitCode(pipeline.Summary{}, err)
	}

	_, finished, err := prog.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}
	if !finished {
		orch.Cancel()
	}

	summary, werr := run.Wait()
	printSummary(w, summary)
	return exitCode(summary, werr)
}

func streamHandlers(w io.Writer) pipeline.Handlers {
	return pipeline.Handlers{
		OnLog: func(e pipeline.LogEvent) {
			switch e.Level {
			case pipeline.LevelError:
				fmt.Fprintf(w, "error: %s\n", e.Message)
			case pipeline.LevelWarn:
				fmt.Fprintf(w, "warning: %s\n", e.Message)
			default:
				fmt.Fprintln(w, e.Message)
			}
		},
		OnProgress: func(e pipeline.ProgressEvent) {
			fmt.Fprintf(w, "[%3d%%] %d/%d\n", e.Percent, e.Completed, e.Total)
		},
	}
}

// signalCancel cancels the active run on the first SIGINT/SIGTERM and exits on
// the second. A signal received before Arm is held until the run has started.
type signalCancel struct {
	orch  interface{ Cancel() bool }
	w     io.Writer
	sigCh chan os.Signal
	done  chan struct{}

	mu        sync.Mutex
	armed     bool
	requested bool
}

func cancelOnSignal(orch interface{ Cancel() bool }, w io.Writer) *signalCancel {
	s := newSignalCancel(orch, w)
	signal.Notify(s.sigCh, syscall.SIGINT, syscall.SIGTERM)
	go s.loop()
	return s
}

func newSignalCancel(orch interface{ Cancel() bool }, w io.Writer) *signalCancel {
	return &signalCancel{
		orch:  orch,
		w:     w,
		sigCh: make(chan os.Signal, 2),
		done:  make(chan struct{}),
	}
}

func (s *signalCancel) loop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.sigCh:
			s.handle()
		}
	}
}

func (s *signalCancel) handle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requested {
		fmt.Fprintln(s.w, "Forced exit.")
		os.Exit(exitCanceled)
	}
	s.requested = true
	if !s.armed || s.orch.Cancel() {
		fmt.Fprintln(s.w, "Canceling... press Ctrl+C again to force exit.")
	}
}

// Arm marks the run as started, canceling it at once if a signal already came in.
func (s *signalCancel) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = true
	if s.requested {
		s.orch.Cancel()
	}
}

func (s *signalCancel) Stop() {
	signal.Stop(s.sigCh)
	close(s.done)
}

func printSummary(w io.Writer, s pipeline.Summary) {
	switch s.Outcome {
	case pipeline.OutcomeNoValidInput:
		return
	case pipeline.OutcomeCanceled:
		fmt.Fprintf(w, "Canceled after %d/%d item(s): %d file(s) moved, %d failed.\n", s.Completed, s.TotalJobs, s.Moved, s.Failed)
	default:
		parts := []string{fmt.Sprintf("%d item(s)", s.TotalJobs), fmt.Sprintf("%d file(s) moved", s.Moved)}
		if s.Failed > 0 {
			parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
		}
		fmt.Fprintf(w, "Done: %s.\n", strings.Join(parts, ", "))
	}
}

func exitCode(s pipeline.Summary, err error) int {
	switch {
	case errors.Is(err, pipeline.ErrNoValidInput):
		return exitNoValidInput
	case err != nil:
		return exitError
	case s.Outcome == pipeline.OutcomeCanceled:
		return exitCanceled
	case s.Failed > 0:
		return exitItemsFailed
	default:
		return exitOK
	}
}
