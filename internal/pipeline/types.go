package pipeline

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCanceling Status = "canceling"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// Active reports whether a run is in flight.
func (s Status) Active() bool {
	return s == StatusRunning || s == StatusCanceling
}

// State is a snapshot of the orchestrator.
type State struct {
	Status        Status `json:"status"`
	RunID         string `json:"run_id,omitempty"`
	TotalJobs     int    `json:"total_jobs"`
	CompletedJobs int    `json:"completed_jobs"`
}

// Percent is CompletedJobs/TotalJobs scaled to 0..100.
func (s State) Percent() int {
	return percent(s.CompletedJobs, s.TotalJobs)
}

func percent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return completed * 100 / total
}

type Outcome string

const (
	OutcomeCompleted    Outcome = "completed"
	OutcomeCanceled     Outcome = "canceled"
	OutcomeNoValidInput Outcome = "no_valid_input"
)

var (
	ErrRunInProgress = errors.New("a run is already in progress")
	ErrConfiguration = errors.New("configuration error")
	ErrNoValidInput  = errors.New("no valid ids")
	// ErrNoInput is returned by Start when every input line is blank.
	ErrNoInput = fmt.Errorf("%w: input is empty", ErrNoValidInput)
)

// Event types published on the orchestrator hub.
const (
	EventRunStarted   = "run.started"
	EventLog          = "log"
	EventJobStarted   = "job.started"
	EventJobCompleted = "job.completed"
	EventProgress     = "progress"
	EventFinished     = "finished"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type LogEvent struct {
	RunID      string `json:"run_id"`
	Level      Level  `json:"level"`
	Message    string `json:"message"`
	WorkshopID string `json:"workshop_id,omitempty"`
}

type RunStartedEvent struct {
	RunID       string `json:"run_id"`
	Account     string `json:"account"`
	Destination string `json:"destination"`
	Lines       int    `json:"lines"`
}

type JobEvent struct {
	RunID      string `json:"run_id"`
	JobID      string `json:"job_id"`
	WorkshopID string `json:"workshop_id"`
	Index      int    `json:"index"`
	Total      int    `json:"total"`
	Status     string `json:"status,omitempty"`
	ExitCode   *int   `json:"exit_code,omitempty"`
	Moved      int    `json:"moved,omitempty"`
}

type ProgressEvent struct {
	RunID     string `json:"run_id"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Percent   int    `json:"percent"`
}

// FinishedEvent is always the last event of a run.
type FinishedEvent struct {
	RunID     string  `json:"run_id"`
	Outcome   Outcome `json:"outcome"`
	Canceled  bool    `json:"canceled"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Moved     int     `json:"moved"`
	Failed    int     `json:"failed"`
}

// Summary is what Run.Wait returns.
type Summary struct {
	RunID       string   `json:"run_id"`
	Outcome     Outcome  `json:"outcome"`
	TotalJobs   int      `json:"total_jobs"`
	Completed   int      `json:"completed"`
	Moved       int      `json:"moved"`
	Failed      int      `json:"failed"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}
