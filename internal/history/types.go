package history

import (
	"encoding/json"
	"errors"
	"time"
)

type JobStatus string

const (
	JobSucceeded   JobStatus = "succeeded"
	JobFailed      JobStatus = "failed"
	JobTimedOut    JobStatus = "timed_out"
	JobCanceled    JobStatus = "canceled"
	JobToolMissing JobStatus = "tool_missing"
)

func (s JobStatus) valid() bool {
	switch s {
	case JobSucceeded, JobFailed, JobTimedOut, JobCanceled, JobToolMissing:
		return true
	}
	return false
}

// Run is one pipeline invocation.
type Run struct {
	ID            string     `json:"id"`
	Account       string     `json:"account"`
	Status        string     `json:"status"`
	TotalJobs     int        `json:"total_jobs"`
	CompletedJobs int        `json:"completed_jobs"`
	Destination   string     `json:"destination"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// JobRecord is the outcome of one downloaded item.
type JobRecord struct {
	ID          string          `json:"id"`
	RunID       string          `json:"run_id"`
	Seq         int             `json:"seq"`
	WorkshopID  string          `json:"workshop_id"`
	Status      JobStatus       `json:"status"`
	ExitCode    *int            `json:"exit_code,omitempty"`
	MovedCount  int             `json:"moved_count"`
	MovedFiles  json.RawMessage `json:"moved_files,omitempty"`
	LastError   *string         `json:"last_error,omitempty"`
	Output      *string         `json:"output,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
}

var ErrRunNotFound = errors.New("run not found")
