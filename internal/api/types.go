package api

import (
	"encoding/json"
	"time"

	"github.com/mattjoyce/wsfetch/internal/history"
	"github.com/mattjoyce/wsfetch/internal/pipeline"
)

// RunRequest is the JSON body for POST /runs
type RunRequest struct {
	Lines   []string `json:"lines"`
	Account string   `json:"account,omitempty"`
}

// RunResponse is returned when a run is accepted
type RunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// CancelResponse is returned by POST /runs/cancel
type CancelResponse struct {
	Canceled bool `json:"canceled"`
}

// StatusResponse is returned by GET /status
type StatusResponse struct {
	pipeline.State
	Percent int `json:"percent"`
}

// HistoryResponse is returned by GET /history
type HistoryResponse struct {
	Runs []history.Run `json:"runs"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	RunStatus     string `json:"run_status"`
}

// StreamMessage is one event frame on the websocket stream.
type StreamMessage struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// StreamCommand is a client frame on the websocket stream.
type StreamCommand struct {
	Type string `json:"type"`
}
