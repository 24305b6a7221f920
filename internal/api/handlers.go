package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/mattjoyce/wsfetch/internal/pipeline"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
	maxRunBodyBytes     = 1 << 20
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		RunStatus:     string(s.orch.State().Status),
	})
}

// handleStatus handles GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.orch.State()
	respondJSON(w, http.StatusOK, StatusResponse{State: st, Percent: st.Percent()})
}

// handleStartRun handles POST /runs
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	// Browsers send text/plain and form posts cross-origin without a preflight.
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		s.writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var req RunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRunBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	runReq, err := s.build(r.Context(), req.Lines, req.Account)
	if err != nil {
		s.writeRunError(w, err)
		return
	}

	run, err := s.orch.Start(r.Context(), runReq)
	if err != nil {
		s.writeRunError(w, err)
		return
	}

	s.logger.Info("run accepted", "run_id", run.ID, "lines", len(req.Lines))
	respondJSON(w, http.StatusAccepted, RunResponse{RunID: run.ID, Status: string(pipeline.StatusRunning)})
}

// handleCancelRun handles POST /runs/cancel
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	canceled := s.orch.Cancel()
	if !canceled {
		s.writeError(w, http.StatusConflict, "no run in progress")
		return
	}
	respondJSON(w, http.StatusAccepted, CancelResponse{Canceled: true})
}

// handleHistory handles GET /history?limit=N
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "history is not enabled")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	runs, err := s.history.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	respondJSON(w, http.StatusOK, HistoryResponse{Runs: runs})
}

func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrConfiguration), errors.Is(err, pipeline.ErrNoValidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("failed to start run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to start run")
	}
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
