// Package history records runs and per-item outcomes in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// maxOutputBytes caps downloader output stored per job.
const maxOutputBytes = 64 * 1024

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// StartRun inserts a run in the running state.
func (s *Store) StartRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is empty")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}
	if run.Status == "" {
		run.Status = "running"
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs(id, account, status, total_jobs, completed_jobs, destination, started_at)
VALUES(?, ?, ?, ?, ?, ?, ?);
`, run.ID, run.Account, run.Status, run.TotalJobs, run.CompletedJobs, run.Destination, formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// SetTotal records the job count once input resolution is done.
func (s *Store) SetTotal(ctx context.Context, runID string, total int) error {
	res, err := s.db.ExecContext(ctx, "UPDATE runs SET total_jobs = ? WHERE id = ?;", total, runID)
	if err != nil {
		return fmt.Errorf("update run total: %w", err)
	}
	return expectOne(res)
}

// RecordJob appends a job outcome and bumps the run's completed counter in one
// transaction.
func (s *Store) RecordJob(ctx context.Context, rec JobRecord) error {
	if rec.ID == "" || rec.RunID == "" {
		return fmt.Errorf("job record needs id and run id")
	}
	if !rec.Status.valid() {
		return fmt.Errorf("invalid job status: %q", rec.Status)
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = s.now()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = rec.CompletedAt
	}

	var outputVal any
	if rec.Output != nil {
		out := *rec.Output
		if len(out) > maxOutputBytes {
			out = out[len(out)-maxOutputBytes:]
		}
		outputVal = out
	}
	var movedVal any
	if len(rec.MovedFiles) > 0 {
		movedVal = string(rec.MovedFiles)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO job_log(
  id, run_id, seq, workshop_id, status, exit_code, moved_count, moved_files, last_error, output, started_at, completed_at
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, rec.ID, rec.RunID, rec.Seq, rec.WorkshopID, rec.Status, rec.ExitCode, rec.MovedCount, movedVal, rec.LastError, outputVal,
		formatTime(rec.StartedAt), formatTime(rec.CompletedAt))
	if err != nil {
		return fmt.Errorf("insert job_log: %w", err)
	}

	res, err := tx.ExecContext(ctx, "UPDATE runs SET completed_jobs = completed_jobs + 1 WHERE id = ?;", rec.RunID)
	if err != nil {
		return fmt.Errorf("update run progress: %w", err)
	}
	if err := expectOne(res); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// FinishRun stores the terminal status of a run.
func (s *Store) FinishRun(ctx context.Context, runID, status string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE runs SET status = ?, finished_at = ? WHERE id = ?;
`, status, formatTime(s.now()), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return expectOne(res)
}

// GetRun loads a single run.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, account, status, total_jobs, completed_jobs, destination, started_at, finished_at
FROM runs WHERE id = ?;
`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, account, status, total_jobs, completed_jobs, destination, started_at, finished_at
FROM runs
ORDER BY started_at DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

// ListJobs returns a run's job records in execution order.
func (s *Store) ListJobs(ctx context.Context, runID string) ([]JobRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, run_id, seq, workshop_id, status, exit_code, moved_count, moved_files, last_error, output, started_at, completed_at
FROM job_log
WHERE run_id = ?
ORDER BY seq;
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		var (
			rec         JobRecord
			status      string
			exitCode    sql.NullInt64
			movedFiles  sql.NullString
			lastError   sql.NullString
			output      sql.NullString
			startedAt   string
			completedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Seq, &rec.WorkshopID, &status, &exitCode, &rec.MovedCount,
			&movedFiles, &lastError, &output, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		rec.Status = JobStatus(status)
		if exitCode.Valid {
			v := int(exitCode.Int64)
			rec.ExitCode = &v
		}
		if movedFiles.Valid {
			rec.MovedFiles = json.RawMessage(movedFiles.String)
		}
		if lastError.Valid {
			rec.LastError = &lastError.String
		}
		if output.Valid {
			rec.Output = &output.String
		}
		rec.StartedAt = parseTime(startedAt)
		rec.CompletedAt = parseTime(completedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Account, &run.Status, &run.TotalJobs, &run.CompletedJobs, &run.Destination,
		&startedAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		run.FinishedAt = &t
	}
	return &run, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
