package history

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/wsfetch/internal/storage"
)

func openHistory(t *testing.T) *Store {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "wsfetch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()
	s := openHistory(t)
	ctx := context.Background()

	require.NoError(t, s.StartRun(ctx, Run{ID: "run-1", Account: "main", Destination: "/dest"}))
	require.NoError(t, s.SetTotal(ctx, "run-1", 2))

	exit := 0
	out := "downloaded"
	require.NoError(t, s.RecordJob(ctx, JobRecord{
		ID: "job-1", RunID: "run-1", Seq: 0, WorkshopID: "12345678",
		Status: JobSucceeded, ExitCode: &exit, MovedCount: 1,
		MovedFiles: json.RawMessage(`[{"name":"a.sce"}]`), Output: &out,
	}))
	msg := "downloader tool not found"
	require.NoError(t, s.RecordJob(ctx, JobRecord{
		ID: "job-2", RunID: "run-1", Seq: 1, WorkshopID: "87654321",
		Status: JobToolMissing, LastError: &msg,
	}))
	require.NoError(t, s.FinishRun(ctx, "run-1", "completed"))

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, 2, run.TotalJobs)
	assert.Equal(t, 2, run.CompletedJobs)
	require.NotNil(t, run.FinishedAt)

	jobs, err := s.ListJobs(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "12345678", jobs[0].WorkshopID)
	require.NotNil(t, jobs[0].ExitCode)
	assert.Equal(t, 0, *jobs[0].ExitCode)
	assert.JSONEq(t, `[{"name":"a.sce"}]`, string(jobs[0].MovedFiles))
	assert.Nil(t, jobs[1].ExitCode)
	require.NotNil(t, jobs[1].LastError)
	assert.Equal(t, msg, *jobs[1].LastError)
}

func TestListRunsNewestFirst(t *testing.T) {
	t.Parallel()
	s := openHistory(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.StartRun(ctx, Run{ID: id, Account: "x", StartedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, "running", runs[0].Status)
}

func TestRecordJobValidation(t *testing.T) {
	t.Parallel()
	s := openHistory(t)
	ctx := context.Background()

	assert.Error(t, s.RecordJob(ctx, JobRecord{ID: "j", RunID: "r", Status: "weird"}))
	assert.Error(t, s.RecordJob(ctx, JobRecord{RunID: "r", Status: JobSucceeded}))

	err := s.RecordJob(ctx, JobRecord{ID: "j", RunID: "missing", Status: JobSucceeded})
	require.Error(t, err)
}

func TestRecordJobTruncatesOutput(t *testing.T) {
	t.Parallel()
	s := openHistory(t)
	ctx := context.Background()
	require.NoError(t, s.StartRun(ctx, Run{ID: "r", Account: "x"}))

	long := strings.Repeat("a", maxOutputBytes) + "TAIL"
	require.NoError(t, s.RecordJob(ctx, JobRecord{ID: "j", RunID: "r", Status: JobFailed, Output: &long}))

	jobs, err := s.ListJobs(ctx, "r")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Len(t, *jobs[0].Output, maxOutputBytes)
	assert.True(t, strings.HasSuffix(*jobs[0].Output, "TAIL"))
}

func TestGetRunMissing(t *testing.T) {
	t.Parallel()
	s := openHistory(t)
	_, err := s.GetRun(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}
