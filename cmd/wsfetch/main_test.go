package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattjoyce/wsfetch/internal/pipeline"
	"github.com/mattjoyce/wsfetch/internal/settings"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func setVersionMetadataForTest(t *testing.T, v, commit, built string) {
	t.Helper()

	origVersion := version
	origCommit := gitCommit
	origBuildDate := buildDate

	version = v
	gitCommit = commit
	buildDate = built

	t.Cleanup(func() {
		version = origVersion
		gitCommit = origCommit
		buildDate = origBuildDate
	})
}

// writeTestConfig writes a config whose state lives under a temp dir.
func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	content := "state:\n  path: " + filepath.Join(dir, "state", "wsfetch.db") + "\n" +
		"workspace:\n  dir: " + filepath.Join(dir, "scratch") + "\n" + extra
	path := filepath.Join(dir, "wsfetch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunVersionJSON(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "0123456789abcdef0123", "2026-03-01T10:00:00Z")

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"version", "--json"})
	})
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr)
	}

	var info versionInfo
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("decode version JSON: %v\n%s", err, stdout)
	}
	if info.Version != "1.2.3" || info.Commit != "0123456789ab" || info.BuildTime != "2026-03-01T10:00:00Z" {
		t.Fatalf("unexpected version info: %+v", info)
	}
}

func TestRunCLIUnknownCommand(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"frobnicate"})
	})
	if code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Unknown command: frobnicate") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestRunCLIHelp(t *testing.T) {
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"help"})
	})
	if code != 0 || !strings.Contains(stdout, "gameroot set <dir>") {
		t.Fatalf("exit = %d, stdout = %q", code, stdout)
	}

	code, stdout, _ = captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"run", "--help"})
	})
	if code != 0 || !strings.Contains(stdout, "--account") {
		t.Fatalf("run help: exit = %d, stdout = %q", code, stdout)
	}
}

func TestCollectLines(t *testing.T) {
	file := filepath.Join(t.TempDir(), "ids.txt")
	if err := os.WriteFile(file, []byte("12345678\r\n\nhttps://steamcommunity.com/sharedfiles/filedetails/?id=87654321\n"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	t.Run("file", func(t *testing.T) {
		lines, err := collectLines([]string{"ignored"}, file, strings.NewReader(""), true)
		if err != nil {
			t.Fatalf("collectLines: %v", err)
		}
		if len(lines) != 4 || lines[0] != "12345678" || lines[1] != "" {
			t.Fatalf("lines = %q", lines)
		}
	})

	t.Run("args", func(t *testing.T) {
		lines, err := collectLines([]string{"11111111", "22222222"}, "", strings.NewReader("33333333"), false)
		if err != nil {
			t.Fatalf("collectLines: %v", err)
		}
		if len(lines) != 2 || lines[1] != "22222222" {
			t.Fatalf("lines = %q", lines)
		}
	})

	t.Run("stdin dash", func(t *testing.T) {
		lines, err := collectLines(nil, "-", strings.NewReader("33333333\n44444444"), true)
		if err != nil {
			t.Fatalf("collectLines: %v", err)
		}
		if len(lines) != 2 || lines[1] != "44444444" {
			t.Fatalf("lines = %q", lines)
		}
	})

	t.Run("piped stdin", func(t *testing.T) {
		lines, err := collectLines(nil, "", strings.NewReader("55555555"), false)
		if err != nil || len(lines) != 1 {
			t.Fatalf("lines = %q, err = %v", lines, err)
		}
	})

	t.Run("terminal without input", func(t *testing.T) {
		if _, err := collectLines(nil, "", strings.NewReader(""), true); !errors.Is(err, errNoInput) {
			t.Fatalf("err = %v, want errNoInput", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := collectLines(nil, filepath.Join(t.TempDir(), "nope"), nil, true); err == nil {
			t.Fatal("expected error for missing file")
		}
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name    string
		summary pipeline.Summary
		err     error
		want    int
	}{
		{"completed", pipeline.Summary{Outcome: pipeline.OutcomeCompleted}, nil, exitOK},
		{"items failed", pipeline.Summary{Outcome: pipeline.OutcomeCompleted, Failed: 1}, nil, exitItemsFailed},
		{"canceled", pipeline.Summary{Outcome: pipeline.OutcomeCanceled, Failed: 1}, nil, exitCanceled},
		{"no valid input", pipeline.Summary{Outcome: pipeline.OutcomeNoValidInput}, pipeline.ErrNoValidInput, exitNoValidInput},
		{"blank input", pipeline.Summary{}, pipeline.ErrNoInput, exitNoValidInput},
		{"in progress", pipeline.Summary{}, pipeline.ErrRunInProgress, exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.summary, tt.err); got != tt.want {
				t.Fatalf("exitCode = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPrintSummary(t *testing.T) {
	var b strings.Builder
	printSummary(&b, pipeline.Summary{Outcome: pipeline.OutcomeCompleted, TotalJobs: 3, Moved: 5, Failed: 1})
	if got := b.String(); got != "Done: 3 item(s), 5 file(s) moved, 1 failed.\n" {
		t.Fatalf("summary = %q", got)
	}

	b.Reset()
	printSummary(&b, pipeline.Summary{Outcome: pipeline.OutcomeCanceled, TotalJobs: 4, Completed: 2, Moved: 1})
	if !strings.HasPrefix(b.String(), "Canceled after 2/4 item(s)") {
		t.Fatalf("summary = %q", b.String())
	}

	b.Reset()
	printSummary(&b, pipeline.Summary{Outcome: pipeline.OutcomeNoValidInput})
	if b.Len() != 0 {
		t.Fatalf("expected no summary for no valid input, got %q", b.String())
	}
}

func TestStreamHandlersPrefixLevels(t *testing.T) {
	var b strings.Builder
	h := streamHandlers(&b)
	h.OnLog(pipeline.LogEvent{Level: pipeline.LevelInfo, Message: "Downloading 12345678"})
	h.OnLog(pipeline.LogEvent{Level: pipeline.LevelWarn, Message: "duplicate"})
	h.OnLog(pipeline.LogEvent{Level: pipeline.LevelError, Message: "boom"})
	h.OnProgress(pipeline.ProgressEvent{Completed: 1, Total: 2, Percent: 50})

	want := "Downloading 12345678\nwarning: duplicate\nerror: boom\n[ 50%] 1/2\n"
	if b.String() != want {
		t.Fatalf("output = %q, want %q", b.String(), want)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	t.Setenv("WSFETCH_TEST_API_KEY", "topsecret-key")
	cfgPath := writeTestConfig(t, `accounts:
  - id: main
    secret: hunter2
  - id: alt
    secret: ${WSFETCH_TEST_UNSET_SECRET}
api:
  api_key: ${WSFETCH_TEST_API_KEY}
`)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "show", "--config", cfgPath})
	})
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr)
	}
	if strings.Contains(stdout, "hunter2") || strings.Contains(stdout, "topsecret-key") {
		t.Fatalf("secret leaked:\n%s", stdout)
	}
	if !strings.Contains(stdout, redactedValue) {
		t.Fatalf("expected redaction marker:\n%s", stdout)
	}
	if !strings.Contains(stdout, "${WSFETCH_TEST_UNSET_SECRET}") {
		t.Fatalf("expected unresolved reference to be shown:\n%s", stdout)
	}
}

func TestConfigPath(t *testing.T) {
	cfgPath := writeTestConfig(t, "")
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "path", "--config", cfgPath})
	})
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	abs, _ := filepath.Abs(cfgPath)
	if strings.TrimSpace(stdout) != abs {
		t.Fatalf("path = %q, want %q", stdout, abs)
	}
}

func TestGameRootSetAndShow(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	root := t.TempDir()
	scenarios := filepath.Join(root, settings.DefaultScenariosSubpath)
	if err := os.MkdirAll(scenarios, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"gameroot", "set", "--config", cfgPath, t.TempDir()})
	})
	if code != 1 || !strings.Contains(stderr, "Not a game root") {
		t.Fatalf("invalid root: exit = %d, stderr = %q", code, stderr)
	}

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"gameroot", "set", "--config", cfgPath, root})
	})
	if code != 0 {
		t.Fatalf("set: exit = %d, stderr = %s", code, stderr)
	}
	if !strings.Contains(stdout, scenarios) {
		t.Fatalf("set output = %q", stdout)
	}

	code, stdout, stderr = captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"gameroot", "show", "--config", cfgPath, "--json"})
	})
	if code != 0 {
		t.Fatalf("show: exit = %d, stderr = %s", code, stderr)
	}
	var view gameRootView
	if err := json.Unmarshal([]byte(stdout), &view); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout)
	}
	if !view.Valid || view.ScenariosDir != scenarios {
		t.Fatalf("view = %+v", view)
	}
}

func TestAccountsList(t *testing.T) {
	cfgPath := writeTestConfig(t, `default_account: main
accounts:
  - id: main
    label: Primary
    secret: hunter2
  - id: alt
    secret: ${WSFETCH_TEST_UNSET_SECRET}
  - id: empty
`)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"accounts", "list", "--config", cfgPath, "--json"})
	})
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr)
	}
	if strings.Contains(stdout, "hunter2") {
		t.Fatalf("secret leaked: %s", stdout)
	}

	var views []accountView
	if err := json.Unmarshal([]byte(stdout), &views); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout)
	}
	if len(views) != 3 {
		t.Fatalf("views = %+v", views)
	}
	if views[0].Label != "Primary" || views[0].Secret != "set" || !views[0].Default {
		t.Fatalf("main = %+v", views[0])
	}
	if views[1].Secret != "unresolved ${WSFETCH_TEST_UNSET_SECRET}" {
		t.Fatalf("alt = %+v", views[1])
	}
	if views[2].Secret != "missing" || views[2].Label != "empty" {
		t.Fatalf("empty = %+v", views[2])
	}
}

func TestHistoryEmpty(t *testing.T) {
	cfgPath := writeTestConfig(t, "")
	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"history", "--config", cfgPath})
	})
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr)
	}
	if !strings.Contains(stdout, "No runs recorded.") {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestRunRequiresGameRoot(t *testing.T) {
	cfgPath := writeTestConfig(t, `accounts:
  - id: main
    secret: hunter2
`)
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"run", "--config", cfgPath, "12345678"})
	})
	if code != exitError {
		t.Fatalf("exit = %d, want %d", code, exitError)
	}
	if !strings.Contains(stderr, "no game root selected") {
		t.Fatalf("stderr = %q", stderr)
	}
}

type countingCanceler struct{ calls int }

func (c *countingCanceler) Cancel() bool {
	c.calls++
	return true
}

func TestSignalBeforeStartCancelsOnArm(t *testing.T) {
	orch := &countingCanceler{}
	var out strings.Builder
	s := newSignalCancel(orch, &out)

	s.handle()
	if orch.calls != 0 {
		t.Fatalf("Cancel called %d times before the run started", orch.calls)
	}
	if !strings.Contains(out.String(), "Canceling...") {
		t.Fatalf("expected cancel notice, got %q", out.String())
	}

	s.Arm()
	if orch.calls != 1 {
		t.Fatalf("Cancel called %d times after Arm, want 1", orch.calls)
	}
}

func TestSignalAfterStartCancelsImmediately(t *testing.T) {
	orch := &countingCanceler{}
	s := newSignalCancel(orch, io.Discard)

	s.Arm()
	if orch.calls != 0 {
		t.Fatalf("Arm without a signal canceled the run")
	}
	s.handle()
	if orch.calls != 1 {
		t.Fatalf("Cancel called %d times, want 1", orch.calls)
	}
}
