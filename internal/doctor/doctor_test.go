package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattjoyce/wsfetch/internal/config"
	"github.com/mattjoyce/wsfetch/internal/settings"
	"github.com/mattjoyce/wsfetch/internal/storage"
)

type stubFinder struct {
	path string
	err  error
}

func (f stubFinder) Find() (string, error) { return f.path, f.err }

type memStore map[string]string

func (m memStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memStore) Set(_ context.Context, key, value string) error {
	m[key] = value
	return nil
}

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Workspace.Dir = filepath.Join(t.TempDir(), "scratch")
	cfg.Downloader.Timeout = 0
	cfg.Accounts = []config.AccountConfig{{ID: "main", Label: "Account 1", Secret: "hunter2"}}
	return cfg
}

func gameRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, settings.DefaultScenariosSubpath), 0o755); err != nil {
		t.Fatalf("mkdir scenarios: %v", err)
	}
	return root
}

func hasIssue(issues []Issue, category, substr string) bool {
	for _, is := range issues {
		if is.Category == category && strings.Contains(is.Message, substr) {
			return true
		}
	}
	return false
}

func TestValidateHealthyEnvironment(t *testing.T) {
	cfg := validConfig(t)
	root := gameRoot(t)
	store := memStore{settings.KeyGameRoot: root}

	d := New(cfg, stubFinder{path: "/opt/DepotDownloaderMod"}, store)
	r := d.Validate(context.Background())

	if !r.Valid {
		t.Fatalf("expected valid result, got errors: %+v", r.Errors)
	}
	if r.Downloader != "/opt/DepotDownloaderMod" {
		t.Fatalf("Downloader = %q", r.Downloader)
	}
	if r.ScenariosDir != filepath.Join(root, settings.DefaultScenariosSubpath) {
		t.Fatalf("ScenariosDir = %q", r.ScenariosDir)
	}
	if !hasIssue(r.Warnings, "downloader", "no downloader timeout") {
		t.Fatalf("expected timeout warning, got %+v", r.Warnings)
	}
}

func TestValidateMissingDownloader(t *testing.T) {
	cfg := validConfig(t)
	store := memStore{settings.KeyGameRoot: gameRoot(t)}

	r := New(cfg, stubFinder{err: errors.New("downloader executable not found")}, store).Validate(context.Background())
	if r.Valid {
		t.Fatalf("expected invalid result")
	}
	if !hasIssue(r.Errors, "downloader", "not found") {
		t.Fatalf("expected downloader error, got %+v", r.Errors)
	}
}

func TestValidateGameRoot(t *testing.T) {
	cfg := validConfig(t)
	finder := stubFinder{path: "/bin/true"}

	r := New(cfg, finder, memStore{}).Validate(context.Background())
	if !hasIssue(r.Errors, "game_root", "no game root selected") {
		t.Fatalf("expected missing game root error, got %+v", r.Errors)
	}

	stale := t.TempDir()
	r = New(cfg, finder, memStore{settings.KeyGameRoot: stale}).Validate(context.Background())
	if !hasIssue(r.Errors, "game_root", "no longer valid") {
		t.Fatalf("expected stale game root error, got %+v", r.Errors)
	}

	r = New(cfg, finder, nil).Validate(context.Background())
	if !hasIssue(r.Errors, "game_root", "state database unavailable") {
		t.Fatalf("expected unavailable store error, got %+v", r.Errors)
	}
}

func TestValidateAccounts(t *testing.T) {
	finder := stubFinder{path: "/bin/true"}
	store := memStore{settings.KeyGameRoot: gameRoot(t)}

	cfg := validConfig(t)
	cfg.Accounts = nil
	r := New(cfg, finder, store).Validate(context.Background())
	if !hasIssue(r.Errors, "accounts", "no downloader accounts") {
		t.Fatalf("expected no-accounts error, got %+v", r.Errors)
	}

	cfg = validConfig(t)
	cfg.Accounts = []config.AccountConfig{
		{ID: "a", Secret: "${WSFETCH_TEST_UNSET_SECRET}"},
		{ID: "b", Secret: ""},
	}
	r = New(cfg, finder, store).Validate(context.Background())
	if !hasIssue(r.Errors, "accounts", "WSFETCH_TEST_UNSET_SECRET") {
		t.Fatalf("expected unresolved secret error, got %+v", r.Errors)
	}
	if !hasIssue(r.Errors, "accounts", `account "b" has no secret`) {
		t.Fatalf("expected empty secret error, got %+v", r.Errors)
	}
	if !hasIssue(r.Warnings, "accounts", "no default_account") {
		t.Fatalf("expected default account warning, got %+v", r.Warnings)
	}
}

func TestValidateWorkspaceNotWritable(t *testing.T) {
	cfg := validConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	cfg.Workspace.Dir = filepath.Join(blocker, "scratch")

	r := New(cfg, stubFinder{path: "/bin/true"}, memStore{settings.KeyGameRoot: gameRoot(t)}).Validate(context.Background())
	if !hasIssue(r.Errors, "workspace", "cannot create") {
		t.Fatalf("expected workspace error, got %+v", r.Errors)
	}
}

func TestValidateAPIExposure(t *testing.T) {
	cfg := validConfig(t)
	cfg.API.Listen = "0.0.0.0:8787"
	store := memStore{settings.KeyGameRoot: gameRoot(t)}

	r := New(cfg, stubFinder{path: "/bin/true"}, store).Validate(context.Background())
	if !hasIssue(r.Warnings, "api", "without an api_key") {
		t.Fatalf("expected api exposure warning, got %+v", r.Warnings)
	}

	cfg.API.APIKey = "k"
	r = New(cfg, stubFinder{path: "/bin/true"}, store).Validate(context.Background())
	if hasIssue(r.Warnings, "api", "without an api_key") {
		t.Fatalf("unexpected api warning with key set: %+v", r.Warnings)
	}

	cfg.API.Listen = "nonsense"
	r = New(cfg, stubFinder{path: "/bin/true"}, store).Validate(context.Background())
	if !hasIssue(r.Errors, "api", "invalid listen address") {
		t.Fatalf("expected listen error, got %+v", r.Errors)
	}
}

func TestValidateWorkspaceOnNetworkFilesystem(t *testing.T) {
	cfg := validConfig(t)
	d := New(cfg, stubFinder{path: "/bin/true"}, memStore{settings.KeyGameRoot: gameRoot(t)})
	d.detectFS = func(string) (storage.Filesystem, bool) {
		return storage.Filesystem{Type: "nfs", Network: true}, true
	}

	r := d.Validate(context.Background())
	if !r.Valid {
		t.Fatalf("network workspace should only warn, got errors: %+v", r.Errors)
	}
	if !hasIssue(r.Warnings, "workspace", "network filesystem nfs") {
		t.Fatalf("expected network filesystem warning, got %+v", r.Warnings)
	}
}
