package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "wsfetch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "empty file gets defaults",
			yaml: "{}\n",
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Workshop.AppID != "824270" {
					t.Errorf("app_id = %q, want 824270", cfg.Workshop.AppID)
				}
				if cfg.Workshop.LookupTimeout != 10*time.Second {
					t.Errorf("lookup_timeout = %v", cfg.Workshop.LookupTimeout)
				}
				if cfg.Downloader.TerminationGrace != 5*time.Second {
					t.Errorf("termination_grace = %v", cfg.Downloader.TerminationGrace)
				}
				if cfg.Downloader.Timeout != 0 {
					t.Errorf("timeout = %v, want 0", cfg.Downloader.Timeout)
				}
				if cfg.Relocate.Extension != ".sce" {
					t.Errorf("extension = %q", cfg.Relocate.Extension)
				}
			},
		},
		{
			name: "full config with env secrets",
			yaml: `
service:
  log_level: debug
  log_format: json
state:
  path: ./state/wsfetch.db
workshop:
  app_id: "440"
  lookup_timeout: 3s
downloader:
  executable: ./bin/fetcher
  search_roots: [./tools, ./vendor]
  timeout: 30m
accounts:
  - id: main
    label: Account 1
    secret: ${WSFETCH_TEST_SECRET}
default_account: main
`,
			env: map[string]string{"WSFETCH_TEST_SECRET": "pw"},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Service.LogFormat != "json" {
					t.Errorf("log_format = %q", cfg.Service.LogFormat)
				}
				if cfg.Workshop.AppID != "440" {
					t.Errorf("app_id = %q", cfg.Workshop.AppID)
				}
				if len(cfg.Downloader.SearchRoots) != 2 {
					t.Errorf("search_roots = %v", cfg.Downloader.SearchRoots)
				}
				if cfg.Downloader.Timeout != 30*time.Minute {
					t.Errorf("timeout = %v", cfg.Downloader.Timeout)
				}
				table, err := cfg.Credentials()
				if err != nil {
					t.Fatalf("Credentials() error = %v", err)
				}
				acct, ok := table.Lookup("main")
				if !ok {
					t.Fatal("account main missing")
				}
				if acct.Secret.Reveal() != "pw" {
					t.Error("secret not interpolated")
				}
				if cfg.AccountID("") != "main" {
					t.Errorf("AccountID() = %q", cfg.AccountID(""))
				}
			},
		},
		{
			name: "unresolved secret is kept out of the table",
			yaml: `
accounts:
  - id: alt
    secret: ${WSFETCH_TEST_UNSET_SECRET}
`,
			checkFn: func(t *testing.T, cfg *Config) {
				table, err := cfg.Credentials()
				if err != nil {
					t.Fatalf("Credentials() error = %v", err)
				}
				acct, _ := table.Lookup("alt")
				if !acct.Secret.IsZero() {
					t.Error("unresolved placeholder must not become a secret")
				}
				if got := cfg.UnresolvedSecrets()["alt"]; got != "WSFETCH_TEST_UNSET_SECRET" {
					t.Errorf("UnresolvedSecrets() = %v", cfg.UnresolvedSecrets())
				}
			},
		},
		{
			name:    "bad log level",
			yaml:    "service:\n  log_level: loud\n",
			wantErr: "service.log_level",
		},
		{
			name:    "duplicate account",
			yaml:    "accounts:\n  - id: a\n  - id: a\n",
			wantErr: "duplicate id",
		},
		{
			name:    "unknown default account",
			yaml:    "default_account: ghost\n",
			wantErr: "default_account",
		},
		{
			name:    "negative timeout",
			yaml:    "downloader:\n  timeout: -1s\n",
			wantErr: "downloader.timeout",
		},
		{
			name:    "malformed yaml",
			yaml:    "service: [",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeConfig(t, t.TempDir(), tt.yaml)

			cfg, err := Load(path)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Load() expected error containing %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Load() error = %v, want substring %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.SourcePath != path {
				t.Errorf("SourcePath = %q, want %q", cfg.SourcePath, path)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadReadsDotEnvNextToConfig(t *testing.T) {
	dir := t.TempDir()
	const key = "WSFETCH_DOTENV_TEST_SECRET"
	t.Setenv(key, "")
	os.Unsetenv(key)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("WriteFile(.env) error = %v", err)
	}
	path := writeConfig(t, dir, "accounts:\n  - id: main\n    secret: ${"+key+"}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	table, err := cfg.Credentials()
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	acct, _ := table.Lookup("main")
	if acct.Secret.Reveal() != "from-dotenv" {
		t.Errorf("secret = %q, want from-dotenv", acct.Secret.Reveal())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestDiscoverHonoursEnv(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "{}\n")
	t.Setenv(EnvConfigPath, path)
	if got := Discover(); got != path {
		t.Fatalf("Discover() = %q, want %q", got, path)
	}
}

func TestInterpolateEnv(t *testing.T) {
	t.Setenv("WSFETCH_A", "alpha")
	got := interpolateEnv("x=${WSFETCH_A} y=${WSFETCH_NOT_SET_ANYWHERE}")
	if got != "x=alpha y=${WSFETCH_NOT_SET_ANYWHERE}" {
		t.Fatalf("interpolateEnv() = %q", got)
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := Defaults()
	cfg.State.Path = filepath.Join("var", "lib", "wsfetch.db")
	if got := cfg.LockPath(); got != filepath.Join("var", "lib", "wsfetch.lock") {
		t.Errorf("LockPath() = %q", got)
	}
	if got := cfg.WorkspaceDir(); got != filepath.Join(os.TempDir(), "wsfetch") {
		t.Errorf("WorkspaceDir() = %q", got)
	}
	cfg.Workspace.Dir = "/scratch"
	if got := cfg.WorkspaceDir(); got != "/scratch" {
		t.Errorf("WorkspaceDir() = %q", got)
	}
}
