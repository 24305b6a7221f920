package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/wsfetch/internal/credentials"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// EnvConfigPath overrides config discovery.
const EnvConfigPath = "WSFETCH_CONFIG"

// Load reads, interpolates and validates the config file at configPath.
// A .env file next to the config is loaded first; variables already set in
// the environment win.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
	}

	loadDotEnv(filepath.Join(filepath.Dir(absPath), ".env"))

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg = applyConfigDefaults(cfg)
	cfg.SourcePath = absPath

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", absPath, err)
	}
	return cfg, nil
}

// LoadOrDefault loads configPath, or the discovered config when configPath is
// empty, or defaults when nothing is found.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = Discover()
	}
	if configPath != "" {
		return Load(configPath)
	}

	loadDotEnv(".env")
	cfg := applyConfigDefaults(Defaults())
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Discover finds a config file.
// Priority order: $WSFETCH_CONFIG, ~/.config/wsfetch/config.yaml, ./wsfetch.yaml.
// It returns "" when none exists.
func Discover() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(homeDir, ".config", "wsfetch", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("wsfetch.yaml"); err == nil {
		return "wsfetch.yaml"
	}
	return ""
}

// Credentials builds the account table. Secrets whose ${VAR} never resolved
// are kept empty.
func (c *Config) Credentials() (*credentials.Table, error) {
	accounts := make([]credentials.Account, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		secret := a.Secret
		if envVarPattern.MatchString(secret) {
			secret = ""
		}
		accounts = append(accounts, credentials.Account{
			ID:     a.ID,
			Label:  a.Label,
			Secret: credentials.Secret(secret),
		})
	}
	return credentials.NewTable(accounts)
}

// AccountID returns requested, or the default account, or the only account.
func (c *Config) AccountID(requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	if c.DefaultAccount != "" {
		return c.DefaultAccount
	}
	if len(c.Accounts) == 1 {
		return c.Accounts[0].ID
	}
	return ""
}

// UnresolvedSecrets lists accounts whose secret still contains ${VAR}.
func (c *Config) UnresolvedSecrets() map[string]string {
	out := map[string]string{}
	for _, a := range c.Accounts {
		if m := envVarPattern.FindStringSubmatch(a.Secret); m != nil {
			out[a.ID] = m[1]
		}
	}
	return out
}

// LockPath returns the PID lock path, defaulting next to the state db.
func (c *Config) LockPath() string {
	if c.State.LockPath != "" {
		return c.State.LockPath
	}
	return filepath.Join(filepath.Dir(c.State.Path), "wsfetch.lock")
}

// WorkspaceDir returns the scratch base directory.
func (c *Config) WorkspaceDir() string {
	if c.Workspace.Dir != "" {
		return c.Workspace.Dir
	}
	return filepath.Join(os.TempDir(), "wsfetch")
}

func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.State.Path == "" {
		cfg.State.Path = defaults.State.Path
	}
	if cfg.Workshop.AppID == "" {
		cfg.Workshop.AppID = defaults.Workshop.AppID
	}
	if cfg.Workshop.CollectionEndpoint == "" {
		cfg.Workshop.CollectionEndpoint = defaults.Workshop.CollectionEndpoint
	}
	if cfg.Workshop.LookupTimeout == 0 {
		cfg.Workshop.LookupTimeout = defaults.Workshop.LookupTimeout
	}
	if cfg.Workshop.CacheSize == 0 {
		cfg.Workshop.CacheSize = defaults.Workshop.CacheSize
	}
	if cfg.Downloader.Executable == "" {
		cfg.Downloader.Executable = defaults.Downloader.Executable
	}
	if len(cfg.Downloader.SearchRoots) == 0 {
		cfg.Downloader.SearchRoots = defaults.Downloader.SearchRoots
	}
	if cfg.Downloader.TerminationGrace == 0 {
		cfg.Downloader.TerminationGrace = defaults.Downloader.TerminationGrace
	}
	if cfg.Relocate.Extension == "" {
		cfg.Relocate.Extension = defaults.Relocate.Extension
	}
	if cfg.Relocate.ScenariosSubpath == "" {
		cfg.Relocate.ScenariosSubpath = defaults.Relocate.ScenariosSubpath
	}
	if cfg.Workspace.StaleAfter == 0 {
		cfg.Workspace.StaleAfter = defaults.Workspace.StaleAfter
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}

	return cfg
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	switch strings.ToLower(cfg.Service.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}
	if strings.TrimSpace(cfg.Workshop.AppID) == "" {
		return fmt.Errorf("workshop.app_id is required")
	}
	if cfg.Workshop.LookupTimeout < 0 {
		return fmt.Errorf("workshop.lookup_timeout must not be negative")
	}
	if cfg.Downloader.Timeout < 0 {
		return fmt.Errorf("downloader.timeout must not be negative")
	}
	if cfg.Downloader.TerminationGrace < 0 {
		return fmt.Errorf("downloader.termination_grace must not be negative")
	}
	if cfg.Workspace.StaleAfter < 0 {
		return fmt.Errorf("workspace.stale_after must not be negative")
	}

	seen := map[string]bool{}
	var errs []error
	for i, a := range cfg.Accounts {
		id := strings.TrimSpace(a.ID)
		if id == "" {
			errs = append(errs, fmt.Errorf("accounts[%d].id is required", i))
			continue
		}
		if seen[id] {
			errs = append(errs, fmt.Errorf("accounts[%d]: duplicate id %q", i, id))
		}
		seen[id] = true
	}
	if cfg.DefaultAccount != "" && !seen[cfg.DefaultAccount] {
		errs = append(errs, fmt.Errorf("default_account %q is not defined in accounts", cfg.DefaultAccount))
	}

	if envVarPattern.MatchString(cfg.API.APIKey) {
		matches := envVarPattern.FindStringSubmatch(cfg.API.APIKey)
		errs = append(errs, fmt.Errorf("api.api_key: environment variable ${%s} is not set", matches[1]))
	}

	return errors.Join(errs...)
}
