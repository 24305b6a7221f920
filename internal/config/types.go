package config

import (
	"time"

	"github.com/mattjoyce/wsfetch/internal/relocate"
	"github.com/mattjoyce/wsfetch/internal/runner"
	"github.com/mattjoyce/wsfetch/internal/settings"
	"github.com/mattjoyce/wsfetch/internal/steam"
	"github.com/mattjoyce/wsfetch/internal/tool"
)

// Config represents the complete wsfetch configuration.
type Config struct {
	Service        ServiceConfig    `yaml:"service"`
	State          StateConfig      `yaml:"state"`
	Workshop       WorkshopConfig   `yaml:"workshop"`
	Downloader     DownloaderConfig `yaml:"downloader"`
	Relocate       RelocateConfig   `yaml:"relocate"`
	Workspace      WorkspaceConfig  `yaml:"workspace"`
	Accounts       []AccountConfig  `yaml:"accounts"`
	DefaultAccount string           `yaml:"default_account,omitempty"`
	API            APIConfig        `yaml:"api,omitempty"`

	// SourcePath is the file the config was loaded from, empty for defaults.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines logging settings.
type ServiceConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// StateConfig defines where settings and history live.
type StateConfig struct {
	Path     string `yaml:"path"`
	LockPath string `yaml:"lock_path,omitempty"`
}

// WorkshopConfig defines the Steam side of input resolution.
type WorkshopConfig struct {
	AppID              string        `yaml:"app_id"`
	CollectionEndpoint string        `yaml:"collection_endpoint"`
	LookupTimeout      time.Duration `yaml:"lookup_timeout"`
	CacheSize          int           `yaml:"cache_size"`
}

// DownloaderConfig defines how the external downloader is found and run.
type DownloaderConfig struct {
	Executable       string        `yaml:"executable"`
	SearchRoots      []string      `yaml:"search_roots"`
	Timeout          time.Duration `yaml:"timeout,omitempty"` // 0 = no limit
	TerminationGrace time.Duration `yaml:"termination_grace"`
}

// RelocateConfig defines which files are kept and where they go.
type RelocateConfig struct {
	Extension        string `yaml:"extension"`
	ScenariosSubpath string `yaml:"scenarios_subpath"`
}

// WorkspaceConfig defines scratch directory placement.
type WorkspaceConfig struct {
	Dir        string        `yaml:"dir"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

// AccountConfig is one downloader login. Secret is usually ${ENV_VAR}.
type AccountConfig struct {
	ID     string `yaml:"id"`
	Label  string `yaml:"label,omitempty"`
	Secret string `yaml:"secret"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Listen string `yaml:"listen"`
	APIKey string `yaml:"api_key,omitempty"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		State: StateConfig{
			Path: "./data/wsfetch.db",
		},
		Workshop: WorkshopConfig{
			AppID:              runner.DefaultAppID,
			CollectionEndpoint: steam.DefaultEndpoint,
			LookupTimeout:      steam.DefaultTimeout,
			CacheSize:          256,
		},
		Downloader: DownloaderConfig{
			Executable:       tool.DefaultName(),
			SearchRoots:      []string{"."},
			TerminationGrace: 5 * time.Second,
		},
		Relocate: RelocateConfig{
			Extension:        relocate.DefaultExtension,
			ScenariosSubpath: settings.DefaultScenariosSubpath,
		},
		Workspace: WorkspaceConfig{
			StaleAfter: 24 * time.Hour,
		},
		API: APIConfig{
			Listen: "127.0.0.1:8787",
		},
	}
}
