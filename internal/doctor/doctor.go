// Package doctor validates wsfetch configuration and the local environment a
// run depends on.
package doctor

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"

	"github.com/mattjoyce/wsfetch/internal/config"
	"github.com/mattjoyce/wsfetch/internal/settings"
	"github.com/mattjoyce/wsfetch/internal/storage"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
	// Downloader is the located executable, when found.
	Downloader string `json:"downloader,omitempty"`
	// ScenariosDir is the resolved destination, when valid.
	ScenariosDir string `json:"scenarios_dir,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Finder locates the downloader executable.
type Finder interface {
	Find() (string, error)
}

// Doctor checks a loaded config against the machine it runs on.
type Doctor struct {
	cfg      *config.Config
	finder   Finder
	store    settings.Store
	resolver settings.Resolver
	detectFS func(path string) (storage.Filesystem, bool)
}

// New creates a Doctor. store may be nil when the state database could not be
// opened; the game root check then reports an error.
func New(cfg *config.Config, finder Finder, store settings.Store) *Doctor {
	return &Doctor{
		cfg:      cfg,
		finder:   finder,
		store:    store,
		resolver: settings.NewResolver(cfg.Relocate.ScenariosSubpath),
		detectFS: storage.DetectFilesystem,
	}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}

	d.checkDownloader(r)
	d.checkGameRoot(ctx, r)
	d.checkAccounts(r)
	d.checkWorkspace(r)
	d.checkAPI(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) checkDownloader(r *Result) {
	if d.finder == nil {
		d.addError(r, "downloader", "downloader.executable", "no downloader locator configured")
		return
	}
	path, err := d.finder.Find()
	if err != nil {
		d.addError(r, "downloader", "downloader.search_roots", err.Error())
		return
	}
	r.Downloader = path
	if d.cfg.Downloader.Timeout == 0 {
		d.addWarning(r, "downloader", "downloader.timeout",
			"no downloader timeout set; a hung download blocks the run until canceled")
	}
}

func (d *Doctor) checkGameRoot(ctx context.Context, r *Result) {
	if d.store == nil {
		d.addError(r, "game_root", "state.path", "state database unavailable; cannot read the saved game root")
		return
	}
	dest, err := d.resolver.LoadDestination(ctx, d.store)
	if err != nil {
		d.addError(r, "game_root", "state.path", fmt.Sprintf("read saved game root: %v", err))
		return
	}
	switch {
	case !dest.Configured():
		d.addError(r, "game_root", "", "no game root selected; run `wsfetch gameroot set <dir>`")
	case !dest.Valid():
		d.addError(r, "game_root", "", fmt.Sprintf("saved game root %s is no longer valid: %v", dest.GameRoot, dest.Err))
	default:
		r.ScenariosDir = dest.ScenariosDir
	}
}

func (d *Doctor) checkAccounts(r *Result) {
	if len(d.cfg.Accounts) == 0 {
		d.addError(r, "accounts", "accounts", "no downloader accounts configured")
		return
	}

	unresolved := d.cfg.UnresolvedSecrets()
	ids := make([]string, 0, len(unresolved))
	for id := range unresolved {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		d.addError(r, "accounts", fmt.Sprintf("accounts[%s].secret", id),
			fmt.Sprintf("account %q: environment variable ${%s} is not set", id, unresolved[id]))
	}

	for i, a := range d.cfg.Accounts {
		if _, ok := unresolved[a.ID]; ok {
			continue
		}
		if a.Secret == "" {
			d.addError(r, "accounts", fmt.Sprintf("accounts[%d].secret", i),
				fmt.Sprintf("account %q has no secret", a.ID))
		}
	}

	if d.cfg.DefaultAccount == "" && len(d.cfg.Accounts) > 1 {
		d.addWarning(r, "accounts", "default_account",
			"several accounts and no default_account; runs must pass --account")
	}
}

func (d *Doctor) checkWorkspace(r *Result) {
	dir := d.cfg.WorkspaceDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		d.addError(r, "workspace", "workspace.dir", fmt.Sprintf("cannot create %s: %v", dir, err))
		return
	}
	tmp, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		d.addError(r, "workspace", "workspace.dir", fmt.Sprintf("%s is not writable: %v", dir, err))
		return
	}
	name := tmp.Name()
	_ = tmp.Close()
	_ = os.Remove(name)

	if r.ScenariosDir != "" && filepath.VolumeName(dir) != filepath.VolumeName(r.ScenariosDir) {
		d.addWarning(r, "workspace", "workspace.dir",
			"workspace and scenarios directory are on different volumes; files are copied instead of renamed")
	}
	if fs, ok := d.detectFS(dir); ok && fs.Network {
		d.addWarning(r, "workspace", "workspace.dir",
			fmt.Sprintf("workspace %s is on network filesystem %s; point workspace.dir at local disk", dir, fs))
	}
}

func (d *Doctor) checkAPI(r *Result) {
	if d.cfg.API.Listen == "" {
		return
	}
	host, _, err := net.SplitHostPort(d.cfg.API.Listen)
	if err != nil {
		d.addError(r, "api", "api.listen", fmt.Sprintf("invalid listen address %q: %v", d.cfg.API.Listen, err))
		return
	}
	if d.cfg.API.APIKey != "" {
		return
	}
	ip := net.ParseIP(host)
	if host == "localhost" || (ip != nil && ip.IsLoopback()) {
		return
	}
	d.addWarning(r, "api", "api.api_key", "API listens on a non-loopback address without an api_key")
}
