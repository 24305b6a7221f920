package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ScratchPrefix marks directories owned by the manager. Cleanup never touches
// anything else, so the base directory may be shared (e.g. os.TempDir()).
const ScratchPrefix = "wsfetch_"

// fsWorkspaceManager manages per-job scratch directories on local disk.
type fsWorkspaceManager struct {
	baseDir string
	now     func() time.Time
	newID   func() string
}

var _ Manager = (*fsWorkspaceManager)(nil)

// NewFSManager creates a filesystem-backed scratch manager rooted at baseDir.
func NewFSManager(baseDir string) (*fsWorkspaceManager, error) {
	trimmed := strings.TrimSpace(baseDir)
	if trimmed == "" {
		return nil, fmt.Errorf("workspace base directory is empty")
	}

	return &fsWorkspaceManager{
		baseDir: filepath.Clean(trimmed),
		now:     time.Now,
		newID:   func() string { return uuid.NewString()[:8] },
	}, nil
}

// Create allocates <prefix><workshopID>-<random> under the base directory.
func (m *fsWorkspaceManager) Create(ctx context.Context, workshopID string) (Scratch, error) {
	if err := ctx.Err(); err != nil {
		return Scratch{}, err
	}
	if err := validateWorkshopID(workshopID); err != nil {
		return Scratch{}, err
	}

	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return Scratch{}, fmt.Errorf("create workspace base directory: %w", err)
	}

	name := ScratchPrefix + workshopID + "-" + m.newID()
	path := filepath.Join(m.baseDir, name)
	if err := os.Mkdir(path, 0o755); err != nil {
		return Scratch{}, fmt.Errorf("create scratch for item %q: %w", workshopID, err)
	}

	return Scratch{Name: name, WorkshopID: workshopID, Dir: path}, nil
}

// Remove deletes the scratch directory and everything under it.
func (m *fsWorkspaceManager) Remove(_ context.Context, s Scratch) error {
	if s.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(s.Dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove scratch %q: %w", s.Name, err)
	}
	return nil
}

// Cleanup removes scratch directories older than olderThan based on directory
// modification time.
func (m *fsWorkspaceManager) Cleanup(ctx context.Context, olderThan time.Duration) (CleanupReport, error) {
	if err := ctx.Err(); err != nil {
		return CleanupReport{}, err
	}
	if olderThan <= 0 {
		return CleanupReport{}, fmt.Errorf("olderThan must be positive")
	}

	entries, err := os.ReadDir(m.baseDir)
	if os.IsNotExist(err) {
		return CleanupReport{}, nil
	}
	if err != nil {
		return CleanupReport{}, fmt.Errorf("read workspace base directory: %w", err)
	}

	cutoff := m.now().Add(-olderThan)
	report := CleanupReport{}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), ScratchPrefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return report, fmt.Errorf("read scratch entry info %q: %w", entry.Name(), err)
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(m.baseDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return report, fmt.Errorf("remove scratch %q: %w", entry.Name(), err)
		}
		report.DeletedDirs++
	}

	return report, nil
}

func validateWorkshopID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("workshop id is empty")
	}
	if trimmed != id {
		return fmt.Errorf("workshop id %q has surrounding whitespace", id)
	}
	if trimmed == "." || trimmed == ".." {
		return fmt.Errorf("workshop id %q is invalid", id)
	}
	if strings.ContainsAny(trimmed, `/\`) {
		return fmt.Errorf("workshop id %q must not contain path separators", id)
	}
	if filepath.Clean(trimmed) != trimmed {
		return fmt.Errorf("workshop id %q is invalid", id)
	}
	return nil
}
