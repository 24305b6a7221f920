package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultScenariosSubpath is where the game keeps scenario files, relative to
// the game root.
var DefaultScenariosSubpath = filepath.Join("FPSAimTrainer", "Saved", "SaveGames", "Scenarios")

// ErrInvalidGameRoot is returned when a game root has no scenarios directory.
var ErrInvalidGameRoot = errors.New("invalid game root")

// Resolver validates game roots against a scenarios subpath.
type Resolver struct {
	Subpath string
}

func NewResolver(subpath string) Resolver {
	subpath = strings.TrimSpace(subpath)
	if subpath == "" {
		subpath = DefaultScenariosSubpath
	}
	return Resolver{Subpath: filepath.FromSlash(subpath)}
}

// ScenariosDir returns the scenarios directory under root after checking it
// exists and is a directory.
func (r Resolver) ScenariosDir(root string) (string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return "", fmt.Errorf("%w: game root is empty", ErrInvalidGameRoot)
	}

	dir := filepath.Join(root, r.Subpath)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s does not exist", ErrInvalidGameRoot, dir)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidGameRoot, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidGameRoot, dir)
	}
	return dir, nil
}

// SelectGameRoot validates root and persists it. An invalid root leaves the
// stored value untouched.
func (r Resolver) SelectGameRoot(ctx context.Context, store Store, root string) (string, error) {
	dir, err := r.ScenariosDir(root)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(strings.TrimSpace(root))
	if err != nil {
		return "", fmt.Errorf("resolve game root: %w", err)
	}
	if err := store.Set(ctx, KeyGameRoot, abs); err != nil {
		return "", err
	}
	return dir, nil
}

// Destination describes the saved game root and whether it still resolves.
type Destination struct {
	GameRoot     string
	ScenariosDir string
	// Err is set when a saved root no longer resolves.
	Err error
}

func (d Destination) Configured() bool { return d.GameRoot != "" }
func (d Destination) Valid() bool      { return d.ScenariosDir != "" && d.Err == nil }

// LoadDestination reads the saved game root and revalidates it.
func (r Resolver) LoadDestination(ctx context.Context, store Store) (Destination, error) {
	root, ok, err := store.Get(ctx, KeyGameRoot)
	if err != nil {
		return Destination{}, err
	}
	if !ok || strings.TrimSpace(root) == "" {
		return Destination{}, nil
	}

	dest := Destination{GameRoot: root}
	dir, err := r.ScenariosDir(root)
	if err != nil {
		dest.Err = err
		return dest, nil
	}
	dest.ScenariosDir = dir
	return dest, nil
}
