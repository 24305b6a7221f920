// Package tool finds the external downloader executable on disk.
package tool

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// ErrNotFound is returned when no file with the expected name exists under any
// search root.
var ErrNotFound = errors.New("downloader executable not found")

var errFound = errors.New("found")

// DefaultName is the executable name searched for when none is configured.
func DefaultName() string {
	if runtime.GOOS == "windows" {
		return "DepotDownloaderMod.exe"
	}
	return "DepotDownloaderMod"
}

// Locator searches a set of roots for a fixed file name and caches the first
// hit until Reset is called.
type Locator struct {
	name  string
	roots []string

	mu     sync.Mutex
	cached string
}

// NewLocator builds a locator for name. A name containing a path separator is
// treated as an explicit path and no walking happens.
func NewLocator(name string, roots ...string) *Locator {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName()
	}
	var clean []string
	for _, r := range roots {
		if r = strings.TrimSpace(r); r != "" {
			clean = append(clean, r)
		}
	}
	if len(clean) == 0 {
		clean = []string{"."}
	}
	return &Locator{name: name, roots: clean}
}

func (l *Locator) Name() string { return l.name }

// Reset drops the cached path so the next Find walks again.
func (l *Locator) Reset() {
	l.mu.Lock()
	l.cached = ""
	l.mu.Unlock()
}

// Find returns the absolute path of the executable. Misses are not cached.
func (l *Locator) Find() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != "" {
		if _, err := os.Stat(l.cached); err == nil {
			return l.cached, nil
		}
		l.cached = ""
	}

	path, err := l.search()
	if err != nil {
		return "", err
	}
	l.cached = path
	return path, nil
}

func (l *Locator) search() (string, error) {
	if strings.ContainsAny(l.name, `/\`) {
		abs, err := filepath.Abs(l.name)
		if err != nil {
			return "", fmt.Errorf("resolve %q: %w", l.name, err)
		}
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			return "", fmt.Errorf("%w: %s", ErrNotFound, abs)
		}
		return abs, nil
	}

	for _, root := range l.roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return "", fmt.Errorf("resolve search root %q: %w", root, err)
		}

		var hit string
		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				// Unreadable subtrees are skipped rather than aborting the search.
				if d != nil && d.IsDir() && path != absRoot {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !l.matches(d.Name()) {
				return nil
			}
			hit = path
			return errFound
		})
		if hit != "" {
			return hit, nil
		}
		if err != nil && !errors.Is(err, errFound) {
			return "", fmt.Errorf("scan search root %s: %w", absRoot, err)
		}
	}

	return "", fmt.Errorf("%w: %s under %s", ErrNotFound, l.name, strings.Join(l.roots, ", "))
}

func (l *Locator) matches(name string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(name, l.name)
	}
	return name == l.name
}
