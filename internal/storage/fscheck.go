package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Filesystem identifies the filesystem a path lives on.
type Filesystem struct {
	// Type is the platform name (apfs, nfs) or, on Linux, a known name or the
	// hex superblock magic.
	Type    string
	Network bool
}

func (f Filesystem) String() string { return f.Type }

// Filesystem names that are remote mounts.
var remoteTypes = map[string]struct{}{
	"9p":     {},
	"afpfs":  {},
	"afs":    {},
	"ceph":   {},
	"cifs":   {},
	"nfs":    {},
	"smb2":   {},
	"smbfs":  {},
	"webdav": {},
}

type fsDetector func(path string) (string, error)

// DetectFilesystem reports the filesystem holding path. Paths that do not
// exist yet are checked through their nearest existing parent. ok is false
// when the platform cannot tell.
func DetectFilesystem(path string) (fs Filesystem, ok bool) {
	return detectWith(path, detectFilesystemType)
}

func detectWith(path string, detect fsDetector) (Filesystem, bool) {
	existing, err := nearestExistingPath(path)
	if err != nil {
		return Filesystem{}, false
	}
	name, err := detect(existing)
	if err != nil {
		return Filesystem{}, false
	}
	name = strings.ToLower(strings.TrimSpace(name))
	_, remote := remoteTypes[name]
	return Filesystem{Type: name, Network: remote}, true
}

// checkStateFilesystem refuses a state database on a network mount.
func checkStateFilesystem(path string, detect fsDetector) error {
	if path == "" {
		return fmt.Errorf("sqlite path is empty")
	}
	if _, err := nearestExistingPath(path); err != nil {
		return fmt.Errorf("resolve database path %q: %w", path, err)
	}

	fs, ok := detectWith(path, detect)
	if !ok || !fs.Network {
		return nil
	}
	return fmt.Errorf(
		"state database %q is on network filesystem %q; SQLite requires a local filesystem for reliable locking. Set state.path in the wsfetch config to a file on local disk",
		path, fs.Type,
	)
}

func nearestExistingPath(path string) (string, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	for {
		_, err := os.Stat(dir)
		switch {
		case err == nil:
			return dir, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("stat %q: %w", dir, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no existing parent for %q", path)
		}
		dir = parent
	}
}
