// Package relocate moves downloaded scenario files out of a scratch directory
// into the game's scenario folder and then removes the scratch directory.
package relocate

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

const DefaultExtension = ".sce"

// MovedFile is one relocated artifact.
type MovedFile struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Digest string `json:"blake3"`
}

// Result reports what a relocation did.
type Result struct {
	MovedCount int         `json:"moved_count"`
	SourceDir  string      `json:"source_dir"`
	Files      []MovedFile `json:"files,omitempty"`
	Failed     []string    `json:"failed,omitempty"`
}

// Relocator moves files matching an extension, flattening directory structure.
// Files already present at the destination are overwritten.
type Relocator struct {
	ext    string
	logger *slog.Logger
}

func New(ext string, logger *slog.Logger) *Relocator {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Relocator{ext: strings.ToLower(ext), logger: logger}
}

// Relocate moves every matching file under scratchDir into destDir, then removes
// scratchDir. A missing scratchDir yields an empty result and no error, so
// calling Relocate twice is safe. Per-file failures do not stop the walk; they
// are listed in Result.Failed and joined into the returned error.
func (r *Relocator) Relocate(ctx context.Context, scratchDir, destDir string) (Result, error) {
	res := Result{SourceDir: scratchDir}
	if strings.TrimSpace(scratchDir) == "" {
		return res, nil
	}

	var errs []error
	walkErr := filepath.WalkDir(scratchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			errs = append(errs, err)
			if d != nil && d.IsDir() && path != scratchDir {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() || !strings.HasSuffix(strings.ToLower(d.Name()), r.ext) {
			return nil
		}

		dst := filepath.Join(destDir, d.Name())
		digest, err := moveFile(path, dst)
		if err != nil {
			res.Failed = append(res.Failed, path)
			errs = append(errs, fmt.Errorf("move %s: %w", d.Name(), err))
			r.logger.Warn("failed to move file", "file", d.Name(), "error", err)
			return nil
		}

		res.MovedCount++
		res.Files = append(res.Files, MovedFile{Name: d.Name(), Path: dst, Digest: digest})
		r.logger.Info("moved file", "file", d.Name(), "dest", destDir, "blake3", digest)
		return nil
	})
	if walkErr != nil {
		errs = append(errs, fmt.Errorf("walk scratch: %w", walkErr))
	}

	if err := os.RemoveAll(scratchDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("remove scratch: %w", err))
	}

	return res, errors.Join(errs...)
}

// moveFile renames src over dst, falling back to copy and remove when a rename
// is not possible (e.g. across devices). It returns the BLAKE3 digest of dst.
func moveFile(src, dst string) (string, error) {
	if err := os.Rename(src, dst); err == nil {
		return digestFile(dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}

	h := blake3.New()
	if _, err := io.Copy(io.MultiWriter(out, h), in); err != nil {
		_ = out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	_ = in.Close()
	if err := os.Remove(src); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func digestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
