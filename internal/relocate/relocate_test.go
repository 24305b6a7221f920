package relocate

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRelocateMovesMatchingFilesFlat(t *testing.T) {
	scratch := filepath.Join(t.TempDir(), "scratch")
	dest := t.TempDir()

	writeFile(t, filepath.Join(scratch, "a.sce"), "alpha")
	writeFile(t, filepath.Join(scratch, "deep", "nested", "B.SCE"), "bravo")
	writeFile(t, filepath.Join(scratch, "readme.txt"), "ignore me")
	writeFile(t, filepath.Join(scratch, "sce"), "no extension")

	res, err := New(".sce", nil).Relocate(context.Background(), scratch, dest)
	require.NoError(t, err)

	assert.Equal(t, 2, res.MovedCount)
	assert.Equal(t, scratch, res.SourceDir)
	assert.Empty(t, res.Failed)

	got, err := os.ReadFile(filepath.Join(dest, "B.SCE"))
	require.NoError(t, err)
	assert.Equal(t, "bravo", string(got))
	assert.FileExists(t, filepath.Join(dest, "a.sce"))
	assert.NoFileExists(t, filepath.Join(dest, "readme.txt"))

	names := []string{}
	for _, f := range res.Files {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"B.SCE", "a.sce"}, names)

	_, statErr := os.Stat(scratch)
	assert.True(t, os.IsNotExist(statErr), "scratch must be removed")
}

func TestRelocateOverwritesExisting(t *testing.T) {
	scratch := filepath.Join(t.TempDir(), "scratch")
	dest := t.TempDir()
	writeFile(t, filepath.Join(dest, "map.sce"), "old")
	writeFile(t, filepath.Join(scratch, "map.sce"), "new")

	res, err := New("", nil).Relocate(context.Background(), scratch, dest)
	require.NoError(t, err)
	assert.Equal(t, 1, res.MovedCount)

	got, err := os.ReadFile(filepath.Join(dest, "map.sce"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestRelocateDigest(t *testing.T) {
	scratch := filepath.Join(t.TempDir(), "scratch")
	dest := t.TempDir()
	writeFile(t, filepath.Join(scratch, "map.sce"), "payload")

	res, err := New(".sce", nil).Relocate(context.Background(), scratch, dest)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)

	sum := blake3.Sum256([]byte("payload"))
	assert.Equal(t, hex.EncodeToString(sum[:]), res.Files[0].Digest)
}

func TestRelocateIsIdempotent(t *testing.T) {
	scratch := filepath.Join(t.TempDir(), "scratch")
	dest := t.TempDir()
	writeFile(t, filepath.Join(scratch, "one.sce"), "1")

	r := New(".sce", nil)
	first, err := r.Relocate(context.Background(), scratch, dest)
	require.NoError(t, err)
	assert.Equal(t, 1, first.MovedCount)

	second, err := r.Relocate(context.Background(), scratch, dest)
	require.NoError(t, err)
	assert.Equal(t, 0, second.MovedCount)
}

func TestRelocateNothingToMove(t *testing.T) {
	scratch := filepath.Join(t.TempDir(), "scratch")
	dest := t.TempDir()
	writeFile(t, filepath.Join(scratch, "other.bin"), "x")

	res, err := New(".sce", nil).Relocate(context.Background(), scratch, dest)
	require.NoError(t, err)
	assert.Equal(t, 0, res.MovedCount)
	_, statErr := os.Stat(scratch)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRelocateEmptyScratchPath(t *testing.T) {
	res, err := New(".sce", nil).Relocate(context.Background(), "", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, res.MovedCount)
}

func TestRelocateReportsFailedMoves(t *testing.T) {
	scratch := filepath.Join(t.TempDir(), "scratch")
	writeFile(t, filepath.Join(scratch, "map.sce"), "x")
	missingDest := filepath.Join(t.TempDir(), "does-not-exist")

	res, err := New(".sce", nil).Relocate(context.Background(), scratch, missingDest)
	require.Error(t, err)
	assert.Equal(t, 0, res.MovedCount)
	assert.Len(t, res.Failed, 1)
}

func TestNewNormalizesExtension(t *testing.T) {
	for _, ext := range []string{"SCE", ".Sce", "  "} {
		t.Run(ext, func(t *testing.T) {
			scratch := filepath.Join(t.TempDir(), "scratch")
			writeFile(t, filepath.Join(scratch, "upper.SCE"), "x")
			writeFile(t, filepath.Join(scratch, "notes.txt"), "x")
			writeFile(t, filepath.Join(scratch, "noext"), "x")
			dest := t.TempDir()

			res, err := New(ext, nil).Relocate(context.Background(), scratch, dest)
			require.NoError(t, err)
			assert.Equal(t, 1, res.MovedCount)
			assert.FileExists(t, filepath.Join(dest, "upper.SCE"))
		})
	}
}
