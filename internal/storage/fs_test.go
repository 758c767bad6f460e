package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/corpus-builder/internal/core"
	"github.com/book-expert/corpus-builder/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ core.ArtifactStore = (*storage.FS)(nil)

func newStore(t *testing.T) (*storage.FS, string) {
	t.Helper()

	root := t.TempDir()

	store, err := storage.New(root)
	require.NoError(t, err)

	return store, root
}

func TestNew_EmptyRoot(t *testing.T) {
	t.Parallel()

	_, err := storage.New("")
	require.ErrorIs(t, err, storage.ErrRootEmpty)
}

func TestFS_StoreCreatesParents(t *testing.T) {
	t.Parallel()

	store, root := newStore(t)
	relPath := "clean/sv/wikipedia/Stockholm.txt"

	assert.False(t, store.Exists(relPath))

	require.NoError(t, store.Store(relPath, "stockholm är en stad"))

	assert.True(t, store.Exists(relPath))

	data, err := os.ReadFile(filepath.Join(root, "clean", "sv", "wikipedia", "Stockholm.txt"))
	require.NoError(t, err)
	assert.Equal(t, "stockholm är en stad", string(data))

	content, err := store.Load(relPath)
	require.NoError(t, err)
	assert.Equal(t, "stockholm är en stad", content)
}

func TestFS_StoreOverwrites(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)

	require.NoError(t, store.Store("compiled/en/compiled.txt", "first"))
	require.NoError(t, store.Store("compiled/en/compiled.txt", "second"))

	content, err := store.Load("compiled/en/compiled.txt")
	require.NoError(t, err)
	assert.Equal(t, "second", content)
}

func TestFS_LoadMissing(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)

	_, err := store.Load("downloads/en/gutenberg/1.txt")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFS_RejectsEscapingPaths(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)

	for _, relPath := range []string{"../outside.txt", "/etc/passwd", "clean/../../x"} {
		err := store.Store(relPath, "x")
		require.ErrorIs(t, err, storage.ErrInvalidPath, "path %q", relPath)
		assert.False(t, store.Exists(relPath))
	}
}

func TestFS_ExistsIgnoresDirectories(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)

	require.NoError(t, store.Store("clean/en/gutenberg/1.txt", "x"))

	assert.False(t, store.Exists("clean/en/gutenberg"))
}

func TestFS_List(t *testing.T) {
	t.Parallel()

	store, root := newStore(t)
	dir := storage.SourceDir(storage.StageDownloads, "en", "gutenberg")

	names, err := store.List(dir)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.Store(dir+"/20.txt", "b"))
	require.NoError(t, store.Store(dir+"/10.txt", "a"))
	require.NoError(t, store.Store(dir+"/nested/3.txt", "c"))

	leftover := filepath.Join(root, filepath.FromSlash(dir), "30.txt.tmp-12345")
	require.NoError(t, os.WriteFile(leftover, []byte("partial"), 0o600))

	names, err = store.List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.txt", "20.txt"}, names)
}

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "a", "b")

	require.NoError(t, storage.EnsureDir(dir))
	require.NoError(t, storage.EnsureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFS_StoreFailureLeavesNoTemporaryFile(t *testing.T) {
	t.Parallel()

	store, root := newStore(t)

	require.NoError(t, store.Store("compiled/en/3-grams.txt/nested.txt", "blocks the target"))

	err := store.Store("compiled/en/3-grams.txt", "a b c")
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "compiled", "en"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "3-grams.txt", entries[0].Name())
	assert.True(t, entries[0].IsDir())
}
