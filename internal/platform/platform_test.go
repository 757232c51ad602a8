package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, []byte("mapped contents"), 0o600))

	f, err := os.Open(path)
	require.NoError(t, err)
	m, err := MapFile(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Equal(t, "mapped contents", string(m.Bytes()))
	assert.Equal(t, 15, m.Len())
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())
}

func TestMapFileEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	m, err := MapFile(f)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
	require.NoError(t, m.Close())
}

func TestReplacementCommit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.zip")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o600))

	r, err := CreateReplacement(dest, 0o644)
	require.NoError(t, err)
	_, err = r.File().Write([]byte("new"))
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got), "destination untouched before commit")

	require.NoError(t, r.File().Close())
	require.NoError(t, r.Commit())

	got, err = os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
	assert.NoFileExists(t, r.TempPath())
}

func TestReplacementDiscard(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.zip")

	r, err := CreateReplacement(dest, 0o644)
	require.NoError(t, err)
	assert.FileExists(t, r.TempPath())

	require.NoError(t, r.Discard())
	assert.NoFileExists(t, r.TempPath())
	assert.NoFileExists(t, dest)
	require.NoError(t, r.Discard())
}

func TestOpenSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "real"), []byte("xyz"), 0o600))
	require.NoError(t, os.Symlink("real", filepath.Join(dir, "link")))

	root, err := os.OpenRoot(dir)
	require.NoError(t, err)
	defer root.Close()

	f, info, err := OpenSource(root, "real")
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size())
	assert.True(t, info.Mode().IsRegular())
	require.NoError(t, f.Close())

	_, _, err = OpenSource(root, "link")
	require.ErrorIs(t, err, ErrSymlink)

	// A link whose target stays inside the root is rejected as well.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.Symlink("../real", filepath.Join(dir, "sub", "inner")))
	f, _, err = OpenSource(root, "sub/inner")
	if f != nil {
		_ = f.Close()
	}
	require.ErrorIs(t, err, ErrSymlink)

	_, _, err = OpenSource(root, "missing")
	require.ErrorIs(t, err, os.ErrNotExist)
}
