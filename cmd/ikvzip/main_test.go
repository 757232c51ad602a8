package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/ikv"
	"github.com/meigma/ikv/internal/testutil"
)

// run executes the CLI with args and returns stdout.
func run(t *testing.T, cfg string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newApp(&out, &errOut).command()
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	return testutil.WriteFile(t, t.TempDir(), "ikvzip.yaml", []byte(body))
}

func TestPackAndRead(t *testing.T) {
	t.Parallel()

	src := testutil.WriteTree(t, map[string][]byte{
		"a/b.txt":   []byte("hello"),
		"a/b.class": nil,
		"big.txt":   testutil.Text(40 << 10),
		"debug.log": []byte("skip me"),
	})
	target := filepath.Join(t.TempDir(), "out.zip")
	cfg := writeConfig(t, "dirs: resource\n")

	out, err := run(t, cfg, "pack", src, target, "--exclude", "*.log")
	require.NoError(t, err)
	assert.Contains(t, out, "packed")

	a, err := ikv.Open(target)
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, []string{"a"}, a.Dirs())
	e, ok := a.Lookup("big.txt")
	require.True(t, ok)
	assert.Equal(t, ikv.Deflated, e.Method)

	out, err = run(t, cfg, "ls", target)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b.class", "a/b.txt", "big.txt"}, strings.Fields(out))

	out, err = run(t, cfg, "ls", "-l", target)
	require.NoError(t, err)
	assert.Contains(t, out, "deflated")
	assert.Contains(t, out, "stored")

	out, err = run(t, cfg, "cat", target, "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	_, err = run(t, cfg, "cat", target, "missing.txt")
	require.Error(t, err)

	out, err = run(t, cfg, "verify", target, "--workers", "2")
	require.NoError(t, err)
	assert.Equal(t, "ok: 3 entries\n", out)

	out, err = run(t, cfg, "inspect", target)
	require.NoError(t, err)
	assert.Contains(t, out, "digest:")
	assert.Contains(t, out, "sha256:")
	assert.Contains(t, out, "zip64:")
	assert.Contains(t, out, "index entries:")
}

func TestConfigFileSetsDefaults(t *testing.T) {
	t.Parallel()

	src := testutil.WriteTree(t, map[string][]byte{"big.txt": testutil.Text(40 << 10)})
	target := filepath.Join(t.TempDir(), "out.zip")
	cfg := writeConfig(t, "level: 0\nindex: false\n")

	_, err := run(t, cfg, "pack", src, target)
	require.NoError(t, err)

	a, err := ikv.Open(target)
	require.NoError(t, err)
	defer a.Close()
	e, ok := a.Lookup("big.txt")
	require.True(t, ok)
	assert.Equal(t, ikv.Stored, e.Method)
	_, ok = a.Index()
	assert.False(t, ok)

	out, err := run(t, cfg, "inspect", target)
	require.NoError(t, err)
	assert.Contains(t, out, "none")
}

func TestFlagsOverrideConfig(t *testing.T) {
	t.Parallel()

	src := testutil.WriteTree(t, map[string][]byte{"big.txt": testutil.Text(40 << 10)})
	target := filepath.Join(t.TempDir(), "out.zip")
	cfg := writeConfig(t, "level: 0\n")

	_, err := run(t, cfg, "pack", src, target, "--level", "9")
	require.NoError(t, err)

	a, err := ikv.Open(target)
	require.NoError(t, err)
	defer a.Close()
	e, ok := a.Lookup("big.txt")
	require.True(t, ok)
	assert.Equal(t, ikv.Deflated, e.Method)
}

func TestPackErrors(t *testing.T) {
	t.Parallel()

	cfg := writeConfig(t, "")
	src := testutil.WriteTree(t, map[string][]byte{"a.txt": []byte("a")})
	target := filepath.Join(t.TempDir(), "out.zip")

	_, err := run(t, cfg, "pack", src, target, "--dirs", "some")
	require.ErrorContains(t, err, "unknown directory mode")

	_, err = run(t, cfg, "pack", src)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(target, []byte("old"), 0o600))
	_, err = run(t, cfg, "pack", src, target, "--overwrite=false")
	require.ErrorIs(t, err, os.ErrExist)

	_, err = run(t, filepath.Join(t.TempDir(), "missing.yaml"), "ls", target)
	require.ErrorContains(t, err, "read config")
}
