// Package testutil provides fixtures shared by the package tests.
package testutil

import (
	"archive/zip"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteTree creates files under a fresh temporary directory and returns it.
// Names are slash-separated; parent directories are created as needed.
func WriteTree(tb testing.TB, files map[string][]byte) string {
	tb.Helper()
	dir := tb.TempDir()
	for name, data := range files {
		WriteFile(tb, dir, name, data)
	}
	return dir
}

// WriteFile writes data to dir/name and returns the full path.
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(tb, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(tb, os.WriteFile(p, data, 0o644))
	return p
}

// RandomBytes returns n pseudo-random bytes. The same seed always yields
// the same bytes.
func RandomBytes(seed int64, n int) []byte {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic fixtures
	b := make([]byte, n)
	_, _ = rng.Read(b)
	return b
}

// Text returns n bytes of repetitive text that deflates well.
func Text(n int) []byte {
	const line = "the quick brown fox jumps over the lazy dog\n"
	return []byte(strings.Repeat(line, n/len(line)+1)[:n])
}

// ZipEntry is an entry as seen by the standard library's archive/zip.
type ZipEntry struct {
	Method uint16
	CRC32  uint32
	Data   []byte
	Dir    bool
}

// ReadZip reads every entry of the archive at path with archive/zip and
// returns them keyed by name. Directory names keep their trailing slash.
func ReadZip(tb testing.TB, path string) map[string]ZipEntry {
	tb.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(tb, err)
	defer zr.Close()

	out := make(map[string]ZipEntry, len(zr.File))
	for _, f := range zr.File {
		e := ZipEntry{Method: f.Method, CRC32: f.CRC32, Dir: strings.HasSuffix(f.Name, "/")}
		if !e.Dir {
			rc, err := f.Open()
			require.NoError(tb, err, f.Name)
			e.Data, err = io.ReadAll(rc)
			require.NoError(tb, err, f.Name)
			require.NoError(tb, rc.Close(), f.Name)
		}
		out[f.Name] = e
	}
	return out
}
