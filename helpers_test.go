package ikv

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

type backendCase struct {
	name string
	opts []CreateOption
}

// backendCases returns the output backends available on this platform.
func backendCases() []backendCase {
	cases := []backendCase{{name: "file", opts: []CreateOption{CreateWithMapped(false)}}}
	if runtime.GOOS == "linux" || runtime.GOOS == "darwin" {
		cases = append(cases, backendCase{name: "mapped", opts: []CreateOption{CreateWithMapped(true)}})
	}
	return cases
}

// build creates an archive in a temp dir, lets fill add entries and closes it.
func build(t *testing.T, fill func(w *Writer), opts ...CreateOption) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.zip")
	w, err := Create(path, opts...)
	require.NoError(t, err)
	fill(w)
	require.NoError(t, w.Close())
	return path
}

func openArchive(t *testing.T, path string, opts ...OpenOption) *Archive {
	t.Helper()
	a, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// contents reads every file entry of a through ReadArchive.
func contents(t *testing.T, path string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := ReadArchive(path, func(name string, src *Contents) VisitAction {
		data, err := src.Bytes()
		require.NoError(t, err, name)
		out[name] = string(data)
		return Continue
	})
	require.NoError(t, err)
	return out
}
