package backend

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/ikv/internal/ziptype"
)

type factory func(t *testing.T, f *os.File) Backend

// conformanceBackends returns every backend available on this platform.
func conformanceBackends() map[string]factory {
	m := map[string]factory{
		"file": func(_ *testing.T, f *os.File) Backend { return NewFile(f) },
	}
	if mf := mappedFactory(); mf != nil {
		m["mapped"] = mf
	}
	return m
}

func openTarget(t *testing.T) (*os.File, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.bin")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	require.NoError(t, err)
	return f, path
}

func sourceFile(t *testing.T, content []byte) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestConformance_PositionedWrites(t *testing.T) {
	t.Parallel()

	for name, newBackend := range conformanceBackends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f, path := openTarget(t)
			b := newBackend(t, f)

			require.NoError(t, b.Write([]byte("world"), 6))
			require.NoError(t, b.Write([]byte("hello "), 0))
			require.NoError(t, b.WriteVectored([][]byte{[]byte("!"), nil, []byte("?!")}, 11))
			require.NoError(t, b.Finalize(14))

			got, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "hello world!?!", string(got))
		})
	}
}

func TestConformance_LargeWrite(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("0123456789abcdef"), 64<<10) // 1 MiB
	for name, newBackend := range conformanceBackends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f, path := openTarget(t)
			b := newBackend(t, f)
			require.NoError(t, b.Write(payload, 100))
			require.NoError(t, b.Write(make([]byte, 100), 0))
			require.NoError(t, b.Finalize(int64(len(payload))+100))

			got, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Len(t, got, len(payload)+100)
			assert.True(t, bytes.Equal(payload, got[100:]))
		})
	}
}

func TestConformance_TransferFrom(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("transfer-"), 50_000)
	for name, newBackend := range conformanceBackends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			src := sourceFile(t, content)
			f, path := openTarget(t)
			b := newBackend(t, f)

			require.NoError(t, b.Write([]byte("HDR"), 0))
			require.NoError(t, b.TransferFrom(src, 9, int64(len(content))-9, 3))
			require.NoError(t, b.Finalize(int64(len(content))-6))

			got, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "HDR", string(got[:3]))
			assert.True(t, bytes.Equal(content[9:], got[3:]))

			// The source read position is untouched.
			pos, err := src.Seek(0, io.SeekCurrent)
			require.NoError(t, err)
			assert.Zero(t, pos)
		})
	}
}

func TestConformance_TransferShortSource(t *testing.T) {
	t.Parallel()

	for name, newBackend := range conformanceBackends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			src := sourceFile(t, []byte("short"))
			f, _ := openTarget(t)
			b := newBackend(t, f)
			t.Cleanup(func() { _ = b.Finalize(0) })

			err := b.TransferFrom(src, 0, 100, 0)
			require.ErrorIs(t, err, ziptype.ErrShortTransfer)
			require.ErrorIs(t, err, ziptype.ErrIO)
		})
	}
}

func TestConformance_NegativePosition(t *testing.T) {
	t.Parallel()

	for name, newBackend := range conformanceBackends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f, _ := openTarget(t)
			b := newBackend(t, f)
			t.Cleanup(func() { _ = b.Finalize(0) })

			require.ErrorIs(t, b.Write([]byte("x"), -1), ziptype.ErrNegativePosition)
			require.ErrorIs(t, b.WriteVectored([][]byte{[]byte("x")}, -1), ziptype.ErrNegativePosition)
			_, err := b.Reserve(1, -5)
			require.ErrorIs(t, err, ziptype.ErrNegativePosition)
			require.ErrorIs(t, err, ziptype.ErrUsage)
		})
	}
}

func TestFile_ReserveUnsupported(t *testing.T) {
	t.Parallel()

	f, _ := openTarget(t)
	b := NewFile(f)
	t.Cleanup(func() { _ = b.Finalize(0) })

	assert.False(t, b.CanReserve())
	_, err := b.Reserve(10, 0)
	require.ErrorIs(t, err, ziptype.ErrReserveUnsupported)
}

// stutterWriter accepts at most step bytes per call.
type stutterWriter struct {
	buf   []byte
	step  int
	calls int
}

func (w *stutterWriter) WriteAt(p []byte, off int64) (int, error) {
	w.calls++
	n := min(len(p), w.step)
	if need := int(off) + n; need > len(w.buf) {
		w.buf = append(w.buf, make([]byte, need-len(w.buf))...)
	}
	copy(w.buf[off:], p[:n])
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// stuckWriter never makes progress.
type stuckWriter struct{}

func (stuckWriter) WriteAt([]byte, int64) (int, error) { return 0, nil }

func TestWriteFullAt_RetriesPartialWrites(t *testing.T) {
	t.Parallel()

	w := &stutterWriter{step: 3}
	require.NoError(t, writeFullAt(w, []byte("abcdefgh"), 2))
	assert.Equal(t, "\x00\x00abcdefgh", string(w.buf))
	assert.Equal(t, 3, w.calls)
}

func TestWriteFullAt_NoProgress(t *testing.T) {
	t.Parallel()

	err := writeFullAt(stuckWriter{}, []byte("abc"), 0)
	require.ErrorIs(t, err, ziptype.ErrIO)
	require.ErrorIs(t, err, io.ErrShortWrite)
}

func TestCopyAt_ShortSource(t *testing.T) {
	t.Parallel()

	w := &stutterWriter{step: 1 << 20}
	err := copyAt(w, bytes.NewReader([]byte("abc")), 1, 10, 0, make([]byte, 2))
	require.ErrorIs(t, err, ziptype.ErrShortTransfer)
	assert.Equal(t, "bc", string(w.buf))
}
