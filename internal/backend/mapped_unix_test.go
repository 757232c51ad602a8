//go:build linux || darwin

package backend

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/ikv/internal/ziptype"
)

func mappedFactory() factory {
	return func(t *testing.T, f *os.File) Backend {
		t.Helper()
		b, err := NewMapped(f)
		require.NoError(t, err)
		return b
	}
}

func newMappedForTest(t *testing.T) (*mapped, string) {
	t.Helper()
	f, path := openTarget(t)
	b, err := NewMapped(f)
	require.NoError(t, err)
	m, ok := b.(*mapped)
	require.True(t, ok)
	return m, path
}

func TestMapped_GrowthRemapsOnce(t *testing.T) {
	t.Parallel()

	m, _ := newMappedForTest(t)
	t.Cleanup(func() { _ = m.Finalize(0) })
	require.Equal(t, int64(InitialChunkSize), m.chunkSize)

	region, err := m.Reserve(200<<10, 0)
	require.NoError(t, err)
	assert.Len(t, region, 200<<10)
	assert.Equal(t, 200<<10, cap(region), "reservation capacity must end at the requested size")
	assert.Equal(t, 1, m.remaps)
	assert.GreaterOrEqual(t, m.chunkSize, int64(256<<10))
	assert.Zero(t, m.chunkSize%chunkAlign)

	_, err = m.Reserve(40<<10, 200<<10)
	require.NoError(t, err)
	_, err = m.Reserve(100<<10, 10<<10)
	require.NoError(t, err)
	assert.Equal(t, 1, m.remaps, "reservations inside the chunk must not remap")
}

func TestMapped_ChunkSizeIsMonotonic(t *testing.T) {
	t.Parallel()

	m, _ := newMappedForTest(t)
	t.Cleanup(func() { _ = m.Finalize(0) })

	_, err := m.Reserve(300<<10, 0)
	require.NoError(t, err)
	grown := m.chunkSize
	assert.Equal(t, int64(320<<10), grown)

	// Crossing the chunk end with a small request moves the window and
	// doubles the chunk.
	_, err = m.Reserve(64<<10, grown-10)
	require.NoError(t, err)
	assert.Equal(t, 2, m.remaps)
	assert.Equal(t, 2*grown, m.chunkSize)
}

func TestMapped_SequentialReservationsAmortizeRemaps(t *testing.T) {
	t.Parallel()

	f, _ := openTarget(t)
	b, err := NewMapped(f, WithInitialChunk(64<<10))
	require.NoError(t, err)
	m, ok := b.(*mapped)
	require.True(t, ok)
	t.Cleanup(func() { _ = m.Finalize(0) })
	require.Equal(t, int64(64<<10), m.chunkSize)

	const entry = 100 << 10
	for i := range 40 {
		region, err := m.Reserve(entry, int64(i)*entry)
		require.NoError(t, err)
		require.Len(t, region, entry)
	}
	// 4000 KiB written through chunks of 128, 256, 512, 1024, 2048 and
	// 4096 KiB, so the window moved only a handful of times.
	assert.LessOrEqual(t, m.remaps, 8)
	assert.Zero(t, m.chunkSize%chunkAlign)
}

func TestMapped_ReservationsAreWritable(t *testing.T) {
	t.Parallel()

	m, path := newMappedForTest(t)

	a, err := m.Reserve(5, 0)
	require.NoError(t, err)
	copy(a, "hello")
	b, err := m.Reserve(6, 1<<20+3) // unaligned, forces a remap
	require.NoError(t, err)
	copy(b, " world")
	// Going back re-opens the first range.
	a, err = m.Reserve(1, 0)
	require.NoError(t, err)
	a[0] = 'H'

	require.NoError(t, m.Finalize(1<<20+9))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 1<<20+9, "finalize must truncate the over-allocated mapping")
	assert.Equal(t, "Hello", string(got[:5]))
	assert.Equal(t, " world", string(got[1<<20+3:]))
}

func TestMapped_ReservationTooLarge(t *testing.T) {
	t.Parallel()

	m, _ := newMappedForTest(t)
	t.Cleanup(func() { _ = m.Finalize(0) })

	_, err := m.Reserve(int(MaxReservation)+1, 0)
	require.ErrorIs(t, err, ziptype.ErrReservationTooLarge)
	require.ErrorIs(t, err, ziptype.ErrUsage)
	assert.Zero(t, m.remaps)
}
