package sizing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOverflow = errors.New("overflow")

func TestRoundUp(t *testing.T) {
	t.Parallel()

	const align = 64 << 10
	assert.Equal(t, int64(0), RoundUp(0, align))
	assert.Equal(t, int64(align), RoundUp(1, align))
	assert.Equal(t, int64(align), RoundUp(align, align))
	assert.Equal(t, int64(256<<10), RoundUp(200<<10, align))
	assert.Equal(t, int64(4096), RoundDown(4097, 4096))
}

func TestToUint32(t *testing.T) {
	t.Parallel()

	v, err := ToUint32(math.MaxUint32, errOverflow)
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32), v)

	_, err = ToUint32(math.MaxUint32+1, errOverflow)
	require.ErrorIs(t, err, errOverflow)

	_, err = ToUint32(-1, errOverflow)
	require.ErrorIs(t, err, errOverflow)
}

func TestAddInt64(t *testing.T) {
	t.Parallel()

	sum, ok := AddInt64(1, 2)
	require.True(t, ok)
	assert.Equal(t, int64(3), sum)

	_, ok = AddInt64(math.MaxInt64, 1)
	assert.False(t, ok)
}
