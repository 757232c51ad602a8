package index

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/ikv/internal/ziptype"
)

func TestPackedRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []Entry{
		{Hash: 1, Offset: 0, Size: 0},
		{Hash: 2, Offset: 4096, Size: 123},
		{Hash: 3, Offset: 0xfffffffe, Size: 0x7fffffff},
		{Hash: 4, Offset: DirOffset, Size: IndexOnlyDirSize},
		{Hash: 5, Offset: DirOffset, Size: FullDirSize},
	}
	for _, want := range tests {
		got := Unpack(want.Hash, want.Packed())
		assert.Equal(t, want, got)
	}
	assert.Equal(t, uint64(0xffffffffffffffff), Entry{Offset: -1, Size: -1}.Packed())
	assert.Equal(t, uint64(0xffffffff00000000), Entry{Offset: -1, Size: 0}.Packed())
}

func TestPackageHash(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(0), PackageHash(""))
	assert.Equal(t, HashString("a/b"), PackageHash("a/b"))
	assert.Equal(t, Hash([]byte("a/b")), HashString("a/b"))
}

func TestBuilderDuplicate(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	require.NoError(t, b.Add(Entry{Hash: 7, Offset: 10, Size: 1}))
	assert.True(t, b.Contains(7))
	assert.False(t, b.Contains(8))

	err := b.Add(Entry{Hash: 7, Offset: 20, Size: 1})
	require.ErrorIs(t, err, ziptype.ErrDuplicateKey)
	require.ErrorIs(t, err, ziptype.ErrUsage)
	assert.Equal(t, 1, b.Len())
}

func TestBuilderRejectsWideOffset(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	err := b.Add(Entry{Hash: 1, Offset: 1 << 32})
	require.ErrorIs(t, err, ziptype.ErrEntryTooLarge)
	assert.Equal(t, 0, b.Len())
}

func TestBuilderNameMismatch(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	require.NoError(t, b.Add(Entry{Hash: 1}))
	_, err := b.AppendTo(nil)
	require.ErrorIs(t, err, ziptype.ErrUsage)
}

func TestBuilderLayoutWithoutPackages(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	require.NoError(t, b.Add(Entry{Hash: 0x1122334455667788, Offset: 40, Size: 5}))
	require.NoError(t, b.AddName([]byte("x.txt")))

	out, err := b.AppendTo(nil)
	require.NoError(t, err)
	require.Len(t, out, b.Size())
	assert.Equal(t, 16+4+1, b.DataSize())
	assert.Equal(t, 21+8+2+5, b.Size())

	le := binary.LittleEndian
	assert.Equal(t, uint64(0x1122334455667788), le.Uint64(out[0:]))
	assert.Equal(t, uint64(40)<<32|5, le.Uint64(out[8:]))
	assert.Equal(t, uint32(1), le.Uint32(out[16:]))
	assert.Equal(t, byte(1), out[20])
	assert.Equal(t, uint64(0), le.Uint64(out[21:]))
	assert.Equal(t, uint16(5), le.Uint16(out[29:]))
	assert.Equal(t, "x.txt", string(out[31:]))
}

func TestBuilderPackagesSorted(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	b.AddClassPackage(30)
	b.AddClassPackage(10)
	b.AddClassPackage(30)
	b.AddResourcePackage(5)

	out, err := b.AppendTo(nil)
	require.NoError(t, err)
	require.Len(t, out, b.Size())

	le := binary.LittleEndian
	assert.Equal(t, uint32(0), le.Uint32(out[0:]))
	assert.Equal(t, uint32(2), le.Uint32(out[5:]))
	assert.Equal(t, uint32(1), le.Uint32(out[9:]))
	assert.Equal(t, uint64(10), le.Uint64(out[13:]))
	assert.Equal(t, uint64(30), le.Uint64(out[21:]))
	assert.Equal(t, uint64(5), le.Uint64(out[29:]))
}

func TestLoadRoundTrip(t *testing.T) {
	t.Parallel()

	names := []string{"a", "a/b.txt", "a/b.class"}
	b := NewBuilder()
	require.NoError(t, b.Add(Entry{Hash: HashString(names[0]), Offset: DirOffset, Size: FullDirSize}))
	require.NoError(t, b.Add(Entry{Hash: HashString(names[1]), Offset: 100, Size: 5}))
	require.NoError(t, b.Add(Entry{Hash: HashString(names[2]), Offset: 200, Size: 3}))
	for _, n := range names {
		require.NoError(t, b.AddName([]byte(n)))
	}
	b.AddClassPackage(PackageHash("a"))
	b.AddResourcePackage(PackageHash("a"))
	b.AddResourcePackage(RootPackageHash)

	prefix := []byte("some archive bytes before the index")
	data, err := b.AppendTo(append([]byte(nil), prefix...))
	require.NoError(t, err)
	data = append(data, "trailer"...)

	idx, err := Load(data, int64(len(prefix)+b.DataSize()))
	require.NoError(t, err)
	require.Equal(t, 3, idx.Len())

	e, ok := idx.LookupName("a/b.txt")
	require.True(t, ok)
	assert.Equal(t, int64(100), e.Offset)
	assert.Equal(t, int32(5), e.Size)

	e, ok = idx.LookupName("a")
	require.True(t, ok)
	assert.True(t, e.IsDir())
	assert.Equal(t, int32(FullDirSize), e.Size)

	_, ok = idx.LookupName("missing")
	assert.False(t, ok)

	assert.True(t, idx.HasClassPackage(PackageHash("a")))
	assert.False(t, idx.HasClassPackage(RootPackageHash))
	assert.True(t, idx.HasResourcePackage(RootPackageHash))
	assert.True(t, idx.HasResourcePackage(PackageHash("a")))

	var got []string
	for entry, name := range idx.All() {
		assert.Equal(t, HashString(string(name)), entry.Hash)
		got = append(got, string(name))
	}
	assert.Equal(t, names, got)
}

func TestLoadCorrupt(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	require.NoError(t, b.Add(Entry{Hash: 1, Offset: 0, Size: 1}))
	require.NoError(t, b.AddName([]byte("abc")))
	data, err := b.AppendTo(nil)
	require.NoError(t, err)
	end := int64(b.DataSize())

	tests := []struct {
		name string
		data []byte
		end  int64
	}{
		{name: "end past data", data: data, end: int64(len(data)) + 1},
		{name: "end too small", data: data, end: 3},
		{name: "truncated names", data: data[:len(data)-1], end: end},
		{name: "bad flag", data: flip(data, int(end-1)), end: end},
		{name: "count too large", data: flip(data, int(end-5)), end: end},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(tt.data, tt.end)
			require.ErrorIs(t, err, ziptype.ErrIndexCorrupt)
			require.ErrorIs(t, err, ziptype.ErrFormat)
		})
	}
}

func flip(data []byte, at int) []byte {
	out := append([]byte(nil), data...)
	out[at] ^= 0x40
	return out
}
