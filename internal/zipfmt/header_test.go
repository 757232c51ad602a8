package zipfmt

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/ikv/internal/ziptype"
)

func TestPutLocalHeader_Layout(t *testing.T) {
	t.Parallel()

	name := []byte("a/b.txt")
	buf := bytes.Repeat([]byte{0xAA}, LocalHeaderSize+len(name))
	n := PutLocalHeader(buf, ziptype.Deflated, 0x11223344, 7, 9, name)
	require.Equal(t, len(buf), n)

	le := binary.LittleEndian
	assert.Equal(t, LocalHeaderSignature, le.Uint32(buf[0:]))
	assert.Zero(t, le.Uint32(buf[4:]), "version and flags must be zeroed")
	assert.Equal(t, uint16(8), le.Uint16(buf[8:]))
	assert.Zero(t, le.Uint32(buf[10:]), "timestamps must be zeroed")
	assert.Equal(t, uint32(0x11223344), le.Uint32(buf[14:]))
	assert.Equal(t, uint32(7), le.Uint32(buf[18:]))
	assert.Equal(t, uint32(9), le.Uint32(buf[22:]))
	assert.Equal(t, uint16(len(name)), le.Uint16(buf[26:]))
	assert.Zero(t, le.Uint16(buf[28:]))
	assert.Equal(t, name, buf[LocalHeaderSize:])

	h, err := ParseLocalHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, ziptype.Deflated, h.Method)
	assert.Equal(t, uint32(7), h.CompressedSize)
	assert.Equal(t, uint32(9), h.Size)
	assert.Equal(t, len(name), h.NameLen)
	assert.Zero(t, h.ExtraLen)
}

func TestPatchLocalHeader(t *testing.T) {
	t.Parallel()

	name := []byte("x")
	buf := make([]byte, LocalHeaderSize+1)
	PutLocalHeader(buf, ziptype.Stored, 0, 0, 0, name)
	PatchLocalHeader(buf, ziptype.Deflated, 42, 10, 20)

	h, err := ParseLocalHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, ziptype.Deflated, h.Method)
	assert.Equal(t, uint32(42), h.CRC)
	assert.Equal(t, uint32(10), h.CompressedSize)
	assert.Equal(t, uint32(20), h.Size)
}

func TestParseLocalHeader_BadSignature(t *testing.T) {
	t.Parallel()

	_, err := ParseLocalHeader(make([]byte, LocalHeaderSize))
	require.ErrorIs(t, err, ziptype.ErrBadSignature)
	require.ErrorIs(t, err, ziptype.ErrFormat)

	_, err = ParseLocalHeader([]byte{0x50, 0x4b})
	require.ErrorIs(t, err, ziptype.ErrBadSignature)
}

func TestCentralHeader_RoundTrip(t *testing.T) {
	t.Parallel()

	records := []ziptype.Record{
		{Name: []byte("a/b.txt"), Size: 5, CompressedSize: 5, CRC: 0x3610a686, Method: ziptype.Stored, HeaderOffset: 0},
		{Name: []byte("a/"), Dir: true, HeaderOffset: 42},
		{Name: []byte("big"), Size: 100, CompressedSize: 10, Method: ziptype.Deflated, HeaderOffset: 1<<32 + 5},
	}
	var dir []byte
	for i := range records {
		dir = AppendCentralHeader(dir, &records[i])
	}

	off := 0
	for i := range records {
		h, next, err := ParseCentralHeader(dir, off)
		require.NoError(t, err)
		assert.Equal(t, records[i].Name, h.Name)
		assert.Equal(t, records[i].Method, h.Method)
		assert.Equal(t, records[i].CRC, h.CRC)
		assert.Equal(t, records[i].Size, h.Size)
		assert.Equal(t, records[i].CompressedSize, h.CompressedSize)
		assert.Equal(t, uint32(records[i].HeaderOffset), h.HeaderOffset) //nolint:gosec // truncation under test
		assert.Equal(t, records[i].Dir, h.IsDir())
		off = next
	}
	assert.Equal(t, len(dir), off)
}

func TestParseCentralHeader_Corrupt(t *testing.T) {
	t.Parallel()

	r := ziptype.Record{Name: []byte("file")}
	dir := AppendCentralHeader(nil, &r)

	_, _, err := ParseCentralHeader(dir, 1)
	require.ErrorIs(t, err, ziptype.ErrBadSignature)

	_, _, err = ParseCentralHeader(dir[:len(dir)-1], 0)
	require.ErrorIs(t, err, ziptype.ErrBadSignature)
}

func TestUpdateCRC32_Incremental(t *testing.T) {
	t.Parallel()

	data := []byte("hello, world")
	crc := UpdateCRC32(0, data[:5])
	crc = UpdateCRC32(crc, data[5:])
	assert.Equal(t, CRC32(data), crc)
}
