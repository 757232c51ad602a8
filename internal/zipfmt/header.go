package zipfmt

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/ikv/internal/ziptype"
)

// LocalHeader holds the decoded fields of a local file header.
type LocalHeader struct {
	Method         ziptype.Compression
	CRC            uint32
	CompressedSize uint32
	Size           uint32
	NameLen        int
	ExtraLen       int
}

// PutLocalHeader encodes a local file header followed by name into dst and
// returns the number of bytes written. dst may hold stale data; every field is
// overwritten.
func PutLocalHeader(dst []byte, method ziptype.Compression, crc, compressedSize, size uint32, name []byte) int {
	_ = dst[LocalHeaderSize+len(name)-1]
	le := binary.LittleEndian
	le.PutUint32(dst[0:], LocalHeaderSignature)
	le.PutUint32(dst[4:], 0) // version needed, flags
	le.PutUint16(dst[8:], uint16(method))
	le.PutUint32(dst[10:], 0) // mod time, mod date
	le.PutUint32(dst[14:], crc)
	le.PutUint32(dst[18:], compressedSize)
	le.PutUint32(dst[22:], size)
	le.PutUint16(dst[26:], uint16(len(name)))
	le.PutUint16(dst[28:], 0)
	copy(dst[LocalHeaderSize:], name)
	return LocalHeaderSize + len(name)
}

// PatchLocalHeader rewrites the method, CRC and size fields of an encoded
// local header in place.
func PatchLocalHeader(dst []byte, method ziptype.Compression, crc, compressedSize, size uint32) {
	le := binary.LittleEndian
	le.PutUint16(dst[8:], uint16(method))
	le.PutUint32(dst[14:], crc)
	le.PutUint32(dst[18:], compressedSize)
	le.PutUint32(dst[22:], size)
}

// ParseLocalHeader decodes the fixed part of a local file header.
func ParseLocalHeader(b []byte) (LocalHeader, error) {
	if len(b) < LocalHeaderSize {
		return LocalHeader{}, fmt.Errorf("local header: %w", ziptype.ErrBadSignature)
	}
	le := binary.LittleEndian
	if le.Uint32(b) != LocalHeaderSignature {
		return LocalHeader{}, fmt.Errorf("local header: %w", ziptype.ErrBadSignature)
	}
	return LocalHeader{
		Method:         ziptype.Compression(le.Uint16(b[8:])),
		CRC:            le.Uint32(b[14:]),
		CompressedSize: le.Uint32(b[18:]),
		Size:           le.Uint32(b[22:]),
		NameLen:        int(le.Uint16(b[26:])),
		ExtraLen:       int(le.Uint16(b[28:])),
	}, nil
}

// CentralHeader holds the decoded fields of a central directory header.
type CentralHeader struct {
	Method         ziptype.Compression
	CRC            uint32
	CompressedSize uint32
	Size           uint32
	HeaderOffset   uint32
	Name           []byte
}

// IsDir reports whether the header describes a directory marker.
func (h *CentralHeader) IsDir() bool {
	return len(h.Name) > 0 && h.Name[len(h.Name)-1] == '/'
}

// AppendCentralHeader appends the central directory header for r to dst.
// The local header offset is truncated to 32 bits.
func AppendCentralHeader(dst []byte, r *ziptype.Record) []byte {
	var b [CentralHeaderSize]byte
	le := binary.LittleEndian
	le.PutUint32(b[0:], CentralHeaderSignature)
	le.PutUint16(b[10:], uint16(r.Method))
	le.PutUint32(b[16:], r.CRC)
	le.PutUint32(b[20:], r.CompressedSize)
	le.PutUint32(b[24:], r.Size)
	le.PutUint16(b[28:], uint16(len(r.Name)))
	le.PutUint32(b[42:], uint32(r.HeaderOffset)) //nolint:gosec // truncation is part of the format
	dst = append(dst, b[:]...)
	return append(dst, r.Name...)
}

// ParseCentralHeader decodes the central directory header at off and returns
// the offset of the next header. The returned name aliases b.
func ParseCentralHeader(b []byte, off int) (CentralHeader, int, error) {
	if off < 0 || len(b)-off < CentralHeaderSize {
		return CentralHeader{}, 0, fmt.Errorf("central header at %d: %w", off, ziptype.ErrBadSignature)
	}
	le := binary.LittleEndian
	h := b[off:]
	if le.Uint32(h) != CentralHeaderSignature {
		return CentralHeader{}, 0, fmt.Errorf("central header at %d: %w", off, ziptype.ErrBadSignature)
	}
	nameLen := int(le.Uint16(h[28:]))
	extraLen := int(le.Uint16(h[30:]))
	commentLen := int(le.Uint16(h[32:]))
	next := off + CentralHeaderSize + nameLen + extraLen + commentLen
	if next > len(b) {
		return CentralHeader{}, 0, fmt.Errorf("central header at %d: %w", off, ziptype.ErrBadSignature)
	}
	return CentralHeader{
		Method:         ziptype.Compression(le.Uint16(h[10:])),
		CRC:            le.Uint32(h[16:]),
		CompressedSize: le.Uint32(h[20:]),
		Size:           le.Uint32(h[24:]),
		HeaderOffset:   le.Uint32(h[42:]),
		Name:           h[CentralHeaderSize : CentralHeaderSize+nameLen : CentralHeaderSize+nameLen],
	}, next, nil
}
