package zipfmt

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/ikv/internal/ziptype"
)

// End describes the located end of central directory.
type End struct {
	// Records is the number of central directory records.
	Records uint64

	// DirSize is the byte length of the central directory.
	DirSize uint64

	// DirOffset is the absolute offset of the first central directory record.
	DirOffset uint64

	// Zip64 reports whether the archive was finalized in Zip64 layout.
	Zip64 bool

	// IndexVersion is the IKV format version from the comment, or zero.
	IndexVersion uint8

	// IndexEnd is the absolute offset where the IKV entry table ends.
	// It is -1 when the archive carries no index.
	IndexEnd int64
}

// HasIndex reports whether the end record points at an IKV index.
func (e *End) HasIndex() bool {
	return e.IndexEnd >= 0
}

// NeedsZip64 reports whether records central directory records require the
// Zip64 layout.
func NeedsZip64(records int) bool {
	return records > MaxClassicRecords
}

// AppendEnd appends the end of central directory to dst. The central
// directory is assumed to end exactly where the appended bytes begin, at
// dirOffset+dirSize. indexEnd < 0 means no index comment is written.
func AppendEnd(dst []byte, records int, dirSize, dirOffset, indexEnd int64) []byte {
	le := binary.LittleEndian
	if !NeedsZip64(records) {
		var b [EndSize]byte
		le.PutUint32(b[0:], EndSignature)
		//nolint:gosec // counts are bounded by NeedsZip64, sizes by the classic layout
		le.PutUint16(b[8:], uint16(records))
		le.PutUint16(b[10:], uint16(records))
		le.PutUint32(b[12:], uint32(dirSize))
		le.PutUint32(b[16:], uint32(dirOffset))
		if indexEnd < 0 {
			return append(dst, b[:]...)
		}
		le.PutUint16(b[20:], IndexCommentSize)
		dst = append(dst, b[:]...)
		return appendIndexComment(dst, indexEnd)
	}

	recordOffset := dirOffset + dirSize
	start := len(dst)
	var b [Zip64EndSize]byte
	le.PutUint32(b[0:], Zip64EndSignature)
	le.PutUint64(b[24:], uint64(records))
	le.PutUint64(b[32:], uint64(records))
	le.PutUint64(b[40:], uint64(dirSize))
	le.PutUint64(b[48:], uint64(dirOffset))
	dst = append(dst, b[:]...)
	if indexEnd >= 0 {
		dst = appendIndexComment(dst, indexEnd)
	}
	// The size field counts everything after itself, comment included.
	le.PutUint64(dst[start+4:], uint64(len(dst)-start-12)) //nolint:gosec // small

	var loc [Zip64LocatorSize]byte
	le.PutUint32(loc[0:], Zip64LocatorSignature)
	le.PutUint64(loc[8:], uint64(recordOffset)) //nolint:gosec // non-negative
	le.PutUint32(loc[16:], 1)
	dst = append(dst, loc[:]...)

	var stub [EndSize]byte
	le.PutUint32(stub[0:], EndSignature)
	le.PutUint16(stub[8:], sentinel16)
	le.PutUint16(stub[10:], sentinel16)
	le.PutUint32(stub[12:], sentinel32)
	le.PutUint32(stub[16:], sentinel32)
	return append(dst, stub[:]...)
}

func appendIndexComment(dst []byte, indexEnd int64) []byte {
	var c [IndexCommentSize]byte
	c[0] = IndexFormatVersion
	binary.LittleEndian.PutUint32(c[1:], uint32(indexEnd)) //nolint:gosec // index offsets are 32-bit
	return append(dst, c[:]...)
}

// FindEnd locates the end of central directory in a complete archive image.
//
// The classic record is found by scanning backwards from len(b)-22. A Zip64
// locator exactly 20 bytes before it takes precedence over the classic fields.
func FindEnd(b []byte) (End, error) {
	pos, err := findEndRecord(b)
	if err != nil {
		return End{}, err
	}

	le := binary.LittleEndian
	end := End{IndexEnd: -1}
	if pos >= Zip64LocatorSize && le.Uint32(b[pos-Zip64LocatorSize:]) == Zip64LocatorSignature {
		recordOffset := le.Uint64(b[pos-Zip64LocatorSize+8:])
		if err := parseZip64End(b, recordOffset, &end); err != nil {
			return End{}, err
		}
		return end, nil
	}

	end.Records = uint64(le.Uint16(b[pos+10:]))
	end.DirSize = uint64(le.Uint32(b[pos+12:]))
	end.DirOffset = uint64(le.Uint32(b[pos+16:]))
	commentLen := int(le.Uint16(b[pos+20:]))
	comment := b[pos+EndSize:]
	if commentLen <= len(comment) {
		comment = comment[:commentLen]
	}
	parseIndexComment(comment, &end)
	if end.DirOffset+end.DirSize > uint64(pos) {
		return End{}, fmt.Errorf("central directory beyond end record: %w", ziptype.ErrNotArchive)
	}
	return end, nil
}

func findEndRecord(b []byte) (int, error) {
	if len(b) < EndSize {
		return 0, ziptype.ErrNotArchive
	}
	stop := max(len(b)-maxEndScan, 0)
	for pos := len(b) - EndSize; pos >= stop; pos-- {
		if b[pos] == 'P' && binary.LittleEndian.Uint32(b[pos:]) == EndSignature {
			return pos, nil
		}
	}
	return 0, ziptype.ErrNotArchive
}

func parseZip64End(b []byte, recordOffset uint64, end *End) error {
	le := binary.LittleEndian
	if len(b) < Zip64EndSize || recordOffset > uint64(len(b)-Zip64EndSize) {
		return fmt.Errorf("zip64 end record offset %d: %w", recordOffset, ziptype.ErrBadSignature)
	}
	r := b[recordOffset:]
	if le.Uint32(r) != Zip64EndSignature {
		return fmt.Errorf("zip64 end record: %w", ziptype.ErrBadSignature)
	}
	end.Zip64 = true
	end.Records = le.Uint64(r[32:])
	end.DirSize = le.Uint64(r[40:])
	end.DirOffset = le.Uint64(r[48:])
	if end.DirOffset+end.DirSize > recordOffset {
		return fmt.Errorf("central directory beyond zip64 end record: %w", ziptype.ErrNotArchive)
	}
	size := le.Uint64(r[4:])
	if size > zip64EndFixedTail && size-zip64EndFixedTail <= uint64(len(r)-Zip64EndSize) {
		parseIndexComment(r[Zip64EndSize:Zip64EndSize+int(size-zip64EndFixedTail)], end) //nolint:gosec // bounded above
	}
	return nil
}

func parseIndexComment(comment []byte, end *End) {
	if len(comment) != IndexCommentSize {
		return
	}
	end.IndexVersion = comment[0]
	if end.IndexVersion != IndexFormatVersion {
		return
	}
	end.IndexEnd = int64(binary.LittleEndian.Uint32(comment[1:]))
}
