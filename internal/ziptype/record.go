package ziptype

// LocalHeaderSize is the fixed size of a local file header without the name.
const LocalHeaderSize = 30

// Record describes one entry as it was written to the archive.
//
// Records are created when a write completes and are immutable afterwards.
// They are referenced once more when the central directory is emitted.
type Record struct {
	// Name is the raw entry path. Directory records carry a trailing slash.
	Name []byte

	// Size is the uncompressed payload size.
	Size uint32

	// CompressedSize is the number of payload bytes stored in the archive.
	CompressedSize uint32

	// CRC is the CRC-32 of the uncompressed payload, or zero when CRCs are off.
	CRC uint32

	// Method is the compression method of the payload.
	Method Compression

	// HeaderOffset is the absolute offset of the local file header.
	HeaderOffset int64

	// Dir marks a directory entry.
	Dir bool
}

// DataOffset returns the absolute offset of the payload.
func (r *Record) DataOffset() int64 {
	return r.HeaderOffset + LocalHeaderSize + int64(len(r.Name))
}
