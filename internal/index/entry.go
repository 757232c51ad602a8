package index

import (
	"math"

	"github.com/cespare/xxhash/v2"
)

// EntrySize is the encoded size of one index entry: hash plus packed location.
const EntrySize = 16

// Entry maps a path hash to the payload location of an archive entry.
type Entry struct {
	Hash   uint64
	Offset int64
	Size   int32
}

// Directory markers. Real files never use a negative offset.
const (
	// DirOffset is the offset of every directory marker.
	DirOffset = -1

	// IndexOnlyDirSize marks a directory that exists only in the index.
	IndexOnlyDirSize = -1

	// FullDirSize marks a directory backed by a real ZIP directory entry.
	FullDirSize = 0
)

// IsDir reports whether e is a directory marker.
func (e Entry) IsDir() bool {
	return e.Offset == DirOffset
}

// Packed returns the location as offset<<32 | uint32(size).
func (e Entry) Packed() uint64 {
	return uint64(e.Offset)<<32 | uint64(uint32(e.Size)) //nolint:gosec // bit packing
}

// Unpack reverses Entry.Packed.
func Unpack(hash, packed uint64) Entry {
	hi := uint32(packed >> 32) //nolint:gosec // bit unpacking
	offset := int64(hi)
	if hi == math.MaxUint32 {
		offset = DirOffset
	}
	return Entry{
		Hash:   hash,
		Offset: offset,
		Size:   int32(uint32(packed)), //nolint:gosec // bit unpacking
	}
}

// Hash returns the 64-bit path hash of name.
func Hash(name []byte) uint64 {
	return xxhash.Sum64(name)
}

// HashString returns the 64-bit path hash of name.
func HashString(name string) uint64 {
	return xxhash.Sum64String(name)
}

// RootPackageHash is the hash recorded for the empty (root) package.
const RootPackageHash = 0

// PackageHash returns the hash of a package name; the root package maps to
// RootPackageHash.
func PackageHash(pkg string) uint64 {
	if pkg == "" {
		return RootPackageHash
	}
	return xxhash.Sum64String(pkg)
}
