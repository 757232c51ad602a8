package index

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/meigma/ikv/internal/ziptype"
)

// formatFlag is written after the entry count. Its value is fixed; it only
// keeps the layout compatible with older readers.
const formatFlag = 1

// Builder accumulates index entries, names and package hashes and serializes
// them into a single contiguous region.
//
// Entries keep insertion order. Every Add must be paired with exactly one
// AddName, in the same order.
type Builder struct {
	entries          []Entry
	seen             map[uint64]struct{}
	names            [][]byte
	namesSize        int
	classPackages    map[uint64]struct{}
	resourcePackages map[uint64]struct{}
}

// NewBuilder creates an empty index builder.
func NewBuilder() *Builder {
	return &Builder{
		seen:             make(map[uint64]struct{}),
		classPackages:    make(map[uint64]struct{}),
		resourcePackages: make(map[uint64]struct{}),
	}
}

// Contains reports whether an entry with hash was already added.
func (b *Builder) Contains(hash uint64) bool {
	_, ok := b.seen[hash]
	return ok
}

// Add appends an entry. A hash that was already added is a collision and
// fails with ErrDuplicateKey; nothing is recorded in that case.
func (b *Builder) Add(e Entry) error {
	if _, ok := b.seen[e.Hash]; ok {
		return fmt.Errorf("hash %#016x: %w", e.Hash, ziptype.ErrDuplicateKey)
	}
	if e.Offset != DirOffset && (e.Offset < 0 || e.Offset >= math.MaxUint32) {
		return fmt.Errorf("index offset %d: %w", e.Offset, ziptype.ErrEntryTooLarge)
	}
	b.seen[e.Hash] = struct{}{}
	b.entries = append(b.entries, e)
	return nil
}

// AddName appends the raw name of the most recently added entry.
func (b *Builder) AddName(name []byte) error {
	if len(name) > math.MaxUint16 {
		return fmt.Errorf("name of %d bytes: %w", len(name), ziptype.ErrInvalidName)
	}
	b.names = append(b.names, name)
	b.namesSize += len(name)
	return nil
}

// AddClassPackage records a package holding class files. Duplicates are ignored.
func (b *Builder) AddClassPackage(hash uint64) {
	b.classPackages[hash] = struct{}{}
}

// AddResourcePackage records a package holding resources. Duplicates are ignored.
func (b *Builder) AddResourcePackage(hash uint64) {
	b.resourcePackages[hash] = struct{}{}
}

// Len returns the number of entries.
func (b *Builder) Len() int {
	return len(b.entries)
}

// DataSize returns the size of the entry table: the entries, their count and
// the format flag. The EOCD comment points at its end.
func (b *Builder) DataSize() int {
	return len(b.entries)*EntrySize + 4 + 1
}

// Size returns the size of the full serialized index.
func (b *Builder) Size() int {
	size := b.DataSize()
	if b.hasPackages() {
		size += 8 + 8*(len(b.classPackages)+len(b.resourcePackages))
	} else {
		size += 8
	}
	return size + 2*len(b.names) + b.namesSize
}

func (b *Builder) hasPackages() bool {
	return len(b.classPackages) > 0 || len(b.resourcePackages) > 0
}

// AppendTo appends the serialized index to dst.
func (b *Builder) AppendTo(dst []byte) ([]byte, error) {
	if len(b.names) != len(b.entries) {
		return nil, fmt.Errorf("%d names for %d entries: %w", len(b.names), len(b.entries), ziptype.ErrUsage)
	}
	le := binary.LittleEndian
	dst = slices.Grow(dst, b.Size())

	for _, e := range b.entries {
		dst = le.AppendUint64(dst, e.Hash)
		dst = le.AppendUint64(dst, e.Packed())
	}
	dst = le.AppendUint32(dst, uint32(len(b.entries))) //nolint:gosec // bounded by archive limits
	dst = append(dst, formatFlag)

	if !b.hasPackages() {
		dst = le.AppendUint64(dst, 0)
	} else {
		classes := sortedHashes(b.classPackages)
		resources := sortedHashes(b.resourcePackages)
		dst = le.AppendUint32(dst, uint32(len(classes)))   //nolint:gosec // small
		dst = le.AppendUint32(dst, uint32(len(resources))) //nolint:gosec // small
		for _, h := range classes {
			dst = le.AppendUint64(dst, h)
		}
		for _, h := range resources {
			dst = le.AppendUint64(dst, h)
		}
	}

	for _, name := range b.names {
		dst = le.AppendUint16(dst, uint16(len(name))) //nolint:gosec // checked in AddName
	}
	for _, name := range b.names {
		dst = append(dst, name...)
	}
	return dst, nil
}

func sortedHashes(set map[uint64]struct{}) []uint64 {
	out := make([]uint64, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}
