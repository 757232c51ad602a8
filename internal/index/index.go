package index

import (
	"encoding/binary"
	"fmt"
	"iter"
	"slices"

	"github.com/meigma/ikv/internal/ziptype"
)

// Index provides read access to a serialized IKV index.
//
// Lookups by hash are O(1). Names alias the buffer passed to Load, so the
// index is only valid while that buffer stays alive and unmodified.
type Index struct {
	table            []byte
	count            int
	byHash           map[uint64]int
	classPackages    []uint64
	resourcePackages []uint64
	names            [][]byte
}

// Load parses the index whose entry table ends at end within data.
//
// data is usually the whole archive image and end the offset stored in the
// end-of-central-directory comment. The package section and the names follow
// end; everything must lie inside data.
func Load(data []byte, end int64) (*Index, error) {
	le := binary.LittleEndian
	if end < 5 || end > int64(len(data)) {
		return nil, corrupt("table end %d outside %d bytes", end, len(data))
	}
	if data[end-1] != formatFlag {
		return nil, corrupt("unexpected flag %d", data[end-1])
	}
	count := int64(int32(le.Uint32(data[end-5:]))) //nolint:gosec // signed on disk
	if count < 0 || count*EntrySize > end-5 {
		return nil, corrupt("entry count %d", count)
	}
	start := end - 5 - count*EntrySize

	r := reader{buf: data, off: end}
	classCount, ok1 := r.u32()
	resourceCount, ok2 := r.u32()
	if !ok1 || !ok2 {
		return nil, corrupt("truncated package section")
	}
	classes, ok1 := r.hashes(classCount)
	resources, ok2 := r.hashes(resourceCount)
	if !ok1 || !ok2 {
		return nil, corrupt("truncated package hashes")
	}

	lengths, ok := r.take(count * 2)
	if !ok {
		return nil, corrupt("truncated name lengths")
	}
	names := make([][]byte, count)
	for i := range names {
		n := int64(le.Uint16(lengths[2*i:]))
		name, ok := r.take(n)
		if !ok {
			return nil, corrupt("truncated name %d", i)
		}
		names[i] = name
	}

	idx := &Index{
		table:            data[start : end-5],
		count:            int(count),
		byHash:           make(map[uint64]int, count),
		classPackages:    classes,
		resourcePackages: resources,
		names:            names,
	}
	for i := range idx.count {
		idx.byHash[le.Uint64(idx.table[i*EntrySize:])] = i
	}
	return idx, nil
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	return idx.count
}

// At returns the i-th entry in insertion order.
func (idx *Index) At(i int) Entry {
	le := binary.LittleEndian
	rec := idx.table[i*EntrySize:]
	return Unpack(le.Uint64(rec), le.Uint64(rec[8:]))
}

// Name returns the raw name of the i-th entry.
// The returned slice aliases the index buffer and must be treated as immutable.
func (idx *Index) Name(i int) []byte {
	return idx.names[i]
}

// Lookup returns the entry with the given hash and its position.
func (idx *Index) Lookup(hash uint64) (Entry, int, bool) {
	i, ok := idx.byHash[hash]
	if !ok {
		return Entry{}, -1, false
	}
	return idx.At(i), i, true
}

// LookupName hashes name and looks it up. A hash hit whose stored name
// differs is reported as a miss.
func (idx *Index) LookupName(name string) (Entry, bool) {
	e, i, ok := idx.Lookup(HashString(name))
	if !ok || string(idx.names[i]) != name {
		return Entry{}, false
	}
	return e, true
}

// HasClassPackage reports whether the package with the given hash holds classes.
func (idx *Index) HasClassPackage(hash uint64) bool {
	_, ok := slices.BinarySearch(idx.classPackages, hash)
	return ok
}

// HasResourcePackage reports whether the package with the given hash holds resources.
func (idx *Index) HasResourcePackage(hash uint64) bool {
	_, ok := slices.BinarySearch(idx.resourcePackages, hash)
	return ok
}

// ClassPackages returns the sorted class package hashes.
func (idx *Index) ClassPackages() []uint64 {
	return slices.Clone(idx.classPackages)
}

// ResourcePackages returns the sorted resource package hashes.
func (idx *Index) ResourcePackages() []uint64 {
	return slices.Clone(idx.resourcePackages)
}

// All returns an iterator over entries and their names in insertion order.
//
// The yielded names alias the index buffer.
func (idx *Index) All() iter.Seq2[Entry, []byte] {
	return func(yield func(Entry, []byte) bool) {
		for i := range idx.count {
			if !yield(idx.At(i), idx.Name(i)) {
				return
			}
		}
	}
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ziptype.ErrIndexCorrupt}, args...)...)
}

type reader struct {
	buf []byte
	off int64
}

func (r *reader) take(n int64) ([]byte, bool) {
	if n < 0 || n > int64(len(r.buf))-r.off {
		return nil, false
	}
	b := r.buf[r.off : r.off+n : r.off+n]
	r.off += n
	return b, true
}

func (r *reader) u32() (int64, bool) {
	b, ok := r.take(4)
	if !ok {
		return 0, false
	}
	return int64(int32(binary.LittleEndian.Uint32(b))), true //nolint:gosec // signed on disk
}

func (r *reader) hashes(n int64) ([]uint64, bool) {
	if n < 0 {
		return nil, false
	}
	b, ok := r.take(n * 8)
	if !ok {
		return nil, false
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(b[8*i:])
	}
	return out, true
}
