package ikv

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/ikv/internal/deflate"
	"github.com/meigma/ikv/internal/index"
	"github.com/meigma/ikv/internal/platform"
	"github.com/meigma/ikv/internal/sizing"
	"github.com/meigma/ikv/internal/zipfmt"
)

// Entry describes a file entry of an open archive.
type Entry struct {
	// Name is the entry path.
	Name string

	// Method is the compression method of the payload.
	Method Compression

	// CRC is the CRC-32 of the uncompressed payload, or zero when the
	// writer did not record one.
	CRC uint32

	// Size is the uncompressed payload size.
	Size uint32

	// CompressedSize is the number of payload bytes in the archive.
	CompressedSize uint32

	// HeaderOffset is the offset of the local file header.
	HeaderOffset int64

	// DataOffset is the offset of the payload.
	DataOffset int64
}

// Archive is an archive mapped read-only into memory.
//
// Archive is safe for concurrent use as long as every caller decoding
// deflated entries supplies its own scratch buffer. Slices returned for
// stored entries alias the mapping and are invalid after Close.
type Archive struct {
	path     string
	mapping  *platform.Mapping
	data     []byte
	end      zipfmt.End
	entries  []Entry
	dirNames []string
	byName   map[string]int
	idx      *index.Index
	inflater *deflate.Inflater
	logger   *slog.Logger

	treeOnce sync.Once
	tree     map[string][]fs.DirEntry
}

// Open maps the archive at path and walks its central directory.
func Open(path string, opts ...OpenOption) (*Archive, error) {
	cfg := openConfig{useIndex: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := platform.MapFile(f)
	_ = f.Close() //nolint:errcheck // the mapping outlives the descriptor
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	a := &Archive{
		path:     path,
		mapping:  m,
		data:     m.Bytes(),
		inflater: deflate.NewInflater(),
		logger:   cfg.logger,
	}
	if err := a.load(cfg.useIndex); err != nil {
		_ = m.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	a.log().Debug("archive opened",
		"path", path,
		"entries", len(a.entries),
		"zip64", a.end.Zip64,
		"index", a.idx != nil,
	)
	return a, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// load locates the end record and walks the central directory.
func (a *Archive) load(useIndex bool) error {
	end, err := zipfmt.FindEnd(a.data)
	if err != nil {
		return err
	}
	a.end = end

	//nolint:gosec // FindEnd bounds the directory by the mapping
	off, stop := int(end.DirOffset), int(end.DirOffset+end.DirSize)
	dir := a.data[:stop:stop]
	var records uint64
	for off < stop {
		h, next, err := zipfmt.ParseCentralHeader(dir, off)
		if err != nil {
			return err
		}
		off = next
		records++

		name := string(h.Name)
		if h.IsDir() {
			a.dirNames = append(a.dirNames, name[:len(name)-1])
			continue
		}
		if name == IndexName {
			continue
		}
		e, err := a.localEntry(name, int64(h.HeaderOffset))
		if err != nil {
			return err
		}
		e.Method = h.Method
		e.CRC = h.CRC
		e.Size = h.Size
		e.CompressedSize = h.CompressedSize
		if err := a.checkBounds(&e); err != nil {
			return err
		}
		a.entries = append(a.entries, e)
	}
	if records != end.Records {
		return fmt.Errorf("%w: central directory holds %d records, end record says %d", ErrFormat, records, end.Records)
	}

	if useIndex && end.HasIndex() {
		idx, err := index.Load(a.data, end.IndexEnd)
		if err != nil {
			return err
		}
		a.idx = idx
		return nil
	}
	a.byName = make(map[string]int, len(a.entries))
	for i := range a.entries {
		a.byName[a.entries[i].Name] = i
	}
	return nil
}

// localEntry reads the local header at off, which must belong to name,
// and resolves the payload offset.
func (a *Archive) localEntry(name string, off int64) (Entry, error) {
	if off < 0 || off > int64(len(a.data)) {
		return Entry{}, fmt.Errorf("entry %s: header offset %d: %w", name, off, ErrBadSignature)
	}
	lh, err := zipfmt.ParseLocalHeader(a.data[off:])
	if err != nil {
		return Entry{}, fmt.Errorf("entry %s: %w", name, err)
	}
	nameEnd := off + zipfmt.LocalHeaderSize + int64(lh.NameLen)
	if lh.NameLen != len(name) || nameEnd > int64(len(a.data)) ||
		string(a.data[off+zipfmt.LocalHeaderSize:nameEnd]) != name {
		return Entry{}, fmt.Errorf("entry %s: local header names another entry: %w", name, ErrBadSignature)
	}
	if lh.ExtraLen > zipfmt.MaxLocalExtra {
		return Entry{}, fmt.Errorf("entry %s: %d extra bytes: %w", name, lh.ExtraLen, ErrExtraTooLarge)
	}
	e := Entry{
		Name:           name,
		Method:         lh.Method,
		CRC:            lh.CRC,
		Size:           lh.Size,
		CompressedSize: lh.CompressedSize,
		HeaderOffset:   off,
		DataOffset:     off + zipfmt.LocalHeaderSize + int64(lh.NameLen) + int64(lh.ExtraLen),
	}
	return e, nil
}

func (a *Archive) checkBounds(e *Entry) error {
	end, ok := sizing.AddInt64(e.DataOffset, int64(e.CompressedSize))
	if e.DataOffset < 0 || !ok || end > int64(len(a.data)) {
		return fmt.Errorf("%w: entry %s extends past the end of the archive", ErrFormat, e.Name)
	}
	return nil
}

// Len returns the number of file entries, excluding directories and the
// index entry.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Entries returns an iterator over file entries in central directory order.
func (a *Archive) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range a.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// Dirs returns the names of the directory entries, without trailing slashes.
func (a *Archive) Dirs() []string {
	return append([]string(nil), a.dirNames...)
}

// Lookup returns the entry named name. With an index the entry is found by
// hash and its local header; otherwise through the central directory.
func (a *Archive) Lookup(name string) (Entry, bool) {
	if a.idx == nil {
		i, ok := a.byName[name]
		if !ok {
			return Entry{}, false
		}
		return a.entries[i], true
	}
	ie, ok := a.idx.LookupName(name)
	if !ok || ie.IsDir() {
		return Entry{}, false
	}
	e, err := a.localEntry(name, ie.Offset-zipfmt.LocalHeaderSize-int64(len(name)))
	if err == nil && e.DataOffset != ie.Offset {
		err = fmt.Errorf("%w: index offset %d does not match local header", ErrIndexCorrupt, ie.Offset)
	}
	if err == nil {
		err = a.checkBounds(&e)
	}
	if err != nil {
		a.log().Debug("index lookup failed", "name", name, "error", err)
		return Entry{}, false
	}
	return e, true
}

// Bytes returns the uncompressed payload of e. Stored payloads are returned
// as a read-only view of the mapping. Deflated payloads are decoded into
// scratch, which is grown if it is too small.
func (a *Archive) Bytes(e Entry, scratch []byte) ([]byte, error) {
	if err := a.checkBounds(&e); err != nil {
		return nil, err
	}
	end := e.DataOffset + int64(e.CompressedSize)
	payload := a.data[e.DataOffset:end:end]
	switch e.Method {
	case Stored:
		if e.Size != e.CompressedSize {
			return nil, fmt.Errorf("%w: stored entry %s has sizes %d and %d", ErrFormat, e.Name, e.Size, e.CompressedSize)
		}
		return payload, nil
	case Deflated:
		out, err := a.inflater.Inflate(scratch, payload, int(e.Size))
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Name, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("entry %s: method %d: %w", e.Name, e.Method, ErrUnsupportedMethod)
	}
}

// ReadFile returns a copy of the payload of the named entry.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	e, ok := a.Lookup(name)
	if !ok {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrNotExist}
	}
	data, err := a.Bytes(e, nil)
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: err}
	}
	if e.Method == Stored {
		return bytes.Clone(data), nil
	}
	return data, nil
}

// CheckCRC verifies data against the CRC recorded for e. Entries written
// without CRCs always pass.
func CheckCRC(e Entry, data []byte) error {
	if e.CRC == 0 {
		return nil
	}
	if got := zipfmt.CRC32(data); got != e.CRC {
		return fmt.Errorf("entry %s: crc %08x, want %08x: %w", e.Name, got, e.CRC, ErrChecksum)
	}
	return nil
}

// Verify decodes every entry and checks its CRC using up to workers
// goroutines, each with its own scratch buffer. It returns the first
// failure.
func (a *Archive) Verify(ctx context.Context, workers int) error {
	if workers < 1 {
		workers = 1
	}
	workers = min(workers, max(len(a.entries), 1))

	g, ctx := errgroup.WithContext(ctx)
	for w := range workers {
		g.Go(func() error {
			var scratch []byte
			for i := w; i < len(a.entries); i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				e := a.entries[i]
				data, err := a.Bytes(e, scratch)
				if err != nil {
					return err
				}
				if e.Method == Deflated {
					scratch = data
				}
				if err := CheckCRC(e, data); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	a.log().Debug("archive verified", "entries", len(a.entries), "workers", workers)
	return nil
}

// Zip64 reports whether the archive uses the Zip64 end records.
func (a *Archive) Zip64() bool {
	return a.end.Zip64
}

// Records returns the number of central directory records, including
// directories and the index entry.
func (a *Archive) Records() uint64 {
	return a.end.Records
}

// Size returns the archive size in bytes.
func (a *Archive) Size() int64 {
	return int64(len(a.data))
}

// IndexStats summarizes the embedded index.
type IndexStats struct {
	Entries          int
	ClassPackages    int
	ResourcePackages int
	End              int64
}

// Index returns statistics about the embedded index. ok is false when the
// archive has no index or it was disabled with OpenWithIndex.
func (a *Archive) Index() (stats IndexStats, ok bool) {
	if a.idx == nil {
		return IndexStats{}, false
	}
	return IndexStats{
		Entries:          a.idx.Len(),
		ClassPackages:    len(a.idx.ClassPackages()),
		ResourcePackages: len(a.idx.ResourcePackages()),
		End:              a.end.IndexEnd,
	}, true
}

// HasClassPackage reports whether the index records a package holding
// class files. The root package is "".
func (a *Archive) HasClassPackage(pkg string) bool {
	return a.idx != nil && a.idx.HasClassPackage(index.PackageHash(pkg))
}

// HasResourcePackage reports whether the index records a package holding
// resources. The root package is "".
func (a *Archive) HasResourcePackage(pkg string) bool {
	return a.idx != nil && a.idx.HasResourcePackage(index.PackageHash(pkg))
}

// IndexNames returns the names recorded in the index, in index order.
// Directories appear without trailing slashes.
func (a *Archive) IndexNames() []string {
	if a.idx == nil {
		return nil
	}
	out := make([]string, 0, a.idx.Len())
	for _, name := range a.idx.All() {
		out = append(out, string(name))
	}
	return out
}

// Close releases the mapping. It is safe to call more than once.
func (a *Archive) Close() error {
	a.data = nil
	a.entries = nil
	return a.mapping.Close()
}
