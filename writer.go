package ikv

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/meigma/ikv/internal/backend"
	"github.com/meigma/ikv/internal/deflate"
	"github.com/meigma/ikv/internal/index"
	"github.com/meigma/ikv/internal/pathutil"
	"github.com/meigma/ikv/internal/platform"
	"github.com/meigma/ikv/internal/teardown"
	"github.com/meigma/ikv/internal/zipfmt"
	"github.com/meigma/ikv/internal/ziptype"
)

// Writer streams entries into a new archive.
//
// Every method takes the same lock, so a Writer may be handed between
// goroutines, but concurrent calls interleave entries in an arbitrary order.
// After Close every method returns ErrClosed.
type Writer struct {
	mu sync.Mutex

	cfg     createConfig
	path    string
	replace *platform.Replacement
	backend backend.Backend

	stage   *stage
	flushed int64 // bytes handed to the backend

	central []byte
	records int

	idx  *index.Builder
	pkgs *index.PackageBuilder
	dirs map[string]struct{} // directory entries already written

	closed bool
}

// Create opens target for writing and returns a Writer. The archive is not
// valid until Close returns nil.
func Create(target string, opts ...CreateOption) (*Writer, error) {
	cfg := defaultCreateConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if !deflate.ValidLevel(cfg.level) {
		return nil, fmt.Errorf("compression level %d: %w", cfg.level, ErrUsage)
	}

	w := &Writer{
		cfg:   cfg,
		path:  target,
		stage: newStage(),
		dirs:  make(map[string]struct{}),
	}
	f, err := w.openTarget()
	if err != nil {
		return nil, err
	}

	bopts := []backend.Option{backend.WithLogger(cfg.logger)}
	if cfg.mapped {
		w.backend, err = backend.NewMapped(f, bopts...)
		if err != nil {
			w.abandon(f)
			return nil, fmt.Errorf("create %s: %w", target, err)
		}
	} else {
		w.backend = backend.NewFile(f, bopts...)
	}

	if cfg.index {
		w.idx = index.NewBuilder()
	}
	if cfg.packageIndex {
		w.pkgs = index.NewPackageBuilder(cfg.dirMode)
	}

	w.log().Debug("archive created",
		"path", target,
		"mapped", cfg.mapped,
		"level", cfg.level,
		"crc", cfg.crc,
		"dirs", cfg.dirMode.String(),
		"atomic", cfg.atomic,
	)
	return w, nil
}

func (w *Writer) openTarget() (*os.File, error) {
	if w.cfg.atomic {
		if !w.cfg.overwrite {
			if _, err := os.Lstat(w.path); err == nil {
				return nil, &fs.PathError{Op: "create", Path: w.path, Err: fs.ErrExist}
			}
		}
		r, err := platform.CreateReplacement(w.path, 0o644)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", w.path, err)
		}
		w.replace = r
		return r.File(), nil
	}
	flags := os.O_RDWR | os.O_CREATE | os.O_TRUNC
	if !w.cfg.overwrite {
		flags = os.O_RDWR | os.O_CREATE | os.O_EXCL
	}
	return os.OpenFile(w.path, flags, 0o644)
}

// abandon releases the target after a failed Create.
func (w *Writer) abandon(f *os.File) {
	if w.replace != nil {
		_ = w.replace.Discard() //nolint:errcheck // best-effort cleanup
		return
	}
	_ = f.Close() //nolint:errcheck // best-effort cleanup
}

// log returns the logger, falling back to a discard logger if nil.
func (w *Writer) log() *slog.Logger {
	if w.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.cfg.logger
}

// Len returns the number of central directory records written so far.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}

// AddBytes adds an entry holding data.
func (w *Writer) AddBytes(name string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	nb, hash, err := w.begin(name, int64(len(data)))
	if err != nil {
		return err
	}
	rec, err := w.writeBytes(nb, data)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	return w.finishEntry(rec, hash)
}

// AddFile adds an entry named name with the contents of the file at source.
func (w *Writer) AddFile(name, source string) error {
	f, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	defer f.Close()
	return w.AddOpenFile(name, f)
}

// AddOpenFile adds an entry named name with the contents of f, which must
// be a regular file. The whole file is copied regardless of f's current
// offset, and the offset is left unchanged.
//
// Without CRCs the contents are copied by the kernel where possible and
// never pass through user memory.
func (w *Writer) AddOpenFile(name string, f *os.File) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("add %s: %s is not a regular file: %w", name, f.Name(), ErrUsage)
	}

	nb, hash, err := w.begin(name, info.Size())
	if err != nil {
		return err
	}
	rec, err := w.transfer(nb, f, info.Size())
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	return w.finishEntry(rec, hash)
}

// WriteEntry adds an entry whose size is not known up front. fn writes the
// payload; estimate, when positive, pre-sizes the staging space. The entry
// is always stored uncompressed and is held in memory until its header has
// been completed.
func (w *Writer) WriteEntry(name string, estimate int, fn func(io.Writer) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	nb, hash, err := w.begin(name, 0)
	if err != nil {
		return err
	}
	rec, err := w.writeUnknown(nb, estimate, fn)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	return w.finishEntry(rec, hash)
}

// AddDir writes a directory entry for name immediately. A trailing slash is
// optional. Adding the same directory twice is a no-op.
func (w *Writer) AddDir(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	dir := strings.TrimSuffix(name, "/")
	if err := validateName(dir); err != nil {
		return err
	}
	if _, ok := w.dirs[dir]; ok {
		return nil
	}
	return w.writeDir(dir)
}

// begin validates a new entry and returns its raw name and hash.
func (w *Writer) begin(name string, size int64) ([]byte, uint64, error) {
	if w.closed {
		return nil, 0, ErrClosed
	}
	if err := validateName(name); err != nil {
		return nil, 0, err
	}
	if size > math.MaxUint32 {
		return nil, 0, fmt.Errorf("add %s: %d bytes: %w", name, size, ErrEntryTooLarge)
	}
	hash := index.HashString(name)
	if w.idx != nil {
		if w.idx.Contains(hash) {
			return nil, 0, fmt.Errorf("add %s: %w", name, ErrDuplicateKey)
		}
		if size > math.MaxInt32 {
			return nil, 0, fmt.Errorf("add %s: %d bytes: %w", name, size, ErrEntryTooLarge)
		}
		if w.position()+int64(zipfmt.LocalHeaderSize+len(name)) >= math.MaxUint32 {
			return nil, 0, fmt.Errorf("add %s: payload offset beyond 4 GiB: %w", name, ErrEntryTooLarge)
		}
	}
	return []byte(name), hash, nil
}

func validateName(name string) error {
	if !pathutil.ValidEntryName(name) || name == IndexName {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

// finishEntry appends the central record and registers the entry with the
// index and package builders.
func (w *Writer) finishEntry(rec ziptype.Record, hash uint64) error {
	w.appendCentral(&rec)
	w.log().Debug("entry written",
		"name", string(rec.Name),
		"method", rec.Method.String(),
		"size", rec.Size,
		"compressed", rec.CompressedSize,
		"offset", rec.HeaderOffset,
	)
	if w.idx != nil {
		e := index.Entry{Hash: hash, Offset: rec.DataOffset(), Size: int32(rec.CompressedSize)} //nolint:gosec // checked in begin
		if err := w.idx.Add(e); err != nil {
			return fmt.Errorf("add %s: %w", rec.Name, err)
		}
		if err := w.idx.AddName(rec.Name); err != nil {
			return err
		}
	}
	if w.pkgs != nil {
		w.pkgs.AddFile(string(rec.Name))
	}
	w.reportProgress(StageWriting, string(rec.Name))
	return nil
}

func (w *Writer) appendCentral(rec *ziptype.Record) {
	w.central = zipfmt.AppendCentralHeader(w.central, rec)
	w.records++
}

// writeDir writes a real directory entry for dir, which has no trailing slash.
func (w *Writer) writeDir(dir string) error {
	hash := index.HashString(dir)
	if w.idx != nil && w.idx.Contains(hash) {
		return fmt.Errorf("add directory %s: %w", dir, ErrDuplicateKey)
	}
	name := make([]byte, 0, len(dir)+1)
	name = append(name, dir...)
	name = append(name, '/')

	r, err := w.claim(zipfmt.LocalHeaderSize + len(name))
	if err != nil {
		return fmt.Errorf("add directory %s: %w", dir, err)
	}
	zipfmt.PutLocalHeader(r.buf, Stored, 0, 0, 0, name)
	w.commit(r, len(r.buf))

	rec := ziptype.Record{Name: name, HeaderOffset: r.pos, Dir: true}
	w.appendCentral(&rec)
	w.dirs[dir] = struct{}{}
	if w.pkgs != nil {
		w.pkgs.AddDir(dir)
	}
	if w.idx == nil {
		return nil
	}
	if err := w.idx.Add(index.Entry{Hash: hash, Offset: index.DirOffset, Size: index.FullDirSize}); err != nil {
		return err
	}
	return w.idx.AddName([]byte(dir))
}

// Close writes the directory entries, the index entry, the central
// directory and the end record, then finalizes the output.
//
// Cleanup always runs to completion: the backend is finalized and the
// staging buffer released even when an earlier step fails. The first error
// is returned and the archive must then be treated as unusable. With
// CreateWithAtomicReplace the target is only replaced on success.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	w.closed = true

	w.reportProgress(StageFinishing, "")
	size, err := w.finish()
	if err != nil {
		size = w.flushed
	}

	var steps teardown.List
	steps.Add("finalize output", func() error { return w.backend.Finalize(size) })
	steps.Add("release staging buffer", func() error {
		w.stage.release()
		return nil
	})
	if cleanupErr := steps.Run(w.log()); cleanupErr != nil {
		if err == nil {
			err = cleanupErr
		} else {
			w.log().Warn("suppressed cleanup error", "error", cleanupErr)
		}
	}

	if w.replace != nil {
		if err == nil {
			err = w.replace.Commit()
		} else if discardErr := w.replace.Discard(); discardErr != nil {
			w.log().Warn("suppressed cleanup error", "step", "discard temp file", "error", discardErr)
		}
	}
	if err != nil {
		return fmt.Errorf("close %s: %w", w.path, err)
	}

	w.log().Info("archive closed",
		"path", w.path,
		"records", w.records,
		"size", size,
		"zip64", zipfmt.NeedsZip64(w.records),
	)
	return nil
}

// Abort stops writing without producing a valid archive. The output is
// released; with CreateWithAtomicReplace the temporary file is removed and the
// target is left untouched. Abort after Close is a no-op.
func (w *Writer) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var steps teardown.List
	steps.Add("finalize output", func() error { return w.backend.Finalize(w.flushed) })
	steps.Add("release staging buffer", func() error {
		w.stage.release()
		return nil
	})
	if w.replace != nil {
		steps.Add("discard temp file", w.replace.Discard)
	}
	err := steps.Run(w.log())
	w.log().Debug("archive aborted", "path", w.path, "records", w.records)
	return err
}

// finish writes everything after the last entry and returns the final size.
func (w *Writer) finish() (int64, error) {
	if err := w.writePackageDirs(); err != nil {
		return 0, err
	}

	indexEnd := int64(-1)
	if w.idx != nil {
		if w.pkgs != nil {
			w.pkgs.ApplyTo(w.idx)
		}
		data, err := w.idx.AppendTo(nil)
		if err != nil {
			return 0, err
		}
		rec, err := w.writeStored([]byte(IndexName), data)
		if err != nil {
			return 0, fmt.Errorf("write index: %w", err)
		}
		w.appendCentral(&rec)
		indexEnd = rec.DataOffset() + int64(w.idx.DataSize())
		if indexEnd > math.MaxUint32 {
			return 0, fmt.Errorf("index end %d: %w", indexEnd, ErrEntryTooLarge)
		}
		w.log().Debug("index written", "entries", w.idx.Len(), "bytes", len(data), "end", indexEnd)
	}

	dirOffset := w.position()
	dirSize := int64(len(w.central))
	w.central = zipfmt.AppendEnd(w.central, w.records, dirSize, dirOffset, indexEnd)
	w.stage.write(w.central)
	w.central = nil
	if err := w.flush(); err != nil {
		return 0, fmt.Errorf("write central directory: %w", err)
	}
	return w.flushed, nil
}

// writePackageDirs emits the directories collected by the package builder
// according to the directory mode.
func (w *Writer) writePackageDirs() error {
	if w.pkgs == nil {
		return nil
	}
	for _, dir := range w.pkgs.Dirs() {
		if _, ok := w.dirs[dir]; ok {
			continue
		}
		if w.pkgs.Mode() != DirNone {
			if err := w.writeDir(dir); err != nil {
				return err
			}
			continue
		}
		if w.idx == nil {
			continue
		}
		e := index.Entry{Hash: index.HashString(dir), Offset: index.DirOffset, Size: index.IndexOnlyDirSize}
		if err := w.idx.Add(e); err != nil {
			return fmt.Errorf("index directory %s: %w", dir, err)
		}
		if err := w.idx.AddName([]byte(dir)); err != nil {
			return err
		}
	}
	return nil
}
