//go:build linux || darwin

package backend

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/meigma/ikv/internal/sizing"
	"github.com/meigma/ikv/internal/teardown"
	"github.com/meigma/ikv/internal/ziptype"
)

// mapped keeps one shared mapping over a window of the target file. The
// window moves forward (or back, for header rewrites) as callers reserve
// ranges outside it, and its size only ever grows.
type mapped struct {
	f    *os.File
	opts options

	chunk      []byte // current mapping, nil when nothing is mapped
	chunkStart int64  // file offset of chunk[0], page aligned
	chunkSize  int64  // logical chunk size, 64 KiB aligned, monotonic
	fileSize   int64  // current length of the backing file
	remaps     int
}

// NewMapped returns a memory-mapped backend over f. f must be opened for
// reading and writing. The backend takes ownership of f.
func NewMapped(f *os.File, opts ...Option) (Backend, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	o := newOptions(opts)
	return &mapped{
		f:         f,
		opts:      o,
		chunkSize: sizing.RoundUp(o.initialChunk, chunkAlign),
		fileSize:  info.Size(),
	}, nil
}

// CanReserve reports true.
func (m *mapped) CanReserve() bool {
	return true
}

// Reserve returns a view of exactly size bytes at pos, remapping when the
// range is not covered by the current chunk.
func (m *mapped) Reserve(size int, pos int64) ([]byte, error) {
	if err := checkReservation(size, pos); err != nil {
		return nil, err
	}
	end := pos + int64(size)
	if m.chunk == nil || pos < m.chunkStart || end > m.chunkStart+int64(len(m.chunk)) {
		if err := m.remap(int64(size), pos); err != nil {
			return nil, err
		}
	}
	off := pos - m.chunkStart
	return m.chunk[off : off+int64(size) : off+int64(size)], nil
}

// remap replaces the current chunk with one starting at (or just below) pos.
func (m *mapped) remap(size, pos int64) error {
	if err := m.unmap(); err != nil {
		return err
	}

	// The first mapping uses the initial size unless the request needs more.
	// Every later remap at least doubles the chunk.
	if m.remaps > 0 || size > m.chunkSize {
		m.chunkSize = max(sizing.RoundUp(size, chunkAlign), m.chunkSize*2, m.chunkSize)
	}

	start := sizing.RoundDown(pos, int64(os.Getpagesize()))
	length := m.chunkSize + (pos - start)
	if start+length > m.fileSize {
		if err := m.f.Truncate(start + length); err != nil {
			return fmt.Errorf("%w: extend to %d: %w", ziptype.ErrIO, start+length, err)
		}
		m.fileSize = start + length
	}

	data, err := unix.Mmap(int(m.f.Fd()), start, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED) //nolint:gosec // fd and length fit in int
	if err != nil {
		return fmt.Errorf("%w: mmap %d bytes at %d: %w", ziptype.ErrIO, length, start, err)
	}
	m.chunk = data
	m.chunkStart = start
	m.remaps++
	m.opts.log().Debug("remapped output chunk", "start", start, "chunk_size", m.chunkSize, "remaps", m.remaps)
	return nil
}

func (m *mapped) unmap() error {
	if m.chunk == nil {
		return nil
	}
	chunk := m.chunk
	m.chunk = nil
	if err := unix.Msync(chunk, unix.MS_ASYNC); err != nil {
		_ = unix.Munmap(chunk) //nolint:errcheck // msync error takes precedence
		return fmt.Errorf("%w: msync: %w", ziptype.ErrIO, err)
	}
	if err := unix.Munmap(chunk); err != nil {
		return fmt.Errorf("%w: munmap: %w", ziptype.ErrIO, err)
	}
	return nil
}

// Write copies p into the mapping at pos.
func (m *mapped) Write(p []byte, pos int64) error {
	for len(p) > 0 {
		n := int(min(int64(len(p)), MaxReservation))
		dst, err := m.Reserve(n, pos)
		if err != nil {
			return err
		}
		copy(dst, p[:n])
		p = p[n:]
		pos += int64(n)
	}
	return checkPosition(pos)
}

// WriteVectored copies bufs into the mapping back to back.
func (m *mapped) WriteVectored(bufs [][]byte, pos int64) error {
	for _, buf := range bufs {
		if err := m.Write(buf, pos); err != nil {
			return err
		}
		pos += int64(len(buf))
	}
	return checkPosition(pos)
}

// TransferFrom reads size bytes of src directly into reserved ranges.
func (m *mapped) TransferFrom(src *os.File, srcOff, size, pos int64) error {
	if err := checkPosition(pos); err != nil {
		return err
	}
	done := int64(0)
	for done < size {
		n := min(size-done, MaxReservation)
		dst, err := m.Reserve(int(n), pos+done)
		if err != nil {
			return err
		}
		read, err := io.ReadFull(io.NewSectionReader(src, srcOff+done, n), dst)
		done += int64(read)
		if err != nil {
			return fmt.Errorf("transfer %d of %d bytes: %w", done, size, ziptype.ErrShortTransfer)
		}
	}
	return nil
}

// Finalize flushes and unmaps the last chunk, truncates the file to size and
// closes it. Every step runs; the first failure is returned.
func (m *mapped) Finalize(size int64) error {
	var steps teardown.List
	steps.Add("unmap", m.unmap)
	steps.Add("truncate", func() error { return m.f.Truncate(size) })
	steps.Add("close", m.f.Close)
	return resourceError(steps.Run(m.opts.log()))
}
