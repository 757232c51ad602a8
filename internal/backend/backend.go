// Package backend provides the output sinks an archive is written through.
//
// Two implementations exist: a channel backend issuing positioned writes to a
// file descriptor, and a mapped backend that exposes a growable memory-mapped
// window over the target file. Both are addressed by absolute position.
package backend

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/meigma/ikv/internal/ziptype"
)

// MaxReservation is the largest region a single Reserve call may request.
const MaxReservation int64 = 1 << 31

// Backend is a positioned output sink.
type Backend interface {
	// Reserve returns a writable view of size bytes at pos. The view's
	// length and capacity are exactly size. Only backends reporting
	// CanReserve support it; others return ErrReserveUnsupported.
	Reserve(size int, pos int64) ([]byte, error)

	// Write writes all of p at pos.
	Write(p []byte, pos int64) error

	// WriteVectored writes bufs back to back starting at pos.
	WriteVectored(bufs [][]byte, pos int64) error

	// TransferFrom copies size bytes of src starting at srcOff to pos.
	TransferFrom(src *os.File, srcOff, size, pos int64) error

	// CanReserve reports whether Reserve is supported.
	CanReserve() bool

	// Finalize releases the backend and leaves the target exactly size
	// bytes long. The backend must not be used afterwards.
	Finalize(size int64) error
}

// Option configures a backend.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	initialChunk int64
}

// WithLogger sets the logger used for suppressed cleanup errors.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithInitialChunk sets the starting chunk size of the mapped backend.
// Values are rounded up to the chunk alignment.
func WithInitialChunk(size int64) Option {
	return func(o *options) {
		if size > 0 {
			o.initialChunk = size
		}
	}
}

func newOptions(opts []Option) options {
	o := options{initialChunk: InitialChunkSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o *options) log() *slog.Logger {
	if o.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.logger
}

func checkPosition(pos int64) error {
	if pos < 0 {
		return fmt.Errorf("position %d: %w", pos, ziptype.ErrNegativePosition)
	}
	return nil
}

func checkReservation(size int, pos int64) error {
	if err := checkPosition(pos); err != nil {
		return err
	}
	if size < 0 || int64(size) > MaxReservation {
		return fmt.Errorf("reserve %d bytes: %w", size, ziptype.ErrReservationTooLarge)
	}
	return nil
}

// writeFullAt writes p at pos, resuming after partial writes as long as the
// writer makes progress.
func writeFullAt(w io.WriterAt, p []byte, pos int64) error {
	for len(p) > 0 {
		n, err := w.WriteAt(p, pos)
		p = p[n:]
		pos += int64(n)
		if len(p) == 0 {
			return nil
		}
		if n > 0 {
			continue
		}
		if err == nil {
			err = io.ErrShortWrite
		}
		return fmt.Errorf("%w: write at %d: %w", ziptype.ErrIO, pos, err)
	}
	return nil
}

// copyAt copies size bytes from src at srcOff to dst at pos through buf.
func copyAt(dst io.WriterAt, src io.ReaderAt, srcOff, size, pos int64, buf []byte) error {
	done := int64(0)
	for done < size {
		chunk := buf[:min(int64(len(buf)), size-done)]
		n, err := src.ReadAt(chunk, srcOff+done)
		if n > 0 {
			if werr := writeFullAt(dst, chunk[:n], pos+done); werr != nil {
				return werr
			}
			done += int64(n)
		}
		if done == size {
			return nil
		}
		if errors.Is(err, io.EOF) || (err == nil && n == 0) {
			return fmt.Errorf("transfer %d of %d bytes: %w", done, size, ziptype.ErrShortTransfer)
		}
		if err != nil {
			return fmt.Errorf("%w: read at %d: %w", ziptype.ErrIO, srcOff+done, err)
		}
	}
	return nil
}

// copyBufferSize is the buffer used by non-kernel transfers.
const copyBufferSize = 256 << 10

func resourceError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ziptype.ErrResource, err)
}
