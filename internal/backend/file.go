package backend

import (
	"os"

	"github.com/meigma/ikv/internal/ziptype"
)

// File is the channel backend: every operation is a positioned write to the
// target descriptor, so the file never grows past what was written.
type File struct {
	f    *os.File
	opts options
}

var _ Backend = (*File)(nil)

// NewFile returns a channel backend writing to f. The backend takes ownership
// of f and closes it in Finalize.
func NewFile(f *os.File, opts ...Option) *File {
	return &File{f: f, opts: newOptions(opts)}
}

// Reserve is not supported by the channel backend.
func (b *File) Reserve(size int, pos int64) ([]byte, error) {
	if err := checkReservation(size, pos); err != nil {
		return nil, err
	}
	return nil, ziptype.ErrReserveUnsupported
}

// CanReserve reports false.
func (b *File) CanReserve() bool {
	return false
}

// Write writes all of p at pos, retrying partial writes.
func (b *File) Write(p []byte, pos int64) error {
	if err := checkPosition(pos); err != nil {
		return err
	}
	return writeFullAt(b.f, p, pos)
}

// WriteVectored writes bufs back to back starting at pos.
func (b *File) WriteVectored(bufs [][]byte, pos int64) error {
	if err := checkPosition(pos); err != nil {
		return err
	}
	return b.writev(bufs, pos)
}

// TransferFrom copies size bytes from src at srcOff to pos, preferring a
// kernel-side copy where the platform offers one.
func (b *File) TransferFrom(src *os.File, srcOff, size, pos int64) error {
	if err := checkPosition(pos); err != nil {
		return err
	}
	if size <= 0 {
		return nil
	}
	return b.transfer(src, srcOff, size, pos)
}

// Finalize closes the descriptor. Writes are already exactly sized, so no
// truncation is needed.
func (b *File) Finalize(int64) error {
	return resourceError(b.f.Close())
}
