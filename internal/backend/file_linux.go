//go:build linux

package backend

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/meigma/ikv/internal/ziptype"
)

// maxIovecs caps the number of buffers handed to a single pwritev call.
const maxIovecs = 1024

// maxCopyRange caps a single copy_file_range request.
const maxCopyRange = 1 << 30

func (b *File) writev(bufs [][]byte, pos int64) error {
	fd := int(b.f.Fd()) //nolint:gosec // descriptors fit in int
	pending := make([][]byte, 0, len(bufs))
	for _, buf := range bufs {
		if len(buf) > 0 {
			pending = append(pending, buf)
		}
	}
	for len(pending) > 0 {
		batch := pending[:min(len(pending), maxIovecs)]
		n, err := unix.Pwritev(fd, batch, pos)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: pwritev at %d: %w", ziptype.ErrIO, pos, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: pwritev at %d made no progress", ziptype.ErrIO, pos)
		}
		pos += int64(n)
		for n > 0 {
			if n >= len(pending[0]) {
				n -= len(pending[0])
				pending = pending[1:]
				continue
			}
			pending[0] = pending[0][n:]
			n = 0
		}
	}
	return nil
}

func (b *File) transfer(src *os.File, srcOff, size, pos int64) error {
	rfd := int(src.Fd()) //nolint:gosec // descriptors fit in int
	wfd := int(b.f.Fd()) //nolint:gosec // descriptors fit in int
	roff, woff := srcOff, pos
	remaining := size
	for remaining > 0 {
		n, err := unix.CopyFileRange(rfd, &roff, wfd, &woff, int(min(remaining, maxCopyRange)), 0)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			if canFallBack(err) {
				b.opts.log().Debug("copy_file_range unavailable, copying through user space", "error", err)
				return copyAt(b.f, src, roff, remaining, woff, make([]byte, copyBufferSize))
			}
			return fmt.Errorf("%w: copy_file_range: %w", ziptype.ErrIO, err)
		}
		if n == 0 {
			return fmt.Errorf("transfer %d of %d bytes: %w", size-remaining, size, ziptype.ErrShortTransfer)
		}
		remaining -= int64(n)
	}
	return nil
}

func canFallBack(err error) bool {
	return errors.Is(err, unix.ENOSYS) ||
		errors.Is(err, unix.EXDEV) ||
		errors.Is(err, unix.EINVAL) ||
		errors.Is(err, unix.EOPNOTSUPP) ||
		errors.Is(err, unix.EBADF)
}
