//go:build !linux

package backend

import "os"

func (b *File) writev(bufs [][]byte, pos int64) error {
	for _, buf := range bufs {
		if err := writeFullAt(b.f, buf, pos); err != nil {
			return err
		}
		pos += int64(len(buf))
	}
	return nil
}

func (b *File) transfer(src *os.File, srcOff, size, pos int64) error {
	return copyAt(b.f, src, srcOff, size, pos, make([]byte, copyBufferSize))
}
