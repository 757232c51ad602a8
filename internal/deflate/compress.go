package deflate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/flate"

	"github.com/meigma/ikv/internal/zipfmt"
)

// MaxChunk is the upper bound of a compressed output chunk.
const MaxChunk = 8 << 20

// Stored is the compressed size Compress reports when deflate did not shrink
// the input; the caller must store the entry instead.
const Stored = -1

// Sink receives compressed output. chunk is only valid for the duration of
// the call.
type Sink func(chunk []byte) error

var errNotSmaller = errors.New("deflate: output not smaller than input")

// ChunkSize returns the output chunk size for an input of n bytes: n itself
// up to MaxChunk, otherwise an even split into the fewest chunks that are no
// larger than MaxChunk.
func ChunkSize(n int) int {
	if n <= 0 {
		return 1
	}
	if n <= MaxChunk {
		return n
	}
	chunks := (n + MaxChunk - 1) / MaxChunk
	return n / chunks
}

// Compress deflates src at level and streams the output to sink in chunks
// of ChunkSize(len(src)) bytes. The CRC-32 covers the uncompressed src.
//
// When the compressed stream would not be smaller than src, Compress stops
// emitting chunks and returns Stored as the compressed size. Chunks already
// handed to sink are then garbage the caller overwrites with the raw bytes.
func Compress(src []byte, level int, sink Sink) (compressedSize int64, crc uint32, err error) {
	crc = zipfmt.CRC32(src)

	cw := &chunkWriter{
		buf:   make([]byte, 0, ChunkSize(len(src))),
		limit: int64(len(src)),
		sink:  sink,
	}
	fw, release, err := writers.get(level, cw)
	if err != nil {
		return 0, 0, err
	}
	defer release()

	if _, err = fw.Write(src); err == nil {
		if err = fw.Close(); err == nil {
			err = cw.emit()
		}
	}
	if cw.exceeded || errors.Is(err, errNotSmaller) {
		return Stored, crc, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return cw.total, crc, nil
}

// chunkWriter collects flate output and forwards it in fixed-size chunks.
type chunkWriter struct {
	buf      []byte
	total    int64
	limit    int64
	sink     Sink
	exceeded bool
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := copy(w.buf[len(w.buf):cap(w.buf)], p)
		w.buf = w.buf[:len(w.buf)+n]
		p = p[n:]
		written += n
		if len(w.buf) == cap(w.buf) {
			if err := w.emit(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

func (w *chunkWriter) emit() error {
	if len(w.buf) == 0 {
		return nil
	}
	if w.total+int64(len(w.buf)) >= w.limit {
		w.exceeded = true
		return errNotSmaller
	}
	if err := w.sink(w.buf); err != nil {
		return err
	}
	w.total += int64(len(w.buf))
	w.buf = w.buf[:0]
	return nil
}

// writerPool keeps one sync.Pool of flate writers per level.
type writerPool struct {
	pools [BestCompression - HuffmanOnly + 1]sync.Pool
}

var writers writerPool

func (p *writerPool) get(level int, dst *chunkWriter) (*flate.Writer, func(), error) {
	if !ValidLevel(level) {
		return nil, nil, fmt.Errorf("deflate: invalid level %d", level)
	}
	pool := &p.pools[level-HuffmanOnly]
	if fw, ok := pool.Get().(*flate.Writer); ok {
		fw.Reset(dst)
		return fw, func() { pool.Put(fw) }, nil
	}
	fw, err := flate.NewWriter(dst, level)
	if err != nil {
		return nil, nil, err
	}
	return fw, func() { pool.Put(fw) }, nil
}
