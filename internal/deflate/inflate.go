package deflate

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"

	"github.com/meigma/ikv/internal/ziptype"
)

// MaxRatio bounds how far a deflate stream can expand: one 258 byte match
// costs at least two bits.
const MaxRatio = 1032

// Inflater decodes deflated payloads with pooled decompressors. It is safe
// for concurrent use; each caller supplies its own scratch buffer.
type Inflater struct {
	pool sync.Pool
}

type pooledReader struct {
	src *bytes.Reader
	r   io.ReadCloser
}

// NewInflater creates an empty decompressor pool.
func NewInflater() *Inflater {
	return &Inflater{}
}

// Inflate decodes src, which must expand to exactly size bytes, into
// scratch (grown if needed) and returns the decoded slice.
//
// The whole input is available up front, so a stream that ends early is a
// decoding error rather than a reason to wait for more input.
func (p *Inflater) Inflate(scratch, src []byte, size int) ([]byte, error) {
	if size < 0 || uint64(size) > uint64(len(src))*MaxRatio {
		return nil, fmt.Errorf("%w: %d bytes cannot expand to %d", ziptype.ErrDecompression, len(src), size)
	}
	if cap(scratch) < size {
		scratch = make([]byte, size)
	}
	out := scratch[:size]

	pr := p.get(src)
	defer p.pool.Put(pr)

	n, err := io.ReadFull(pr.r, out)
	if err != nil {
		return nil, fmt.Errorf("%w: inflated %d of %d bytes: %w", ziptype.ErrDecompression, n, size, err)
	}
	return out, nil
}

func (p *Inflater) get(src []byte) *pooledReader {
	if pr, ok := p.pool.Get().(*pooledReader); ok {
		pr.src.Reset(src)
		if err := pr.r.(flate.Resetter).Reset(pr.src, nil); err == nil {
			return pr
		}
	}
	br := bytes.NewReader(src)
	return &pooledReader{src: br, r: flate.NewReader(br)}
}
