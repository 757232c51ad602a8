package ikv

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/meigma/ikv/internal/backend"
	"github.com/meigma/ikv/internal/deflate"
	"github.com/meigma/ikv/internal/platform"
	"github.com/meigma/ikv/internal/sizing"
	"github.com/meigma/ikv/internal/zipfmt"
	"github.com/meigma/ikv/internal/ziptype"
)

// region is a writable byte range at a fixed logical position, either in
// the stage or reserved directly from the backend.
type region struct {
	buf    []byte
	pos    int64
	staged bool
}

// position returns the logical write position: everything flushed plus
// everything still staged.
func (w *Writer) position() int64 {
	return w.flushed + int64(w.stage.size)
}

// flush hands all staged bytes to the backend in one vectored write.
func (w *Writer) flush() error {
	if w.stage.size == 0 {
		return nil
	}
	if err := w.backend.WriteVectored(w.stage.bufs(), w.flushed); err != nil {
		return err
	}
	w.log().Debug("flushed stage", "bytes", w.stage.size, "position", w.flushed)
	w.flushed += int64(w.stage.size)
	w.stage.reset()
	return nil
}

// flushIfNeeded flushes once the stage has grown past flushThreshold and
// returns the logical position of the next entry.
func (w *Writer) flushIfNeeded() (int64, error) {
	if w.stage.size > flushThreshold {
		if err := w.flush(); err != nil {
			return 0, err
		}
	}
	return w.position(), nil
}

// claim returns a region of n bytes at the current position. Backends that
// support reservations hand out the range directly; otherwise it is staged.
func (w *Writer) claim(n int) (region, error) {
	if w.backend.CanReserve() {
		if err := w.flush(); err != nil {
			return region{}, err
		}
		buf, err := w.backend.Reserve(n, w.flushed)
		if err != nil {
			return region{}, err
		}
		return region{buf: buf, pos: w.flushed}, nil
	}
	pos, err := w.flushIfNeeded()
	if err != nil {
		return region{}, err
	}
	return region{buf: w.stage.reserve(n), pos: pos, staged: true}, nil
}

// commit keeps the first used bytes of r and advances the position past
// them. The rest of r is given back.
func (w *Writer) commit(r region, used int) {
	if r.staged {
		w.stage.truncate(w.stage.size - (len(r.buf) - used))
		return
	}
	w.flushed = r.pos + int64(used)
}

// fitsRegion reports whether an entry of n bytes can be written through a
// single region.
func (w *Writer) fitsRegion(n int64) bool {
	if w.backend.CanReserve() {
		return n <= backend.MaxReservation
	}
	return n <= flushThreshold
}

// compress reports whether an entry is deflated.
func (w *Writer) compress(name []byte, size int64) bool {
	return deflate.ShouldCompress(string(name), size, w.cfg.level, w.cfg.skipCompression...)
}

func (w *Writer) crc(b []byte) uint32 {
	if !w.cfg.crc {
		return 0
	}
	return zipfmt.CRC32(b)
}

// writeBytes writes a known-size entry whose payload is in memory.
func (w *Writer) writeBytes(name, data []byte) (ziptype.Record, error) {
	if w.compress(name, int64(len(data))) {
		return w.writeDeflated(name, data)
	}
	return w.writeStored(name, data)
}

// writeStored writes header and payload as one region and computes the CRC
// over the payload in place.
func (w *Writer) writeStored(name, data []byte) (ziptype.Record, error) {
	hdr := zipfmt.LocalHeaderSize + len(name)
	n := int64(hdr) + int64(len(data))
	if !w.fitsRegion(n) {
		return w.writeDirect(name, data)
	}
	r, err := w.claim(int(n))
	if err != nil {
		return ziptype.Record{}, err
	}
	payload := r.buf[hdr:]
	copy(payload, data)
	crc := w.crc(payload)
	size := uint32(len(data)) //nolint:gosec // checked in begin
	zipfmt.PutLocalHeader(r.buf, Stored, crc, size, size, name)
	w.commit(r, len(r.buf))
	return storedRecord(name, r.pos, crc, size), nil
}

// writeDirect writes an oversized stored entry straight to the backend
// without copying the payload.
func (w *Writer) writeDirect(name, data []byte) (ziptype.Record, error) {
	if err := w.flush(); err != nil {
		return ziptype.Record{}, err
	}
	crc := w.crc(data)
	size := uint32(len(data)) //nolint:gosec // checked in begin
	header := make([]byte, zipfmt.LocalHeaderSize+len(name))
	zipfmt.PutLocalHeader(header, Stored, crc, size, size, name)

	pos := w.flushed
	if err := w.backend.WriteVectored([][]byte{header, data}, pos); err != nil {
		return ziptype.Record{}, err
	}
	w.flushed = pos + int64(len(header)) + int64(len(data))
	w.log().Debug("wrote entry directly", "name", string(name), "bytes", len(data))
	return storedRecord(name, pos, crc, size), nil
}

func storedRecord(name []byte, pos int64, crc, size uint32) ziptype.Record {
	return ziptype.Record{
		Name:           name,
		Size:           size,
		CompressedSize: size,
		CRC:            crc,
		Method:         Stored,
		HeaderOffset:   pos,
	}
}

// writeDeflated compresses data into the archive. Output that would not be
// smaller than the input is replaced by the raw bytes and stored.
func (w *Writer) writeDeflated(name, data []byte) (ziptype.Record, error) {
	n := int64(zipfmt.LocalHeaderSize+len(name)) + int64(len(data))
	if w.fitsRegion(n) {
		return w.deflateInto(name, data)
	}
	return w.deflateStreaming(name, data)
}

// deflateInto compresses into a region sized for the uncompressed payload,
// which always has room for either outcome.
func (w *Writer) deflateInto(name, data []byte) (ziptype.Record, error) {
	hdr := zipfmt.LocalHeaderSize + len(name)
	r, err := w.claim(hdr + len(data))
	if err != nil {
		return ziptype.Record{}, err
	}
	payload := r.buf[hdr:]
	written := 0
	csize, crc, err := deflate.Compress(data, w.cfg.level, func(chunk []byte) error {
		written += copy(payload[written:], chunk)
		return nil
	})
	if err != nil {
		w.commit(r, 0)
		return ziptype.Record{}, err
	}
	method := Deflated
	if csize == deflate.Stored {
		copy(payload, data)
		csize = int64(len(data))
		method = Stored
		w.log().Debug("deflate did not shrink entry, storing", "name", string(name), "size", len(data))
	}
	return w.finishDeflated(name, r, method, crc, csize, len(data))
}

func (w *Writer) finishDeflated(name []byte, r region, method ziptype.Compression, crc uint32, csize int64, size int) (ziptype.Record, error) {
	if !w.cfg.crc {
		crc = 0
	}
	rec := ziptype.Record{
		Name:           name,
		Size:           uint32(size),  //nolint:gosec // checked in begin
		CompressedSize: uint32(csize), //nolint:gosec // never larger than size
		CRC:            crc,
		Method:         method,
		HeaderOffset:   r.pos,
	}
	zipfmt.PutLocalHeader(r.buf, method, crc, rec.CompressedSize, rec.Size, name)
	w.commit(r, zipfmt.LocalHeaderSize+len(name)+int(csize))
	return rec, nil
}

// deflateStreaming sends compressed chunks to the backend as they are
// produced and writes the header last, at its reserved position.
func (w *Writer) deflateStreaming(name, data []byte) (ziptype.Record, error) {
	if err := w.flush(); err != nil {
		return ziptype.Record{}, err
	}
	pos := w.flushed
	dataPos := pos + int64(zipfmt.LocalHeaderSize+len(name))

	at := dataPos
	csize, crc, err := deflate.Compress(data, w.cfg.level, func(chunk []byte) error {
		if err := w.backend.Write(chunk, at); err != nil {
			return err
		}
		at += int64(len(chunk))
		return nil
	})
	if err != nil {
		return ziptype.Record{}, err
	}
	method := Deflated
	if csize == deflate.Stored {
		if err := w.backend.Write(data, dataPos); err != nil {
			return ziptype.Record{}, err
		}
		csize = int64(len(data))
		method = Stored
		w.log().Debug("deflate did not shrink entry, storing", "name", string(name), "size", len(data))
	}

	header := region{buf: make([]byte, zipfmt.LocalHeaderSize+len(name)), pos: pos}
	rec, err := w.finishDeflated(name, header, method, crc, csize, len(data))
	if err != nil {
		return ziptype.Record{}, err
	}
	if err := w.backend.Write(header.buf, pos); err != nil {
		return ziptype.Record{}, err
	}
	w.log().Debug("streamed compressed entry", "name", string(name), "chunk", deflate.ChunkSize(len(data)))
	return rec, nil
}

// writeUnknown stages an entry whose size is only known once fn returns,
// then patches the header in place.
func (w *Writer) writeUnknown(name []byte, estimate int, fn func(io.Writer) error) (ziptype.Record, error) {
	pos, err := w.flushIfNeeded()
	if err != nil {
		return ziptype.Record{}, err
	}
	mark := w.stage.size
	header := w.stage.reserve(zipfmt.LocalHeaderSize + len(name))
	zipfmt.PutLocalHeader(header, Stored, 0, 0, 0, name)

	sw := &stageWriter{stage: w.stage, crc: w.cfg.crc, limit: math.MaxUint32}
	if w.idx != nil {
		sw.limit = math.MaxInt32
	}
	// The estimate is only a hint; anything past the flush threshold grows
	// the stage on demand.
	w.stage.grow(int(min(int64(estimate), sw.limit, flushThreshold)))
	if err := fn(sw); err != nil {
		w.stage.truncate(mark)
		return ziptype.Record{}, err
	}
	if sw.err != nil {
		w.stage.truncate(mark)
		return ziptype.Record{}, sw.err
	}

	size, err := sizing.ToUint32(sw.n, ErrEntryTooLarge)
	if err != nil {
		w.stage.truncate(mark)
		return ziptype.Record{}, err
	}
	zipfmt.PatchLocalHeader(header, Stored, sw.sum, size, size)
	return storedRecord(name, pos, sw.sum, size), nil
}

// stageWriter appends an unknown-size payload to the stage.
type stageWriter struct {
	stage *stage
	crc   bool
	sum   uint32
	n     int64
	limit int64
	err   error
}

func (sw *stageWriter) Write(p []byte) (int, error) {
	if sw.err != nil {
		return 0, sw.err
	}
	if sw.n+int64(len(p)) > sw.limit {
		sw.err = fmt.Errorf("entry exceeds %d bytes: %w", sw.limit, ErrEntryTooLarge)
		return 0, sw.err
	}
	sw.stage.write(p)
	if sw.crc {
		sw.sum = zipfmt.UpdateCRC32(sw.sum, p)
	}
	sw.n += int64(len(p))
	return len(p), nil
}

// transfer writes an entry whose payload comes from src.
//
// Without CRCs the payload is copied by the backend, which uses the kernel
// where it can. With CRCs and a reserving backend the payload is read into
// the reserved range and checksummed there. Otherwise the source is mapped
// and written like an in-memory payload.
func (w *Writer) transfer(name []byte, src *os.File, size int64) (ziptype.Record, error) {
	hdr := zipfmt.LocalHeaderSize + len(name)
	switch {
	case w.compress(name, size):
		return w.transferMapped(name, src, size)
	case !w.cfg.crc:
		return w.transferRaw(name, src, size)
	case w.backend.CanReserve() && int64(hdr)+size <= backend.MaxReservation:
		r, err := w.claim(hdr + int(size))
		if err != nil {
			return ziptype.Record{}, err
		}
		payload := r.buf[hdr:]
		if _, err := io.ReadFull(io.NewSectionReader(src, 0, size), payload); err != nil {
			w.commit(r, 0)
			return ziptype.Record{}, shortTransfer(err)
		}
		crc := zipfmt.CRC32(payload)
		zipfmt.PutLocalHeader(r.buf, Stored, crc, uint32(size), uint32(size), name) //nolint:gosec // checked in begin
		w.commit(r, len(r.buf))
		return storedRecord(name, r.pos, crc, uint32(size)), nil //nolint:gosec // checked in begin
	default:
		return w.transferMapped(name, src, size)
	}
}

// transferRaw stages the header, flushes and lets the backend copy the
// payload. The CRC field stays zero.
func (w *Writer) transferRaw(name []byte, src *os.File, size int64) (ziptype.Record, error) {
	r, err := w.claim(zipfmt.LocalHeaderSize + len(name))
	if err != nil {
		return ziptype.Record{}, err
	}
	zipfmt.PutLocalHeader(r.buf, Stored, 0, uint32(size), uint32(size), name) //nolint:gosec // checked in begin
	w.commit(r, len(r.buf))
	if err := w.flush(); err != nil {
		return ziptype.Record{}, err
	}
	if err := w.backend.TransferFrom(src, 0, size, w.flushed); err != nil {
		return ziptype.Record{}, err
	}
	w.flushed += size
	return storedRecord(name, r.pos, 0, uint32(size)), nil //nolint:gosec // checked in begin
}

func (w *Writer) transferMapped(name []byte, src *os.File, size int64) (ziptype.Record, error) {
	m, err := platform.MapFile(src)
	if err != nil {
		return ziptype.Record{}, err
	}
	defer m.Close()
	if int64(m.Len()) != size {
		return ziptype.Record{}, fmt.Errorf("source changed size from %d to %d: %w", size, m.Len(), ErrShortTransfer)
	}
	return w.writeBytes(name, m.Bytes())
}

func shortTransfer(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrShortTransfer, err)
	}
	return err
}
