package ikv

const (
	// stageCapacity is the size of the primary staging buffer.
	stageCapacity = 128 << 10

	// flushThreshold is the staged size above which the stage is flushed
	// before the next entry starts.
	flushThreshold = 1 << 20
)

// stage accumulates bytes that have a logical position in the archive but
// have not been handed to the backend yet.
//
// The primary buffer never grows. Once something does not fit, the primary
// is sealed and further bytes go to spill segments that follow it in order.
// Regions returned by reserve stay addressable until the next reset, which
// lets the writer patch headers after the payload is known.
type stage struct {
	primary []byte
	sealed  bool
	spills  [][]byte
	size    int
}

func newStage() *stage {
	return &stage{primary: make([]byte, 0, stageCapacity)}
}

// reserve appends n contiguous bytes and returns them. The contents are
// stale and must be overwritten.
func (s *stage) reserve(n int) []byte {
	if !s.sealed && cap(s.primary)-len(s.primary) >= n {
		off := len(s.primary)
		s.primary = s.primary[:off+n]
		s.size += n
		return s.primary[off : off+n : off+n]
	}
	if i := len(s.spills) - 1; i >= 0 {
		seg := s.spills[i]
		if off := len(seg); cap(seg)-off >= n {
			s.spills[i] = seg[:off+n]
			s.size += n
			return seg[off : off+n : off+n]
		}
	}
	seg := s.spill(n)[:n]
	s.spills[len(s.spills)-1] = seg
	s.size += n
	return seg[:n:n]
}

// write appends p, splitting it across segments as needed.
func (s *stage) write(p []byte) {
	for len(p) > 0 {
		seg, i := s.open()
		if seg == nil || cap(seg) == len(seg) {
			s.spill(len(p))
			continue
		}
		off := len(seg)
		n := copy(seg[off:cap(seg)], p)
		seg = seg[:off+n]
		if i < 0 {
			s.primary = seg
		} else {
			s.spills[i] = seg
		}
		s.size += n
		p = p[n:]
	}
}

// grow makes sure the next n written bytes land in one segment.
func (s *stage) grow(n int) {
	if n <= 0 {
		return
	}
	if seg, _ := s.open(); seg != nil && cap(seg)-len(seg) >= n {
		return
	}
	s.spill(n)
}

// open returns the segment currently receiving bytes and its spill index,
// or -1 for the primary.
func (s *stage) open() ([]byte, int) {
	if i := len(s.spills) - 1; i >= 0 {
		return s.spills[i], i
	}
	if s.sealed {
		return nil, -1
	}
	return s.primary, -1
}

// spill seals the primary and starts an empty segment with room for at
// least n bytes.
func (s *stage) spill(n int) []byte {
	s.sealed = true
	seg := make([]byte, 0, max(n, stageCapacity))
	s.spills = append(s.spills, seg)
	return seg
}

// truncate drops staged bytes beyond size.
func (s *stage) truncate(size int) {
	for s.size > size {
		excess := s.size - size
		if i := len(s.spills) - 1; i >= 0 {
			seg := s.spills[i]
			if len(seg) <= excess {
				s.spills[i] = nil
				s.spills = s.spills[:i]
				s.size -= len(seg)
				continue
			}
			s.spills[i] = seg[:len(seg)-excess]
			s.size = size
			continue
		}
		s.primary = s.primary[:len(s.primary)-excess]
		s.size = size
	}
	if len(s.spills) == 0 {
		s.sealed = false
	}
}

// bufs returns the staged segments in order.
func (s *stage) bufs() [][]byte {
	out := make([][]byte, 0, 1+len(s.spills))
	if len(s.primary) > 0 {
		out = append(out, s.primary)
	}
	for _, seg := range s.spills {
		if len(seg) > 0 {
			out = append(out, seg)
		}
	}
	return out
}

// reset empties the stage, keeping the primary buffer.
func (s *stage) reset() {
	s.primary = s.primary[:0]
	s.sealed = false
	clear(s.spills)
	s.spills = s.spills[:0]
	s.size = 0
}

// release drops every buffer. The stage must not be used afterwards.
func (s *stage) release() {
	s.primary = nil
	s.spills = nil
	s.size = 0
}
