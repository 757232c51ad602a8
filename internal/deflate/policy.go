package deflate

import (
	"path"
	"strings"

	"github.com/klauspost/compress/flate"
)

// Compression levels, re-exported from the flate implementation.
const (
	NoCompression      = flate.NoCompression
	BestSpeed          = flate.BestSpeed
	BestCompression    = flate.BestCompression
	DefaultCompression = flate.DefaultCompression
	HuffmanOnly        = flate.HuffmanOnly
)

// MinSize is the smallest entry that is ever compressed.
const MinSize = 8 << 10

// SkipFunc returns true when an entry should be stored uncompressed.
// It is called once per entry and should be inexpensive.
type SkipFunc func(name string, size int64) bool

// ShouldCompress reports whether an entry is deflated: compression must be
// enabled, the entry must be at least MinSize bytes and it must not be a PNG.
// Any skip predicate returning true forces Stored.
func ShouldCompress(name string, size int64, level int, skip ...SkipFunc) bool {
	if level == NoCompression || size < MinSize || strings.HasSuffix(name, ".png") {
		return false
	}
	for _, fn := range skip {
		if fn != nil && fn(name, size) {
			return false
		}
	}
	return true
}

// ValidLevel reports whether level is accepted by the compressor.
func ValidLevel(level int) bool {
	return level >= HuffmanOnly && level <= BestCompression
}

// DefaultSkip returns a SkipFunc that stores entries with extensions of
// formats that are already compressed.
func DefaultSkip() SkipFunc {
	return func(name string, _ int64) bool {
		_, ok := precompressedExts[strings.ToLower(path.Ext(name))]
		return ok
	}
}

var precompressedExts = map[string]struct{}{
	".7z":    {},
	".bz2":   {},
	".gif":   {},
	".gz":    {},
	".ico":   {},
	".jar":   {},
	".jpeg":  {},
	".jpg":   {},
	".mp3":   {},
	".mp4":   {},
	".ogg":   {},
	".pdf":   {},
	".png":   {},
	".svgz":  {},
	".tgz":   {},
	".webp":  {},
	".woff":  {},
	".woff2": {},
	".xz":    {},
	".zip":   {},
	".zst":   {},
}
