package ikv

import (
	"github.com/meigma/ikv/internal/deflate"
	"github.com/meigma/ikv/internal/zipfmt"
	"github.com/meigma/ikv/internal/ziptype"
)

type (
	// Compression identifies the method used to store an entry's payload.
	Compression = ziptype.Compression

	// DirMode controls which directory entries are written on Close.
	DirMode = ziptype.DirMode

	// SkipCompressionFunc returns true when an entry should be stored
	// uncompressed. It is called once per entry and should be inexpensive.
	SkipCompressionFunc = deflate.SkipFunc
)

// Compression methods.
const (
	Stored   = ziptype.Stored
	Deflated = ziptype.Deflated
)

// Directory modes.
const (
	// DirNone writes no directory entries. Directories are recorded in the
	// index only.
	DirNone = ziptype.DirNone

	// DirResourceOnly writes directory entries for directories that hold at
	// least one non-class file.
	DirResourceOnly = ziptype.DirResourceOnly

	// DirAll writes directory entries for every directory, including those
	// holding only class files.
	DirAll = ziptype.DirAll
)

// Compression levels accepted by CreateWithCompression.
const (
	NoCompression      = deflate.NoCompression
	BestSpeed          = deflate.BestSpeed
	BestCompression    = deflate.BestCompression
	DefaultCompression = deflate.DefaultCompression
)

// IndexName is the name of the entry holding the IKV index. Readers skip it.
const IndexName = zipfmt.IndexName

// ParseDirMode parses "none", "resource" or "all".
func ParseDirMode(s string) (DirMode, bool) {
	return ziptype.ParseDirMode(s)
}

// DefaultSkipCompression returns a SkipCompressionFunc that stores files with
// known already-compressed extensions.
var DefaultSkipCompression = deflate.DefaultSkip
