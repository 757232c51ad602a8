package ziptype

import (
	"errors"
	"fmt"
)

// Error classes. Every specific error below wraps exactly one of them.
var (
	// ErrFormat reports corrupt or unsupported archive input.
	ErrFormat = errors.New("ikv: format error")

	// ErrUsage reports API misuse by the caller.
	ErrUsage = errors.New("ikv: usage error")

	// ErrIO reports a short read or write that could not be completed.
	ErrIO = errors.New("ikv: i/o error")

	// ErrResource reports a failure while releasing resources during finalize.
	ErrResource = errors.New("ikv: resource error")
)

// Format errors.
var (
	ErrNotArchive        = fmt.Errorf("%w: end of central directory not found", ErrFormat)
	ErrBadSignature      = fmt.Errorf("%w: bad record signature", ErrFormat)
	ErrUnsupportedMethod = fmt.Errorf("%w: unsupported compression method", ErrFormat)
	ErrExtraTooLarge     = fmt.Errorf("%w: local extra field exceeds limit", ErrFormat)
	ErrDecompression     = fmt.Errorf("%w: decompression failed", ErrFormat)
	ErrChecksum          = fmt.Errorf("%w: crc32 mismatch", ErrFormat)
	ErrIndexCorrupt      = fmt.Errorf("%w: corrupt ikv index", ErrFormat)
)

// Usage errors.
var (
	ErrClosed              = fmt.Errorf("%w: archive is closed", ErrUsage)
	ErrReservationTooLarge = fmt.Errorf("%w: reservation exceeds 2 GiB", ErrUsage)
	ErrNegativePosition    = fmt.Errorf("%w: negative position", ErrUsage)
	ErrDuplicateKey        = fmt.Errorf("%w: duplicate index key", ErrUsage)
	ErrReserveUnsupported  = fmt.Errorf("%w: backend does not support reservations", ErrUsage)
	ErrEntryTooLarge       = fmt.Errorf("%w: entry exceeds format limits", ErrUsage)
	ErrInvalidName         = fmt.Errorf("%w: invalid entry name", ErrUsage)
)

// I/O errors.
var (
	ErrShortTransfer = fmt.Errorf("%w: unexpected EOF during transfer", ErrIO)
)
