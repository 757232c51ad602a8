package ikv

import "github.com/meigma/ikv/internal/ziptype"

// Error classes. Every error returned by this package wraps one of them.
var (
	// ErrFormat is returned for corrupt or unsupported archive input.
	ErrFormat = ziptype.ErrFormat

	// ErrUsage is returned for API misuse.
	ErrUsage = ziptype.ErrUsage

	// ErrIO is returned when a read or write could not be completed.
	ErrIO = ziptype.ErrIO

	// ErrResource is returned when releasing resources during Close fails.
	ErrResource = ziptype.ErrResource
)

// Errors re-exported from internal/ziptype.
var (
	// ErrNotArchive is returned when no end of central directory is found.
	ErrNotArchive = ziptype.ErrNotArchive

	// ErrBadSignature is returned when a record does not start with its signature.
	ErrBadSignature = ziptype.ErrBadSignature

	// ErrUnsupportedMethod is returned for entries that are neither stored nor deflated.
	ErrUnsupportedMethod = ziptype.ErrUnsupportedMethod

	// ErrExtraTooLarge is returned when a local extra field exceeds the reader's limit.
	ErrExtraTooLarge = ziptype.ErrExtraTooLarge

	// ErrDecompression is returned when a deflated payload cannot be decoded.
	ErrDecompression = ziptype.ErrDecompression

	// ErrChecksum is returned when a payload does not match its CRC-32.
	ErrChecksum = ziptype.ErrChecksum

	// ErrIndexCorrupt is returned when the embedded index cannot be parsed.
	ErrIndexCorrupt = ziptype.ErrIndexCorrupt

	// ErrClosed is returned when writing to a closed Writer.
	ErrClosed = ziptype.ErrClosed

	// ErrDuplicateKey is returned when two entries hash to the same index key.
	ErrDuplicateKey = ziptype.ErrDuplicateKey

	// ErrEntryTooLarge is returned when an entry exceeds the 32-bit limits of the format.
	ErrEntryTooLarge = ziptype.ErrEntryTooLarge

	// ErrInvalidName is returned for entry names that cannot be stored.
	ErrInvalidName = ziptype.ErrInvalidName

	// ErrShortTransfer is returned when a source ends before the expected size.
	ErrShortTransfer = ziptype.ErrShortTransfer
)
