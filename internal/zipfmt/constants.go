package zipfmt

// Record signatures.
const (
	LocalHeaderSignature   uint32 = 0x04034b50
	CentralHeaderSignature uint32 = 0x02014b50
	EndSignature           uint32 = 0x06054b50
	Zip64EndSignature      uint32 = 0x06064b50
	Zip64LocatorSignature  uint32 = 0x07064b50
)

// Fixed record sizes, excluding variable-length names and comments.
const (
	LocalHeaderSize   = 30
	CentralHeaderSize = 46
	EndSize           = 22
	Zip64EndSize      = 56
	Zip64LocatorSize  = 20

	// zip64EndFixedTail is the size of the Zip64 end record counted by its
	// "size of record" field, before any trailing comment.
	zip64EndFixedTail = Zip64EndSize - 12
)

// Index comment layout: [u8 version][u32 index end offset].
const (
	IndexFormatVersion = 4
	IndexCommentSize   = 5
)

// IndexName is the reserved name of the entry carrying the IKV payload.
const IndexName = "__index__"

// MaxLocalExtra caps the local extra field length accepted by readers.
const MaxLocalExtra = 128

// Zip64 sentinels written into the classic end record stub.
const (
	sentinel16 = 0xffff
	sentinel32 = 0xffffffff
)

// MaxClassicRecords is the largest record count the classic end record holds.
// Archives with more records are finalized in Zip64 layout.
const MaxClassicRecords = 0xffff

// maxEndScan bounds the backward search for the end record: the record itself
// plus the largest possible comment.
const maxEndScan = EndSize + 0xffff
