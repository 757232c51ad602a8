package zipfmt

import "hash/crc32"

// CRC32 returns the IEEE CRC-32 of b.
func CRC32(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

// UpdateCRC32 continues a running IEEE CRC-32 with p.
func UpdateCRC32(crc uint32, p []byte) uint32 {
	return crc32.Update(crc, crc32.IEEETable, p)
}
