package crypto

import "hash/crc32"

// CRC32 returns the IEEE CRC-32 checksum of b, bit-exact with the
// reference implementation's binascii.crc32.
func CRC32(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}
