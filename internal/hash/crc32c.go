package hash

import "hash/crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C returns the Castagnoli checksum stored in sealed parameter blobs.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}
