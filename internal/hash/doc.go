// Package hash provides the hashing utilities used across vqnet.
//
// # CRC32-Castagnoli (CRC32C)
//
// Sealed parameter blobs (see the codec package) carry a CRC32C checksum
// of their payload. Go's crc32 package uses hardware instructions when
// available.
//
//	checksum := hash.CRC32C(data)
//
// # Bucket hashing
//
// The hashed layer maps every (input, output) weight position to a shared
// bucket array through Mix64, a splitmix64 finalizer:
//
//	b := hash.Bucket(i, o, numOutputs, numBuckets, seed)
package hash
