// Package codec encodes layer parameters into self-checking binary blobs.
//
// Encoder and Decoder write and read little-endian scalars and
// length-prefixed slices. Seal wraps an encoded payload in a fixed header
// carrying a magic number, format version, compression algorithm, the
// CRC32C of the raw payload and its length; Open reverses it and rejects
// any blob whose checksum does not match.
//
//	enc := codec.NewEncoder(0)
//	enc.PutUint32(dim)
//	enc.PutFloat32s(weights)
//	blob, err := codec.Seal(enc.Bytes(), codec.CompressionZSTD)
//
//	payload, err := codec.Open(blob)
//	dec := codec.NewDecoder(payload)
//	dim := dec.Uint32()
//	weights := dec.Float32s()
//	if err := dec.Err(); err != nil { ... }
//
// Changing the header layout is a breaking change; bump the version byte.
package codec
