package codec

import "errors"

var (
	// ErrChecksum is returned by Open when the payload CRC32C does not match.
	ErrChecksum = errors.New("codec: checksum mismatch")

	// ErrCorrupt is returned when a blob or payload is truncated or malformed.
	ErrCorrupt = errors.New("codec: corrupt data")

	// ErrUnknownCompression is returned for an unrecognized compression id.
	ErrUnknownCompression = errors.New("codec: unknown compression")
)
