package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/vqnet/internal/conv"
	"github.com/hupe1980/vqnet/internal/hash"
)

// Header layout (little-endian):
//
//	[0:4]   magic "VQNB"
//	[4]     version
//	[5]     compression actually applied
//	[6:8]   reserved
//	[8:12]  CRC32C of the raw payload
//	[12:16] raw payload length
//	[16:20] stored payload length
const (
	headerSize = 20
	version    = 1
)

var magic = [4]byte{'V', 'Q', 'N', 'B'}

// Seal compresses payload with c and prepends the checksummed header.
// Payloads that do not shrink are stored uncompressed.
func Seal(payload []byte, c Compression) ([]byte, error) {
	stored, ok, err := compress(payload, c)
	if err != nil {
		return nil, err
	}
	applied := c
	if !ok {
		applied = CompressionNone
	}

	rawLen, err := conv.IntToUint32(len(payload))
	if err != nil {
		return nil, err
	}
	storedLen, err := conv.IntToUint32(len(stored))
	if err != nil {
		return nil, err
	}

	out := make([]byte, headerSize+len(stored))
	copy(out[0:4], magic[:])
	out[4] = version
	out[5] = byte(applied)
	binary.LittleEndian.PutUint32(out[8:], hash.CRC32C(payload))
	binary.LittleEndian.PutUint32(out[12:], rawLen)
	binary.LittleEndian.PutUint32(out[16:], storedLen)
	copy(out[headerSize:], stored)

	return out, nil
}

// Open validates a sealed blob and returns its raw payload.
func Open(blob []byte) ([]byte, error) {
	if len(blob) < headerSize {
		return nil, fmt.Errorf("%w: blob too small for header", ErrCorrupt)
	}
	if [4]byte(blob[0:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if blob[4] != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, blob[4])
	}

	c := Compression(blob[5])
	sum := binary.LittleEndian.Uint32(blob[8:])
	rawLen, err := conv.Uint32ToInt(binary.LittleEndian.Uint32(blob[12:]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	storedLen, err := conv.Uint32ToInt(binary.LittleEndian.Uint32(blob[16:]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	if len(blob)-headerSize != storedLen {
		return nil, fmt.Errorf("%w: stored length %d, have %d", ErrCorrupt, storedLen, len(blob)-headerSize)
	}
	stored := blob[headerSize:]

	var payload []byte
	if c == CompressionNone {
		if storedLen != rawLen {
			return nil, fmt.Errorf("%w: raw length mismatch", ErrCorrupt)
		}
		payload = stored
	} else {
		if payload, err = decompress(stored, c, rawLen); err != nil {
			return nil, err
		}
	}

	if hash.CRC32C(payload) != sum {
		return nil, ErrChecksum
	}

	return payload, nil
}
