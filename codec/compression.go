package codec

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the algorithm applied to sealed payloads.
type Compression uint8

const (
	// CompressionNone stores the payload as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD (better ratio).
	CompressionZSTD Compression = 2
)

// String returns the name of the compression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// ParseCompression maps "none", "lz4" or "zstd" (case-insensitive) to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// compress returns the compressed form of data. ok is false when the
// algorithm could not shrink the input and data should be stored raw.
func compress(data []byte, c Compression) (out []byte, ok bool, err error) {
	switch c {
	case CompressionNone:
		return data, false, nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, false, err
		}
		if n == 0 || n >= len(data) {
			return data, false, nil // incompressible
		}
		return buf[:n], true, nil
	case CompressionZSTD:
		enc := getZstdEncoder()
		defer putZstdEncoder(enc)

		out := enc.EncodeAll(data, nil)
		if len(out) >= len(data) {
			return data, false, nil
		}
		return out, true, nil
	default:
		return nil, false, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}
}

// Upper bounds on the inflation of one stored byte. An LZ4 match token
// expands to at most 255 bytes per length byte; a 4 byte ZSTD RLE block
// expands to at most 128 KiB.
const (
	maxLZ4Ratio  = 255
	maxZstdRatio = (128 << 10) / 4
	ratioSlack   = 64
)

// maxDecodedSize caps what the ZSTD decoder will inflate, matching the
// uint32 raw length field of the header.
const maxDecodedSize = math.MaxUint32

// decompress inflates data to exactly rawLen bytes. rawLen is checked
// against what data could possibly inflate to before anything is allocated.
func decompress(data []byte, c Compression, rawLen int) ([]byte, error) {
	switch c {
	case CompressionLZ4:
		if rawLen > len(data)*maxLZ4Ratio+ratioSlack {
			return nil, fmt.Errorf("%w: lz4: raw length %d impossible for %d stored bytes", ErrCorrupt, rawLen, len(data))
		}
		result := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(data, result)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorrupt, err)
		}
		if n != rawLen {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return result, nil
	case CompressionZSTD:
		if rawLen > len(data)*maxZstdRatio+ratioSlack {
			return nil, fmt.Errorf("%w: zstd: raw length %d impossible for %d stored bytes", ErrCorrupt, rawLen, len(data))
		}

		var h zstd.Header
		if err := h.Decode(data); err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
		}
		if h.HasFCS && h.FrameContentSize != uint64(rawLen) {
			return nil, fmt.Errorf("%w: zstd: frame size %d, header says %d", ErrCorrupt, h.FrameContentSize, rawLen)
		}

		dec := getZstdDecoder()
		defer putZstdDecoder(dec)

		decoded, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
		}
		if len(decoded) != rawLen {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}
}
