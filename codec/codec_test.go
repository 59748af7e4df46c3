package codec

import (
	"encoding/binary"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoderDecoder(t *testing.T) {
	enc := NewEncoder(64)
	enc.PutUint8(7)
	enc.PutUint32(1016)
	enc.PutUint64(1 << 40)
	enc.PutFloat32s([]float32{1.5, -2.25, 0})
	enc.PutUint8s([]uint8{1, 2, 255})
	enc.PutFloat32s(nil)

	dec := NewDecoder(enc.Bytes())
	assert.Equal(t, uint8(7), dec.Uint8())
	assert.Equal(t, uint32(1016), dec.Uint32())
	assert.Equal(t, uint64(1<<40), dec.Uint64())
	assert.Equal(t, []float32{1.5, -2.25, 0}, dec.Float32s())
	assert.Equal(t, []uint8{1, 2, 255}, dec.Uint8s())
	assert.Empty(t, dec.Float32s())
	require.NoError(t, dec.Err())
	assert.Equal(t, 0, dec.Remaining())
}

func TestDecoderTruncated(t *testing.T) {
	enc := NewEncoder(0)
	enc.PutFloat32s([]float32{1, 2, 3})
	data := enc.Bytes()

	dec := NewDecoder(data[:len(data)-2])
	assert.Nil(t, dec.Float32s())
	assert.ErrorIs(t, dec.Err(), ErrCorrupt)

	// Errors are sticky.
	assert.Equal(t, uint32(0), dec.Uint32())
	assert.ErrorIs(t, dec.Err(), ErrCorrupt)
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in   string
		want Compression
	}{
		{"", CompressionNone},
		{"none", CompressionNone},
		{"LZ4", CompressionLZ4},
		{"zstd", CompressionZSTD},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseCompression(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
		})
	}

	_, err := ParseCompression("snappy")
	assert.ErrorIs(t, err, ErrUnknownCompression)
	assert.Equal(t, "zstd", CompressionZSTD.String())
	assert.Equal(t, "Compression(9)", Compression(9).String())
}

func compressiblePayload() []byte {
	enc := NewEncoder(0)
	vals := make([]float32, 4096)
	for i := range vals {
		vals[i] = float32(i % 8)
	}
	enc.PutFloat32s(vals)
	return enc.Bytes()
}

func TestSealOpen(t *testing.T) {
	payload := compressiblePayload()

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			blob, err := Seal(payload, c)
			require.NoError(t, err)
			if c != CompressionNone {
				assert.Less(t, len(blob), len(payload))
				assert.Equal(t, byte(c), blob[5])
			}

			got, err := Open(blob)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestSealIncompressible(t *testing.T) {
	payload := []byte{0x01, 0x9f, 0x33}

	blob, err := Seal(payload, CompressionZSTD)
	require.NoError(t, err)
	assert.Equal(t, byte(CompressionNone), blob[5])

	got, err := Open(blob)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestOpenRejectsCorruption(t *testing.T) {
	payload := compressiblePayload()

	blob, err := Seal(payload, CompressionNone)
	require.NoError(t, err)

	flipped := append([]byte(nil), blob...)
	flipped[len(flipped)-1] ^= 0xff
	_, err = Open(flipped)
	assert.ErrorIs(t, err, ErrChecksum)

	_, err = Open(blob[:10])
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = Open(blob[:len(blob)-1])
	assert.ErrorIs(t, err, ErrCorrupt)

	badMagic := append([]byte(nil), blob...)
	badMagic[0] = 'X'
	_, err = Open(badMagic)
	assert.ErrorIs(t, err, ErrCorrupt)

	zblob, err := Seal(payload, CompressionZSTD)
	require.NoError(t, err)
	zblob[len(zblob)-3] ^= 0xff
	_, err = Open(zblob)
	assert.Error(t, err)
}

func TestOpenRejectsForgedRawLength(t *testing.T) {
	payload := compressiblePayload()

	for _, c := range []Compression{CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			blob, err := Seal(payload, c)
			require.NoError(t, err)
			require.Equal(t, byte(c), blob[5])

			huge := append([]byte(nil), blob...)
			binary.LittleEndian.PutUint32(huge[12:], 1<<31)

			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)
			_, err = Open(huge)
			runtime.ReadMemStats(&after)

			require.ErrorIs(t, err, ErrCorrupt)
			assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))

			short := append([]byte(nil), blob...)
			binary.LittleEndian.PutUint32(short[12:], uint32(len(payload)-4))
			_, err = Open(short)
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestSealUnknownCompression(t *testing.T) {
	_, err := Seal([]byte("abc"), Compression(42))
	assert.ErrorIs(t, err, ErrUnknownCompression)
}
