package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encoder appends little-endian values to a growing buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with capacity for sizeHint bytes.
func NewEncoder(sizeHint int) *Encoder {
	return &Encoder{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the encoded bytes.
func (e *Encoder) Bytes() []byte { return e.buf }

// PutUint8 appends one byte.
func (e *Encoder) PutUint8(v uint8) { e.buf = append(e.buf, v) }

// PutUint32 appends a uint32.
func (e *Encoder) PutUint32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }

// PutUint64 appends a uint64.
func (e *Encoder) PutUint64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }

// PutFloat32s appends a length-prefixed float32 slice.
func (e *Encoder) PutFloat32s(v []float32) {
	e.PutUint32(uint32(len(v)))
	for _, f := range v {
		e.buf = binary.LittleEndian.AppendUint32(e.buf, math.Float32bits(f))
	}
}

// PutUint8s appends a length-prefixed byte slice.
func (e *Encoder) PutUint8s(v []uint8) {
	e.PutUint32(uint32(len(v)))
	e.buf = append(e.buf, v...)
}

// Decoder reads values written by Encoder. The first failure is sticky
// and reported by Err; subsequent reads return zero values.
type Decoder struct {
	data []byte
	off  int
	err  error
}

// NewDecoder returns a Decoder over data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Err returns the first decoding error.
func (d *Decoder) Err() error { return d.err }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.data) - d.off }

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.data) {
		d.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrCorrupt, n, d.off, len(d.data)-d.off)
		return nil
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

// Uint8 reads one byte.
func (d *Decoder) Uint8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Uint32 reads a uint32.
func (d *Decoder) Uint32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Uint64 reads a uint64.
func (d *Decoder) Uint64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Float32s reads a length-prefixed float32 slice.
func (d *Decoder) Float32s() []float32 {
	n := int(d.Uint32())
	b := d.take(n * 4)
	if b == nil {
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// Uint8s reads a length-prefixed byte slice. The result is a copy.
func (d *Decoder) Uint8s() []uint8 {
	n := int(d.Uint32())
	b := d.take(n)
	if b == nil {
		return nil
	}
	return append([]uint8(nil), b...)
}
