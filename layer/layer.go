package layer

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/hupe1980/vqnet/codec"
	"github.com/hupe1980/vqnet/internal/pool"
	"github.com/hupe1980/vqnet/sparse"
)

// Layer is a linear map [I -> O] with bias and activation over sparse vectors.
//
// Forward and Backward may be called concurrently from many goroutines. By
// default parameter updates are lock-free (Hogwild) and readers may observe
// partially applied updates; WithStrictLocking serializes access per row.
type Layer interface {
	InputDim() int
	OutputDim() int
	Kind() Kind
	Activation() Activation

	// Forward computes activation(xW + b).
	Forward(x sparse.Vector) sparse.Vector

	// Backward takes the gradient g with respect to this layer's output and
	// the input x that produced it. It returns the gradient with respect to
	// x (same index set as x) when computeGx is set, then applies one SGD
	// step to weights and bias.
	Backward(g, x sparse.Vector, opt *Optimizer, computeGx bool) (sparse.Vector, error)

	// Weight returns the effective weight W[i, o]. Inspection only.
	Weight(i, o int) float32
	Bias(o int) float32

	// ParamBytes is the memory held by the parameter buffers.
	ParamBytes() int

	MarshalBinary() ([]byte, error)
	// UnmarshalBinary must not run concurrently with Forward or Backward.
	UnmarshalBinary(data []byte) error
}

// Optimizer holds the SGD learning rate shared by all layers of a network.
type Optimizer struct {
	LearningRate float32
}

// New constructs a layer of the given kind.
func New(kind Kind, in, out int, act Activation, opts ...Option) (Layer, error) {
	switch kind {
	case KindDense:
		return NewDense(in, out, act, opts...)
	case KindPQ:
		return NewProductQuantized(in, out, act, opts...)
	case KindVQ:
		return NewVectorQuantized(in, out, act, opts...)
	case KindCPQ:
		return NewColumnQuantized(in, out, act, opts...)
	case KindRQ:
		return NewResidualQuantized(in, out, act, opts...)
	case KindHashed:
		return NewHashed(in, out, act, opts...)
	default:
		return nil, fmt.Errorf("layer: unknown kind %v", kind)
	}
}

// base carries the state every variant shares: shape, bias, activation and
// the optional row guard.
type base struct {
	in          int
	out         int
	act         Activation
	topK        int
	bias        []float32
	guard       *guard
	compression codec.Compression
}

func newBase(in, out int, act Activation, o options, rows int) (base, *rand.Rand, error) {
	if in <= 0 || out <= 0 {
		return base{}, nil, fmt.Errorf("%w: in=%d out=%d", ErrInvalidDimension, in, out)
	}
	if act != ReLU && act != SoftMax {
		return base{}, nil, fmt.Errorf("layer: unknown activation %v", act)
	}

	topK := 0
	if act == SoftMax {
		switch {
		case o.topK < 0:
			topK = DefaultTopK(out)
		case o.topK > 0:
			topK = o.topK
		}
	}

	rng := rand.New(rand.NewSource(o.seed)) //nolint:gosec

	b := base{
		in:          in,
		out:         out,
		act:         act,
		topK:        topK,
		bias:        make([]float32, out),
		guard:       newGuard(o.strict, rows),
		compression: o.compression,
	}

	scale := initScale(in)
	for i := range b.bias {
		b.bias[i] = rng.Float32() * scale
	}

	return b, rng, nil
}

// initScale is the upper bound of the uniform weight initialization.
func initScale(in int) float32 {
	return float32(1 / math.Sqrt(float64(in)/2))
}

func (b *base) InputDim() int { return b.in }

func (b *base) OutputDim() int { return b.out }

func (b *base) Activation() Activation { return b.act }

func (b *base) Bias(o int) float32 {
	b.guard.rlockBias()
	defer b.guard.runlockBias()
	return b.bias[o]
}

// preactivation returns a pooled copy of the bias to accumulate into.
// activate releases it.
func (b *base) preactivation() *[]float32 {
	pre := pool.Floats(b.out)
	b.guard.rlockBias()
	copy(*pre, b.bias)
	b.guard.runlockBias()
	return pre
}

func (b *base) activate(pre *[]float32) sparse.Vector {
	defer pool.Put(pre)
	if b.act == SoftMax {
		return softmax(*pre, b.topK)
	}
	return relu(*pre)
}

func (b *base) updateBias(g sparse.Vector, lr float32) {
	b.guard.lockBias()
	for s, o := range g.Index {
		b.bias[o] -= lr * g.Value[s]
	}
	b.guard.unlockBias()
}

func (b *base) biasBytes() int { return 4 * len(b.bias) }

func (b *base) encodeHeader(enc *codec.Encoder, kind Kind) {
	enc.PutUint8(uint8(kind))
	enc.PutUint8(uint8(b.act))
	enc.PutUint32(uint32(b.in))
	enc.PutUint32(uint32(b.out))
}

func (b *base) decodeHeader(dec *codec.Decoder, kind Kind) error {
	k := Kind(dec.Uint8())
	act := Activation(dec.Uint8())
	in := int(dec.Uint32())
	out := int(dec.Uint32())
	if err := dec.Err(); err != nil {
		return err
	}
	if k != kind || act != b.act || in != b.in || out != b.out {
		return fmt.Errorf("%w: got %v %v [%d x %d], want %v %v [%d x %d]",
			ErrShapeMismatch, k, act, in, out, kind, b.act, b.in, b.out)
	}
	return nil
}

func (b *base) seal(enc *codec.Encoder) ([]byte, error) {
	return codec.Seal(enc.Bytes(), b.compression)
}

// checkLen reports ErrShapeMismatch when a decoded buffer has the wrong size.
func checkLen(name string, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %s has %d entries, want %d", ErrShapeMismatch, name, got, want)
	}
	return nil
}

// span is a contiguous run of vector positions that falls into sub-block m.
type span struct {
	m     int
	lo    uint32
	start int
	end   int
}

// spans splits v into its non-empty sub-blocks of width d.
func spans(v sparse.Vector, blocks, d int) []span {
	var out []span
	pos := 0
	for m := 0; m < blocks && pos < len(v.Index); m++ {
		lo := uint32(m * d)
		start, end := v.Range(pos, lo, lo+uint32(d))
		if end > start {
			out = append(out, span{m: m, lo: lo, start: start, end: end})
		}
		pos = end
	}
	return out
}
