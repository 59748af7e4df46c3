package layer

import (
	"github.com/hupe1980/vqnet/codec"
	"github.com/hupe1980/vqnet/internal/math32"
	"github.com/hupe1980/vqnet/sparse"
)

// Dense is an uncompressed layer with weights stored as w[i*O+o].
type Dense struct {
	base
	weights []float32
}

// NewDense creates a dense layer with uniformly initialized weights.
func NewDense(in, out int, act Activation, opts ...Option) (*Dense, error) {
	o := applyOptions(opts)

	b, rng, err := newBase(in, out, act, o, in)
	if err != nil {
		return nil, err
	}

	l := &Dense{base: b, weights: make([]float32, in*out)}

	scale := initScale(in)
	for i := range l.weights {
		l.weights[i] = rng.Float32() * scale
	}

	return l, nil
}

// Kind returns KindDense.
func (l *Dense) Kind() Kind { return KindDense }

// SetParams replaces weights ([I*O], row-major by input) and bias ([O]).
func (l *Dense) SetParams(weights, bias []float32) error {
	if err := checkLen("weights", len(weights), l.in*l.out); err != nil {
		return err
	}
	if err := checkLen("bias", len(bias), l.out); err != nil {
		return err
	}

	l.guard.lockAll()
	copy(l.weights, weights)
	copy(l.bias, bias)
	l.guard.unlockAll()

	return nil
}

// Weights returns a copy of the weight matrix.
func (l *Dense) Weights() []float32 {
	l.guard.lockAll()
	defer l.guard.unlockAll()
	return append([]float32(nil), l.weights...)
}

// Biases returns a copy of the bias vector.
func (l *Dense) Biases() []float32 {
	l.guard.rlockBias()
	defer l.guard.runlockBias()
	return append([]float32(nil), l.bias...)
}

func (l *Dense) row(i uint32) []float32 {
	off := int(i) * l.out
	return l.weights[off : off+l.out]
}

// Weight returns w[i*O+o].
func (l *Dense) Weight(i, o int) float32 {
	l.guard.rlock(i)
	defer l.guard.runlock(i)
	return l.weights[i*l.out+o]
}

// Forward computes activation(b + Σ_s x_s W[i_s, :]).
func (l *Dense) Forward(x sparse.Vector) sparse.Vector {
	buf := l.preactivation()
	pre := *buf

	for s, i := range x.Index {
		l.guard.rlock(int(i))
		math32.Axpy(x.Value[s], l.row(i), pre)
		l.guard.runlock(int(i))
	}

	return l.activate(buf)
}

// Backward computes gx from the pre-update weights, then applies SGD to the
// active (input, output) pairs and to the bias.
func (l *Dense) Backward(g, x sparse.Vector, opt *Optimizer, computeGx bool) (sparse.Vector, error) {
	var gx sparse.Vector
	if computeGx {
		gx = x.WithValues()
		for s, i := range x.Index {
			l.guard.rlock(int(i))
			gx.Value[s] = math32.SparseDot(g.Index, g.Value, l.row(i), 0)
			l.guard.runlock(int(i))
		}
	}

	lr := opt.LearningRate
	for s, i := range x.Index {
		step := lr * x.Value[s]
		row := l.row(i)

		l.guard.lock(int(i))
		for t, o := range g.Index {
			row[o] -= step * g.Value[t]
		}
		l.guard.unlock(int(i))
	}

	l.updateBias(g, lr)

	return gx, nil
}

// ParamBytes returns the size of weights and bias.
func (l *Dense) ParamBytes() int {
	return 4*len(l.weights) + l.biasBytes()
}

// MarshalBinary encodes the layer into a sealed blob.
func (l *Dense) MarshalBinary() ([]byte, error) {
	enc := codec.NewEncoder(16 + l.ParamBytes() + 8)
	l.encodeHeader(enc, KindDense)

	l.guard.lockAll()
	enc.PutFloat32s(l.weights)
	enc.PutFloat32s(l.bias)
	l.guard.unlockAll()

	return l.seal(enc)
}

// UnmarshalBinary replaces the parameters with those of a sealed blob.
func (l *Dense) UnmarshalBinary(data []byte) error {
	payload, err := codec.Open(data)
	if err != nil {
		return err
	}

	dec := codec.NewDecoder(payload)
	if err := l.decodeHeader(dec, KindDense); err != nil {
		return err
	}

	weights := dec.Float32s()
	bias := dec.Float32s()
	if err := dec.Err(); err != nil {
		return err
	}

	return l.SetParams(weights, bias)
}
