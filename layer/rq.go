package layer

import (
	"fmt"

	"github.com/hupe1980/vqnet/codec"
	"github.com/hupe1980/vqnet/internal/math32"
	"github.com/hupe1980/vqnet/internal/pool"
	"github.com/hupe1980/vqnet/quantization"
	"github.com/hupe1980/vqnet/sparse"
)

// ResidualQuantized encodes every output unit's full I-dimensional weight
// column as the sum of M stage centroids scaled by one norm:
// W[:, o] = norm[o] * Σ_m centroid[m, code[o, m]].
type ResidualQuantized struct {
	base
	m     int
	ks    int
	cb    *quantization.Codebook // [M, Ks, I]
	codes []uint8                // [O, M]
	norms []float32              // [O]
}

// NewResidualQuantized creates a residual-quantized layer (KindRQ). The
// number of stages is set with WithSubquantizers.
func NewResidualQuantized(in, out int, act Activation, opts ...Option) (*ResidualQuantized, error) {
	o := applyOptions(opts)
	if o.m <= 0 {
		return nil, fmt.Errorf("layer: rq needs at least one stage, got %d", o.m)
	}

	b, rng, err := newBase(in, out, act, o, out)
	if err != nil {
		return nil, err
	}

	l := &ResidualQuantized{
		base:  b,
		m:     o.m,
		ks:    o.ks,
		codes: make([]uint8, out*o.m),
		norms: make([]float32, out),
	}

	if o.codebook != nil {
		if o.codebook.M != l.m || o.codebook.D != in {
			return nil, fmt.Errorf("%w: codebook [%d, %d, %d], want [%d, *, %d]",
				ErrShapeMismatch, o.codebook.M, o.codebook.Ks, o.codebook.D, l.m, in)
		}
		l.cb = o.codebook.Clone()
		l.ks = o.codebook.Ks
	} else if l.cb, err = quantization.RandomCodebook(l.m, l.ks, in, true, rng); err != nil {
		return nil, err
	}

	for i := range l.codes {
		l.codes[i] = uint8(rng.Intn(l.ks))
	}
	for i := range l.norms {
		l.norms[i] = rng.Float32()
	}

	return l, nil
}

// Kind returns KindRQ.
func (l *ResidualQuantized) Kind() Kind { return KindRQ }

// Codebook returns the layer's codebook. It must not be modified.
func (l *ResidualQuantized) Codebook() *quantization.Codebook { return l.cb }

// column sums the stage centroids of output o at coordinate i. Callers
// hold the row lock of o.
func (l *ResidualQuantized) column(i, o int) float32 {
	var w float32
	for m, c := range l.codes[o*l.m : (o+1)*l.m] {
		w += l.cb.Centroid(m, int(c))[i]
	}
	return w
}

// Weight returns norm[o] * Σ_m centroid[m, code[o, m]][i].
func (l *ResidualQuantized) Weight(i, o int) float32 {
	l.guard.rlock(o)
	defer l.guard.runlock(o)
	return l.norms[o] * l.column(i, o)
}

// Forward computes y_o = b_o + norm[o] * Σ_m table[m][code[o, m]] with
// table[m][k] = dot(x, centroid[m, k]).
func (l *ResidualQuantized) Forward(x sparse.Vector) sparse.Vector {
	tbuf := pool.Floats(l.m * l.ks)
	defer pool.Put(tbuf)
	table := *tbuf
	for m := 0; m < l.m; m++ {
		for k := 0; k < l.ks; k++ {
			table[m*l.ks+k] = math32.SparseDot(x.Index, x.Value, l.cb.Centroid(m, k), 0)
		}
	}

	buf := l.preactivation()
	pre := *buf
	for o := range pre {
		l.guard.rlock(o)
		var sum float32
		for m, c := range l.codes[o*l.m : (o+1)*l.m] {
			sum += table[m*l.ks+int(c)]
		}
		sum *= l.norms[o]
		l.guard.runlock(o)

		pre[o] += sum
	}

	return l.activate(buf)
}

// Backward computes gx from the pre-update columns, then decodes each
// active output's column, applies the SGD step on x's coordinates and
// re-encodes it with residual quantization.
func (l *ResidualQuantized) Backward(g, x sparse.Vector, opt *Optimizer, computeGx bool) (sparse.Vector, error) {
	var gx sparse.Vector
	if computeGx {
		gx = x.WithValues()
		for t, o := range g.Index {
			l.guard.rlock(int(o))
			scale := g.Value[t] * l.norms[o]
			for s, i := range x.Index {
				gx.Value[s] += scale * l.column(int(i), int(o))
			}
			l.guard.runlock(int(o))
		}
	}

	lr := opt.LearningRate
	w := make([]float32, l.in)
	scratch := make([]float32, l.in)

	for t, o := range g.Index {
		if err := l.updateOutput(int(o), lr*g.Value[t], x, w, scratch); err != nil {
			return sparse.Vector{}, err
		}
	}

	l.updateBias(g, lr)

	return gx, nil
}

func (l *ResidualQuantized) updateOutput(o int, step float32, x sparse.Vector, w, scratch []float32) error {
	l.guard.lock(o)
	defer l.guard.unlock(o)

	codes := l.codes[o*l.m : (o+1)*l.m]
	quantization.DecodeRQ(l.cb, codes, l.norms[o], w)

	for s, i := range x.Index {
		w[i] -= step * x.Value[s]
	}

	norm, err := quantization.EncodeRQ(w, l.cb, codes, scratch)
	if err != nil {
		return fmt.Errorf("layer: requantize output %d: %w", o, err)
	}
	l.norms[o] = norm

	return nil
}

// ParamBytes returns the size of codebook, codes, norms and bias.
func (l *ResidualQuantized) ParamBytes() int {
	return 4*l.cb.Size() + len(l.codes) + 4*len(l.norms) + l.biasBytes()
}

// MarshalBinary encodes the layer into a sealed blob.
func (l *ResidualQuantized) MarshalBinary() ([]byte, error) {
	enc := codec.NewEncoder(32 + l.ParamBytes())
	l.encodeHeader(enc, KindRQ)
	enc.PutUint32(uint32(l.m))
	enc.PutUint32(uint32(l.ks))

	l.guard.lockAll()
	enc.PutFloat32s(l.cb.Centroids)
	enc.PutUint8s(l.codes)
	enc.PutFloat32s(l.norms)
	enc.PutFloat32s(l.bias)
	l.guard.unlockAll()

	return l.seal(enc)
}

// UnmarshalBinary replaces the parameters with those of a sealed blob.
func (l *ResidualQuantized) UnmarshalBinary(data []byte) error {
	payload, err := codec.Open(data)
	if err != nil {
		return err
	}

	dec := codec.NewDecoder(payload)
	if err := l.decodeHeader(dec, KindRQ); err != nil {
		return err
	}

	m := int(dec.Uint32())
	ks := int(dec.Uint32())
	centroids := dec.Float32s()
	codes := dec.Uint8s()
	norms := dec.Float32s()
	bias := dec.Float32s()
	if err := dec.Err(); err != nil {
		return err
	}

	if m != l.m || ks != l.ks {
		return fmt.Errorf("%w: m=%d ks=%d, want m=%d ks=%d", ErrShapeMismatch, m, ks, l.m, l.ks)
	}
	for _, err := range []error{
		checkLen("centroids", len(centroids), l.cb.Size()),
		checkLen("codes", len(codes), len(l.codes)),
		checkLen("norms", len(norms), len(l.norms)),
		checkLen("bias", len(bias), l.out),
	} {
		if err != nil {
			return err
		}
	}

	l.guard.lockAll()
	defer l.guard.unlockAll()

	copy(l.cb.Centroids, centroids)
	copy(l.codes, codes)
	copy(l.norms, norms)
	copy(l.bias, bias)

	return nil
}
