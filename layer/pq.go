package layer

import (
	"fmt"

	"github.com/hupe1980/vqnet/codec"
	"github.com/hupe1980/vqnet/internal/math32"
	"github.com/hupe1980/vqnet/internal/pool"
	"github.com/hupe1980/vqnet/quantization"
	"github.com/hupe1980/vqnet/sparse"
)

// ProductQuantized compresses every output unit's I-dimensional weight
// column into M codes over M sub-blocks of width D = I/M.
//
// With a shared dictionary (KindVQ) all sub-blocks quantize against one
// Ks x D codebook and no norms are kept.
type ProductQuantized struct {
	base
	kind  Kind
	m     int
	ks    int
	d     int
	cb    *quantization.Codebook
	codes []uint8   // [O, M]
	norms []float32 // [O, M], nil without norm correction
}

// NewProductQuantized creates a row-wise PQ layer (KindPQ).
func NewProductQuantized(in, out int, act Activation, opts ...Option) (*ProductQuantized, error) {
	return newProductQuantized(KindPQ, in, out, act, applyOptions(opts))
}

// NewVectorQuantized creates a row-wise PQ layer whose sub-blocks share one
// dictionary (KindVQ).
func NewVectorQuantized(in, out int, act Activation, opts ...Option) (*ProductQuantized, error) {
	o := applyOptions(opts)
	o.normCorrection = false
	return newProductQuantized(KindVQ, in, out, act, o)
}

func newProductQuantized(kind Kind, in, out int, act Activation, o options) (*ProductQuantized, error) {
	if err := quantization.CheckDivisible(in, o.m); err != nil {
		return nil, err
	}

	b, rng, err := newBase(in, out, act, o, out)
	if err != nil {
		return nil, err
	}

	l := &ProductQuantized{
		base:  b,
		kind:  kind,
		m:     o.m,
		ks:    o.ks,
		d:     in / o.m,
		codes: make([]uint8, out*o.m),
	}

	dicts := l.m
	if kind == KindVQ {
		dicts = 1
	}

	if o.codebook != nil {
		if o.codebook.M != dicts || o.codebook.D != l.d {
			return nil, fmt.Errorf("%w: codebook [%d, %d, %d], want [%d, *, %d]",
				ErrShapeMismatch, o.codebook.M, o.codebook.Ks, o.codebook.D, dicts, l.d)
		}
		l.cb = o.codebook.Clone()
		l.ks = o.codebook.Ks
	} else if l.cb, err = quantization.RandomCodebook(dicts, l.ks, l.d, o.normCorrection, rng); err != nil {
		return nil, err
	}

	for i := range l.codes {
		l.codes[i] = uint8(rng.Intn(l.ks))
	}

	if o.normCorrection {
		l.norms = make([]float32, out*l.m)
		for i := range l.norms {
			l.norms[i] = rng.Float32()
		}
	}

	return l, nil
}

// Kind returns KindPQ or KindVQ.
func (l *ProductQuantized) Kind() Kind { return l.kind }

// Codebook returns the layer's codebook. It must not be modified.
func (l *ProductQuantized) Codebook() *quantization.Codebook { return l.cb }

func (l *ProductQuantized) dict(m int) []float32 {
	if l.kind == KindVQ {
		return l.cb.Dictionary(0)
	}
	return l.cb.Dictionary(m)
}

func (l *ProductQuantized) norm(o, m int) float32 {
	if l.norms == nil {
		return 1
	}
	return l.norms[o*l.m+m]
}

// Weight decodes W[i, o] from the code of output o in the block holding i.
func (l *ProductQuantized) Weight(i, o int) float32 {
	m, d := i/l.d, i%l.d

	l.guard.rlock(o)
	defer l.guard.runlock(o)

	c := int(l.codes[o*l.m+m])
	return l.dict(m)[c*l.d+d] * l.norm(o, m)
}

// table computes dot(x|block m, centroid[m, k]) for every (m, k) into a
// pooled buffer.
func (l *ProductQuantized) table(x sparse.Vector) *[]float32 {
	buf := pool.Floats(l.m * l.ks)
	table := *buf
	for _, sp := range spans(x, l.m, l.d) {
		dict := l.dict(sp.m)
		row := table[sp.m*l.ks : (sp.m+1)*l.ks]
		for k := range row {
			row[k] = math32.SparseDot(x.Index[sp.start:sp.end], x.Value[sp.start:sp.end], dict[k*l.d:(k+1)*l.d], sp.lo)
		}
	}
	return buf
}

// Forward computes y_o = b_o + Σ_m table[m][code[o, m]] * norm[o, m].
func (l *ProductQuantized) Forward(x sparse.Vector) sparse.Vector {
	tbuf := l.table(x)
	defer pool.Put(tbuf)
	table := *tbuf
	buf := l.preactivation()
	pre := *buf

	for o := range pre {
		codes := l.codes[o*l.m : (o+1)*l.m]

		l.guard.rlock(o)
		var sum float32
		for m, c := range codes {
			sum += table[m*l.ks+int(c)] * l.norm(o, m)
		}
		l.guard.runlock(o)

		pre[o] += sum
	}

	return l.activate(buf)
}

// Backward computes gx through the codes of the active outputs, then for
// every active output and every block touched by x decompresses the block,
// applies the SGD step and re-quantizes it against the frozen codebook.
func (l *ProductQuantized) Backward(g, x sparse.Vector, opt *Optimizer, computeGx bool) (sparse.Vector, error) {
	var gx sparse.Vector
	if computeGx {
		gx = x.WithValues()
		for s, i := range x.Index {
			m, d := int(i)/l.d, int(i)%l.d
			dict := l.dict(m)

			var sum float32
			for t, o := range g.Index {
				l.guard.rlock(int(o))
				c := int(l.codes[int(o)*l.m+m])
				sum += g.Value[t] * dict[c*l.d+d] * l.norm(int(o), m)
				l.guard.runlock(int(o))
			}
			gx.Value[s] = sum
		}
	}

	lr := opt.LearningRate
	blocks := spans(x, l.m, l.d)
	w := make([]float32, l.d)

	for t, o := range g.Index {
		step := lr * g.Value[t]
		if err := l.updateOutput(int(o), step, x, blocks, w); err != nil {
			return sparse.Vector{}, err
		}
	}

	l.updateBias(g, lr)

	return gx, nil
}

func (l *ProductQuantized) updateOutput(o int, step float32, x sparse.Vector, blocks []span, w []float32) error {
	l.guard.lock(o)
	defer l.guard.unlock(o)

	for _, sp := range blocks {
		idx := o*l.m + sp.m
		dict := l.dict(sp.m)
		c := int(l.codes[idx])

		copy(w, dict[c*l.d:(c+1)*l.d])
		if l.norms != nil {
			math32.ScaleInPlace(w, l.norms[idx])
		}

		for s := sp.start; s < sp.end; s++ {
			w[x.Index[s]-sp.lo] -= step * x.Value[s]
		}

		if l.norms != nil {
			code, norm, err := quantization.EncodeNVQ(w, dict)
			if err != nil {
				return fmt.Errorf("layer: requantize output %d block %d: %w", o, sp.m, err)
			}
			l.codes[idx] = code
			l.norms[idx] = norm
		} else {
			l.codes[idx] = quantization.EncodeVQ(w, dict)
		}
	}

	return nil
}

// ParamBytes returns the size of codebook, codes, norms and bias.
func (l *ProductQuantized) ParamBytes() int {
	return 4*l.cb.Size() + len(l.codes) + 4*len(l.norms) + l.biasBytes()
}

// MarshalBinary encodes the layer into a sealed blob.
func (l *ProductQuantized) MarshalBinary() ([]byte, error) {
	enc := codec.NewEncoder(32 + l.ParamBytes())
	l.encodeHeader(enc, l.kind)
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
func (l *ProductQuantized) UnmarshalBinary(data []byte) error {
	payload, err := codec.Open(data)
	if err != nil {
		return err
	}

	dec := codec.NewDecoder(payload)
	if err := l.decodeHeader(dec, l.kind); err != nil {
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
