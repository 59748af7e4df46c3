package layer

import (
	"fmt"

	"github.com/hupe1980/vqnet/codec"
	"github.com/hupe1980/vqnet/internal/math32"
	"github.com/hupe1980/vqnet/internal/pool"
	"github.com/hupe1980/vqnet/quantization"
	"github.com/hupe1980/vqnet/sparse"
)

// ColumnQuantized compresses every input unit's O-dimensional weight row
// into M codes over M sub-blocks of width D = O/M.
type ColumnQuantized struct {
	base
	m     int
	ks    int
	d     int
	cb    *quantization.Codebook
	codes []uint8   // [I, M]
	norms []float32 // [I, M], nil without norm correction
}

// NewColumnQuantized creates a column-wise PQ layer (KindCPQ).
func NewColumnQuantized(in, out int, act Activation, opts ...Option) (*ColumnQuantized, error) {
	o := applyOptions(opts)

	if err := quantization.CheckDivisible(out, o.m); err != nil {
		return nil, err
	}

	b, rng, err := newBase(in, out, act, o, in)
	if err != nil {
		return nil, err
	}

	l := &ColumnQuantized{
		base:  b,
		m:     o.m,
		ks:    o.ks,
		d:     out / o.m,
		codes: make([]uint8, in*o.m),
	}

	if o.codebook != nil {
		if o.codebook.M != l.m || o.codebook.D != l.d {
			return nil, fmt.Errorf("%w: codebook [%d, %d, %d], want [%d, *, %d]",
				ErrShapeMismatch, o.codebook.M, o.codebook.Ks, o.codebook.D, l.m, l.d)
		}
		l.cb = o.codebook.Clone()
		l.ks = o.codebook.Ks
	} else if l.cb, err = quantization.RandomCodebook(l.m, l.ks, l.d, o.normCorrection, rng); err != nil {
		return nil, err
	}

	for i := range l.codes {
		l.codes[i] = uint8(rng.Intn(l.ks))
	}

	if o.normCorrection {
		l.norms = make([]float32, in*l.m)
		for i := range l.norms {
			l.norms[i] = rng.Float32()
		}
	}

	return l, nil
}

// Kind returns KindCPQ.
func (l *ColumnQuantized) Kind() Kind { return KindCPQ }

// Codebook returns the layer's codebook. It must not be modified.
func (l *ColumnQuantized) Codebook() *quantization.Codebook { return l.cb }

func (l *ColumnQuantized) norm(i, m int) float32 {
	if l.norms == nil {
		return 1
	}
	return l.norms[i*l.m+m]
}

// Weight decodes W[i, o] from the code of input i in the block holding o.
func (l *ColumnQuantized) Weight(i, o int) float32 {
	m, d := o/l.d, o%l.d

	l.guard.rlock(i)
	defer l.guard.runlock(i)

	c := int(l.codes[i*l.m+m])
	return l.cb.Centroid(m, c)[d] * l.norm(i, m)
}

// Forward aggregates the inputs by code, agg[m][k] = Σ x_i * norm[i, m]
// over inputs with code[i, m] = k, then expands each block as
// Σ_k agg[m][k] * centroid[m, k].
func (l *ColumnQuantized) Forward(x sparse.Vector) sparse.Vector {
	abuf := pool.Floats(l.m * l.ks)
	defer pool.Put(abuf)
	agg := *abuf

	for s, i := range x.Index {
		row := int(i)
		l.guard.rlock(row)
		for m, c := range l.codes[row*l.m : (row+1)*l.m] {
			agg[m*l.ks+int(c)] += x.Value[s] * l.norm(row, m)
		}
		l.guard.runlock(row)
	}

	buf := l.preactivation()
	pre := *buf
	for m := 0; m < l.m; m++ {
		block := pre[m*l.d : (m+1)*l.d]
		for k, a := range agg[m*l.ks : (m+1)*l.ks] {
			if a != 0 {
				math32.Axpy(a, l.cb.Centroid(m, k), block)
			}
		}
	}

	return l.activate(buf)
}

// Backward builds table[m][k] = dot(g|block m, centroid[m, k]) and reads
// gx_i = Σ_m table[m][code[i, m]] * norm[i, m]. The weight update
// re-quantizes every touched block of every active input row.
func (l *ColumnQuantized) Backward(g, x sparse.Vector, opt *Optimizer, computeGx bool) (sparse.Vector, error) {
	blocks := spans(g, l.m, l.d)

	var gx sparse.Vector
	if computeGx {
		tbuf := pool.Floats(l.m * l.ks)
		defer pool.Put(tbuf)
		table := *tbuf
		for _, sp := range blocks {
			row := table[sp.m*l.ks : (sp.m+1)*l.ks]
			for k := range row {
				row[k] = math32.SparseDot(g.Index[sp.start:sp.end], g.Value[sp.start:sp.end], l.cb.Centroid(sp.m, k), sp.lo)
			}
		}

		gx = x.WithValues()
		for s, i := range x.Index {
			row := int(i)
			l.guard.rlock(row)
			var sum float32
			for m, c := range l.codes[row*l.m : (row+1)*l.m] {
				sum += table[m*l.ks+int(c)] * l.norm(row, m)
			}
			l.guard.runlock(row)
			gx.Value[s] = sum
		}
	}

	lr := opt.LearningRate
	w := make([]float32, l.d)

	for s, i := range x.Index {
		step := lr * x.Value[s]
		if err := l.updateInput(int(i), step, g, blocks, w); err != nil {
			return sparse.Vector{}, err
		}
	}

	l.updateBias(g, lr)

	return gx, nil
}

func (l *ColumnQuantized) updateInput(i int, step float32, g sparse.Vector, blocks []span, w []float32) error {
	l.guard.lock(i)
	defer l.guard.unlock(i)

	for _, sp := range blocks {
		idx := i*l.m + sp.m
		dict := l.cb.Dictionary(sp.m)

		copy(w, l.cb.Centroid(sp.m, int(l.codes[idx])))
		if l.norms != nil {
			math32.ScaleInPlace(w, l.norms[idx])
		}

		for t := sp.start; t < sp.end; t++ {
			w[g.Index[t]-sp.lo] -= step * g.Value[t]
		}

		if l.norms != nil {
			code, norm, err := quantization.EncodeNVQ(w, dict)
			if err != nil {
				return fmt.Errorf("layer: requantize input %d block %d: %w", i, sp.m, err)
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
func (l *ColumnQuantized) ParamBytes() int {
	return 4*l.cb.Size() + len(l.codes) + 4*len(l.norms) + l.biasBytes()
}

// MarshalBinary encodes the layer into a sealed blob.
func (l *ColumnQuantized) MarshalBinary() ([]byte, error) {
	enc := codec.NewEncoder(32 + l.ParamBytes())
	l.encodeHeader(enc, KindCPQ)
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
func (l *ColumnQuantized) UnmarshalBinary(data []byte) error {
	payload, err := codec.Open(data)
	if err != nil {
		return err
	}

	dec := codec.NewDecoder(payload)
	if err := l.decodeHeader(dec, KindCPQ); err != nil {
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
