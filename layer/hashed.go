package layer

import (
	"github.com/hupe1980/vqnet/codec"
	"github.com/hupe1980/vqnet/internal/hash"
	"github.com/hupe1980/vqnet/sparse"
)

// Hashed shares S buckets among all I*O weight positions; W[i, o] is the
// bucket that (i, o) hashes to. Colliding positions read and update the
// same value.
type Hashed struct {
	base
	seed    uint64
	buckets []float32
}

// NewHashed creates a hashed layer. Without WithBuckets the bucket count
// defaults to one sixteenth of I*O.
func NewHashed(in, out int, act Activation, opts ...Option) (*Hashed, error) {
	o := applyOptions(opts)

	n := o.buckets
	if n <= 0 {
		n = max(1, in*out/16)
	}

	b, rng, err := newBase(in, out, act, o, n)
	if err != nil {
		return nil, err
	}

	l := &Hashed{
		base:    b,
		seed:    uint64(o.seed),
		buckets: make([]float32, n),
	}

	scale := initScale(in)
	for i := range l.buckets {
		l.buckets[i] = rng.Float32() * scale
	}

	return l, nil
}

// Kind returns KindHashed.
func (l *Hashed) Kind() Kind { return KindHashed }

// Buckets returns the bucket count.
func (l *Hashed) Buckets() int { return len(l.buckets) }

// BucketOf returns the bucket that W[i, o] is stored in.
func (l *Hashed) BucketOf(i, o int) int {
	return hash.Bucket(i, o, l.out, len(l.buckets), l.seed)
}

// Weight returns the bucket value that (i, o) hashes to.
func (l *Hashed) Weight(i, o int) float32 {
	b := l.BucketOf(i, o)
	l.guard.rlock(b)
	defer l.guard.runlock(b)
	return l.buckets[b]
}

// Forward computes activation(b + Σ_s x_s W[i_s, :]).
func (l *Hashed) Forward(x sparse.Vector) sparse.Vector {
	buf := l.preactivation()
	pre := *buf

	for s, i := range x.Index {
		xv := x.Value[s]
		for o := range pre {
			b := l.BucketOf(int(i), o)
			l.guard.rlock(b)
			pre[o] += xv * l.buckets[b]
			l.guard.runlock(b)
		}
	}

	return l.activate(buf)
}

// Backward computes gx from the pre-update buckets, then subtracts
// lr * x_i * g_o from the bucket of every active pair.
func (l *Hashed) Backward(g, x sparse.Vector, opt *Optimizer, computeGx bool) (sparse.Vector, error) {
	var gx sparse.Vector
	if computeGx {
		gx = x.WithValues()
		for s, i := range x.Index {
			var sum float32
			for t, o := range g.Index {
				sum += g.Value[t] * l.Weight(int(i), int(o))
			}
			gx.Value[s] = sum
		}
	}

	lr := opt.LearningRate
	for s, i := range x.Index {
		step := lr * x.Value[s]
		for t, o := range g.Index {
			b := l.BucketOf(int(i), int(o))
			l.guard.lock(b)
			l.buckets[b] -= step * g.Value[t]
			l.guard.unlock(b)
		}
	}

	l.updateBias(g, lr)

	return gx, nil
}

// ParamBytes returns the size of buckets and bias.
func (l *Hashed) ParamBytes() int {
	return 4*len(l.buckets) + l.biasBytes()
}

// MarshalBinary encodes the layer into a sealed blob.
func (l *Hashed) MarshalBinary() ([]byte, error) {
	enc := codec.NewEncoder(32 + l.ParamBytes())
	l.encodeHeader(enc, KindHashed)
	enc.PutUint64(l.seed)

	l.guard.lockAll()
	enc.PutFloat32s(l.buckets)
	enc.PutFloat32s(l.bias)
	l.guard.unlockAll()

	return l.seal(enc)
}

// UnmarshalBinary replaces the parameters with those of a sealed blob.
func (l *Hashed) UnmarshalBinary(data []byte) error {
	payload, err := codec.Open(data)
	if err != nil {
		return err
	}

	dec := codec.NewDecoder(payload)
	if err := l.decodeHeader(dec, KindHashed); err != nil {
		return err
	}

	seed := dec.Uint64()
	buckets := dec.Float32s()
	bias := dec.Float32s()
	if err := dec.Err(); err != nil {
		return err
	}

	if err := checkLen("buckets", len(buckets), len(l.buckets)); err != nil {
		return err
	}
	if err := checkLen("bias", len(bias), l.out); err != nil {
		return err
	}

	l.guard.lockAll()
	defer l.guard.unlockAll()

	l.seed = seed
	copy(l.buckets, buckets)
	copy(l.bias, bias)

	return nil
}
