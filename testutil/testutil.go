package testutil

import (
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/vqnet/sparse"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float32 in a loop).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// FillUniformRange fills dst with random values in range [minVal, maxVal).
func (r *RNG) FillUniformRange(dst []float32, minVal, maxVal float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := maxVal - minVal
	for i := range dst {
		dst[i] = minVal + r.rand.Float32()*span
	}
}

// UnitVectors generates num L2-normalized Gaussian vectors as one flat
// [num, dimensions] slice.
func (r *RNG) UnitVectors(num int, dimensions int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		var norm float64
		for j := range vec {
			v := r.rand.NormFloat64()
			vec[j] = float32(v)
			norm += v * v
		}

		if norm == 0 {
			norm = 1
		}

		inv := float32(1.0 / math.Sqrt(norm))
		for j := range vec {
			vec[j] *= inv
		}
	}

	return data
}

// distinct draws k distinct sorted values below n.
func (r *RNG) distinct(n, k int) []uint32 {
	k = min(k, n)
	picked := make(map[int]struct{}, k)
	out := make([]uint32, 0, k)
	for len(out) < k {
		v := r.rand.Intn(n)
		if _, ok := picked[v]; ok {
			continue
		}
		picked[v] = struct{}{}
		out = append(out, uint32(v))
	}
	slices.Sort(out)
	return out
}

// SparseVector draws nnz distinct indices below dim with values in (0, 1].
func (r *RNG) SparseVector(dim, nnz int) sparse.Vector {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := r.distinct(dim, nnz)
	value := make([]float32, len(index))
	for i := range value {
		value[i] = 1 - r.rand.Float32()
	}

	return sparse.New(index, value)
}

// Labels draws count distinct sorted labels below classes.
func (r *RNG) Labels(classes, count int) []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.distinct(classes, count)
}
