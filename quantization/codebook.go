package quantization

import (
	"fmt"
	"math/rand"

	"github.com/hupe1980/vqnet/distance"
)

// MaxCentroids is the largest Ks addressable by a uint8 code.
const MaxCentroids = 256

// Codebook is a set of M dictionaries with Ks centroids of dimension D.
type Codebook struct {
	M  int
	Ks int
	D  int
	// Centroids is a flat [M, Ks, D] slice.
	Centroids []float32
}

// NewCodebook allocates a zeroed codebook.
func NewCodebook(m, ks, d int) (*Codebook, error) {
	if ks < 1 || ks > MaxCentroids {
		return nil, fmt.Errorf("%w: got %d", ErrCentroidRange, ks)
	}
	if m < 1 || d < 1 {
		return nil, fmt.Errorf("quantization: invalid codebook shape m=%d d=%d", m, d)
	}

	return &Codebook{
		M:         m,
		Ks:        ks,
		D:         d,
		Centroids: make([]float32, m*ks*d),
	}, nil
}

// RandomCodebook fills a codebook with uniform [0,1) values. When normalize
// is set every centroid is scaled to unit L2 norm.
func RandomCodebook(m, ks, d int, normalize bool, rng *rand.Rand) (*Codebook, error) {
	cb, err := NewCodebook(m, ks, d)
	if err != nil {
		return nil, err
	}

	for i := range cb.Centroids {
		cb.Centroids[i] = rng.Float32()
	}

	if normalize {
		for m := 0; m < cb.M; m++ {
			for k := 0; k < cb.Ks; k++ {
				// A zero draw across a whole centroid is left as is.
				distance.NormalizeL2InPlace(cb.Centroid(m, k))
			}
		}
	}

	return cb, nil
}

// Centroid returns centroid k of dictionary m. The slice aliases the codebook.
func (c *Codebook) Centroid(m, k int) []float32 {
	off := (m*c.Ks + k) * c.D
	return c.Centroids[off : off+c.D]
}

// Dictionary returns the Ks*D block of dictionary m.
func (c *Codebook) Dictionary(m int) []float32 {
	off := m * c.Ks * c.D
	return c.Centroids[off : off+c.Ks*c.D]
}

// Replicate returns a codebook with m copies of dictionary 0.
func (c *Codebook) Replicate(m int) *Codebook {
	out := &Codebook{
		M:         m,
		Ks:        c.Ks,
		D:         c.D,
		Centroids: make([]float32, 0, m*c.Ks*c.D),
	}
	src := c.Dictionary(0)
	for i := 0; i < m; i++ {
		out.Centroids = append(out.Centroids, src...)
	}
	return out
}

// Clone returns a deep copy.
func (c *Codebook) Clone() *Codebook {
	out := *c
	out.Centroids = append([]float32(nil), c.Centroids...)
	return &out
}

// Size returns the number of floats held by the codebook.
func (c *Codebook) Size() int {
	return c.M * c.Ks * c.D
}
