package quantization

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vqnet/distance"
)

func TestNewCodebook(t *testing.T) {
	tests := []struct {
		name    string
		m, ks   int
		d       int
		wantErr error
	}{
		{"Valid", 4, 256, 8, nil},
		{"SingleCentroid", 1, 1, 1, nil},
		{"TooManyCentroids", 4, 257, 8, ErrCentroidRange},
		{"NoCentroids", 4, 0, 8, ErrCentroidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, err := NewCodebook(tt.m, tt.ks, tt.d)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, cb.Centroids, tt.m*tt.ks*tt.d)
			assert.Equal(t, cb.Size(), len(cb.Centroids))
		})
	}

	_, err := NewCodebook(0, 4, 4)
	assert.Error(t, err)
}

func TestCheckDivisible(t *testing.T) {
	assert.NoError(t, CheckDivisible(8, 4))
	assert.ErrorIs(t, CheckDivisible(10, 4), ErrIndivisibleDimension)
	assert.ErrorIs(t, CheckDivisible(8, 0), ErrIndivisibleDimension)
}

func TestRandomCodebookNormalized(t *testing.T) {
	rng := rand.New(rand.NewSource(1016))
	cb, err := RandomCodebook(2, 16, 8, true, rng)
	require.NoError(t, err)

	for m := 0; m < cb.M; m++ {
		for k := 0; k < cb.Ks; k++ {
			assert.InDelta(t, 1, distance.Norm(cb.Centroid(m, k)), 1e-5)
		}
	}
}

func TestRandomCodebookRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1016))
	cb, err := RandomCodebook(2, 16, 8, false, rng)
	require.NoError(t, err)

	for _, v := range cb.Centroids {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.Less(t, v, float32(1))
	}
}

func TestReplicateAndClone(t *testing.T) {
	cb := &Codebook{M: 1, Ks: 2, D: 2, Centroids: []float32{1, 2, 3, 4}}

	rep := cb.Replicate(3)
	assert.Equal(t, 3, rep.M)
	assert.Equal(t, []float32{1, 2, 3, 4, 1, 2, 3, 4, 1, 2, 3, 4}, rep.Centroids)
	assert.Equal(t, []float32{3, 4}, rep.Centroid(2, 1))

	c := cb.Clone()
	c.Centroids[0] = 42
	assert.Equal(t, float32(1), cb.Centroids[0])
}
