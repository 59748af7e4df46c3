package distance

import (
	"math"

	"github.com/hupe1980/vqnet/internal/math32"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	return math32.Dot(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	return math32.SquaredL2(a, b)
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	return math32.Sqrt(math32.Dot(v, v))
}

// NormalizeL2InPlace L2-normalizes v in place and returns the original norm.
// Returns false if v has zero L2 norm; v is left untouched in that case.
func NormalizeL2InPlace(v []float32) (float32, bool) {
	if len(v) == 0 {
		return 0, false
	}
	norm2 := math32.Dot(v, v)
	if norm2 <= 0 {
		return 0, false
	}
	norm := math32.Sqrt(norm2)
	math32.ScaleInPlace(v, 1/norm)
	return norm, true
}

// Nearest returns the index of the centroid closest to vec and its squared
// distance. centroids is a flat [k, dim] slice. Ties resolve to the lowest index.
func Nearest(vec []float32, centroids []float32, dim int) (int, float32) {
	k := len(centroids) / dim
	best := 0
	minDist := float32(math.MaxFloat32)

	for j := 0; j < k; j++ {
		d := math32.SquaredL2(vec, centroids[j*dim:(j+1)*dim])
		if d < minDist {
			minDist = d
			best = j
		}
	}

	return best, minDist
}
