package quantization

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vqnet/internal/kmeans"
)

var (
	// ErrIndivisibleDimension is returned when a weight dimension is not a
	// multiple of the number of sub-quantizers.
	ErrIndivisibleDimension = errors.New("quantization: dimension not divisible by subquantizers")

	// ErrZeroNorm is returned when a vector with zero L2 norm has to be
	// normalized or rescaled.
	ErrZeroNorm = errors.New("quantization: zero norm")

	// ErrTooManyCentroids is returned when k-means is asked for more
	// centroids than there are training rows.
	ErrTooManyCentroids = kmeans.ErrTooManyCentroids

	// ErrCentroidRange is returned when Ks is outside [1, 256].
	ErrCentroidRange = errors.New("quantization: centroids per codebook must be in [1, 256]")
)

// CheckDivisible returns ErrIndivisibleDimension unless dim splits into m
// equal sub-blocks.
func CheckDivisible(dim, m int) error {
	if m <= 0 || dim <= 0 || dim%m != 0 {
		return fmt.Errorf("%w: dim=%d m=%d", ErrIndivisibleDimension, dim, m)
	}
	return nil
}
