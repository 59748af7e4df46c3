package kmeans

import (
	"context"
	"fmt"
	"slices"
)

// ResidualResult holds the output of TrainResidual.
type ResidualResult struct {
	// Centroids is a flat [stages, k, dim] slice.
	Centroids []float32
	// Codes is a flat [stages, n] slice; Codes[s*n+r] is the stage s code of row r.
	Codes []int
}

// TrainResidual trains stages codebooks in sequence. Stage s clusters the
// residual left after subtracting the stage 0..s-1 centroids from each row.
func TrainResidual(ctx context.Context, data []float32, dim, stages, k, iters int, opts ...Option) (*ResidualResult, error) {
	if stages <= 0 {
		return nil, fmt.Errorf("kmeans: stages must be positive, got %d", stages)
	}
	if dim <= 0 || len(data)%dim != 0 {
		return nil, fmt.Errorf("kmeans: data length %d is not a multiple of dim %d", len(data), dim)
	}

	n := len(data) / dim
	residual := slices.Clone(data)

	out := &ResidualResult{
		Centroids: make([]float32, 0, stages*k*dim),
		Codes:     make([]int, 0, stages*n),
	}

	for s := 0; s < stages; s++ {
		res, err := Train(ctx, residual, dim, k, iters, opts...)
		if err != nil {
			return nil, fmt.Errorf("kmeans: residual stage %d: %w", s, err)
		}

		for r, c := range res.Codes {
			row := residual[r*dim : (r+1)*dim]
			centroid := res.Centroids[c*dim : (c+1)*dim]
			for d := range row {
				row[d] -= centroid[d]
			}
		}

		out.Centroids = append(out.Centroids, res.Centroids...)
		out.Codes = append(out.Codes, res.Codes...)
	}

	return out, nil
}
