package quantization

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/hupe1980/vqnet/distance"
	"github.com/hupe1980/vqnet/internal/kmeans"
)

// TrainOption configures codebook training.
type TrainOption func(*trainOptions)

type trainOptions struct {
	kmeans []kmeans.Option
}

// WithTrainSeed seeds empty-cluster reseeding.
func WithTrainSeed(seed int64) TrainOption {
	return func(o *trainOptions) { o.kmeans = append(o.kmeans, kmeans.WithSeed(seed)) }
}

// WithTrainWorkers bounds the goroutines used by the assignment step.
func WithTrainWorkers(n int) TrainOption {
	return func(o *trainOptions) { o.kmeans = append(o.kmeans, kmeans.WithWorkers(n)) }
}

// WithTrainLogger logs throttled training progress.
func WithTrainLogger(l *slog.Logger) TrainOption {
	return func(o *trainOptions) { o.kmeans = append(o.kmeans, kmeans.WithLogger(l)) }
}

func collect(opts []TrainOption) []kmeans.Option {
	var o trainOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o.kmeans
}

// TrainCodebook learns a single dictionary (M = 1) of ks centroids from the
// flat [n, dim] slice data. Use Replicate to share it across sub-blocks.
func TrainCodebook(ctx context.Context, data []float32, dim, ks, iters int, opts ...TrainOption) (*Codebook, error) {
	cb, err := NewCodebook(1, ks, dim)
	if err != nil {
		return nil, err
	}

	res, err := kmeans.Train(ctx, data, dim, ks, iters, collect(opts)...)
	if err != nil {
		return nil, err
	}
	copy(cb.Centroids, res.Centroids)

	return cb, nil
}

// TrainResidualCodebook learns a stages-deep residual codebook of ks
// centroids each.
func TrainResidualCodebook(ctx context.Context, data []float32, dim, stages, ks, iters int, opts ...TrainOption) (*Codebook, error) {
	cb, err := NewCodebook(stages, ks, dim)
	if err != nil {
		return nil, err
	}

	res, err := kmeans.TrainResidual(ctx, data, dim, stages, ks, iters, collect(opts)...)
	if err != nil {
		return nil, err
	}
	copy(cb.Centroids, res.Centroids)

	return cb, nil
}

// RandomUnitVectors draws n uniform [0,1) vectors of dimension dim and
// normalizes each to unit L2 norm.
func RandomUnitVectors(n, dim int, rng *rand.Rand) ([]float32, error) {
	data := make([]float32, n*dim)
	for r := 0; r < n; r++ {
		row := data[r*dim : (r+1)*dim]
		for i := range row {
			row[i] = rng.Float32()
		}
		if _, ok := distance.NormalizeL2InPlace(row); !ok {
			return nil, fmt.Errorf("%w: training row %d", ErrZeroNorm, r)
		}
	}
	return data, nil
}

// SyntheticCodebook trains one ks-centroid dictionary on n random unit
// vectors of dimension d and replicates it across m sub-blocks.
func SyntheticCodebook(ctx context.Context, m, ks, d, n, iters int, seed int64, opts ...TrainOption) (*Codebook, error) {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec

	data, err := RandomUnitVectors(n, d, rng)
	if err != nil {
		return nil, err
	}

	cb, err := TrainCodebook(ctx, data, d, ks, iters, append([]TrainOption{WithTrainSeed(seed)}, opts...)...)
	if err != nil {
		return nil, err
	}

	return cb.Replicate(m), nil
}

// SyntheticResidualCodebook trains a stages-deep residual codebook on n
// random unit vectors of dimension d.
func SyntheticResidualCodebook(ctx context.Context, stages, ks, d, n, iters int, seed int64, opts ...TrainOption) (*Codebook, error) {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec

	data, err := RandomUnitVectors(n, d, rng)
	if err != nil {
		return nil, err
	}

	return TrainResidualCodebook(ctx, data, d, stages, ks, iters, append([]TrainOption{WithTrainSeed(seed)}, opts...)...)
}
