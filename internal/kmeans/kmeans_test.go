package kmeans

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrain(t *testing.T) {
	ctx := context.Background()
	// 2 clusters: (0,0) and (10,10)
	vecs := []float32{
		0, 0, 10, 10, // seeds: one per cluster
		0, 1, 1, 0, // near 0,0
		10, 11, 11, 10, // near 10,10
	}

	res, err := Train(ctx, vecs, 2, 2, 10)
	require.NoError(t, err)
	assert.Len(t, res.Centroids, 4)
	assert.Len(t, res.Codes, 6)

	assert.InDelta(t, 1.0/3, res.Centroids[0], 1e-5)
	assert.InDelta(t, 1.0/3, res.Centroids[1], 1e-5)
	assert.InDelta(t, 31.0/3, res.Centroids[2], 1e-5)
	assert.InDelta(t, 31.0/3, res.Centroids[3], 1e-5)

	assert.Equal(t, []int{0, 1, 0, 0, 1, 1}, res.Codes)
}

func TestTrain_TooManyCentroids(t *testing.T) {
	_, err := Train(context.Background(), []float32{0, 0}, 2, 2, 10)
	assert.ErrorIs(t, err, ErrTooManyCentroids)
}

func TestTrain_BadShape(t *testing.T) {
	_, err := Train(context.Background(), []float32{0, 0, 0}, 2, 1, 10)
	assert.Error(t, err)

	_, err = Train(context.Background(), []float32{0, 0}, 2, 0, 10)
	assert.Error(t, err)
}

func TestTrain_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	vecs := make([]float32, 1000*2)
	for i := range vecs {
		vecs[i] = float32(i)
	}

	_, err := Train(ctx, vecs, 2, 10, 1000)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrain_ReseedsEmptyClusters(t *testing.T) {
	// Identical seed rows: the second cluster is empty after the first
	// assignment because ties go to the lowest index.
	vecs := []float32{
		1, 1,
		1, 1,
		5, 5,
		9, 9,
	}

	var stats []Stats
	res, err := Train(context.Background(), vecs, 2, 2, 5, WithIterationHook(func(s Stats) {
		stats = append(stats, s)
	}))
	require.NoError(t, err)
	require.Len(t, stats, 5)

	assert.Equal(t, 1, stats[0].Empty)
	assert.Equal(t, 1, stats[0].Reseeded)

	for _, c := range res.Centroids {
		assert.False(t, math.IsNaN(float64(c)))
	}
}

func TestTrain_InertiaNonIncreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n, dim = 500, 4
	vecs := make([]float32, n*dim)
	for i := range vecs {
		vecs[i] = rng.Float32()
	}

	var stats []Stats
	_, err := Train(context.Background(), vecs, dim, 8, 15,
		WithWorkers(3),
		WithIterationHook(func(s Stats) { stats = append(stats, s) }),
	)
	require.NoError(t, err)

	for i := 1; i < len(stats); i++ {
		if stats[i-1].Reseeded > 0 {
			continue
		}
		assert.LessOrEqual(t, stats[i].Inertia, stats[i-1].Inertia*(1+1e-5), "iteration %d", i)
	}
}

func TestTrain_WorkersDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	vecs := make([]float32, 300*3)
	for i := range vecs {
		vecs[i] = rng.Float32()
	}

	a, err := Train(context.Background(), vecs, 3, 5, 10, WithWorkers(1))
	require.NoError(t, err)
	b, err := Train(context.Background(), vecs, 3, 5, 10, WithWorkers(4))
	require.NoError(t, err)

	assert.Equal(t, a.Codes, b.Codes)
	assert.Equal(t, a.Centroids, b.Centroids)
}

func TestTrain_Logger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Train(context.Background(), []float32{0, 0, 1, 1, 2, 2}, 2, 2, 3, WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "kmeans iteration")
}

func TestTrainResidual(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	const n, dim, stages, k = 200, 4, 3, 8
	vecs := make([]float32, n*dim)
	for i := range vecs {
		vecs[i] = rng.Float32()
	}

	res, err := TrainResidual(context.Background(), vecs, dim, stages, k, 10)
	require.NoError(t, err)
	assert.Len(t, res.Centroids, stages*k*dim)
	assert.Len(t, res.Codes, stages*n)

	// Reconstruction error shrinks as stages are added.
	errAt := func(upto int) float64 {
		var total float64
		for r := 0; r < n; r++ {
			for d := 0; d < dim; d++ {
				rec := float32(0)
				for s := 0; s < upto; s++ {
					c := res.Codes[s*n+r]
					rec += res.Centroids[(s*k+c)*dim+d]
				}
				diff := vecs[r*dim+d] - rec
				total += float64(diff * diff)
			}
		}
		return total
	}

	assert.Less(t, errAt(2), errAt(1))
	assert.Less(t, errAt(3), errAt(2))
}

func TestTrainResidual_InvalidStages(t *testing.T) {
	_, err := TrainResidual(context.Background(), []float32{0, 0}, 2, 0, 1, 1)
	assert.Error(t, err)
}
