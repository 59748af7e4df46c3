package kmeans

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/vqnet/distance"
)

// ErrTooManyCentroids is returned when k exceeds the number of rows.
var ErrTooManyCentroids = errors.New("kmeans: more centroids than training rows")

// minChunk is the smallest number of rows handed to one assignment worker.
const minChunk = 64

// Result holds trained centroids and the final assignment of every row.
type Result struct {
	// Centroids is a flat [k, dim] slice.
	Centroids []float32
	// Codes[r] is the centroid index of row r.
	Codes []int
	// Inertia of the final assignment pass.
	Inertia float64
}

// Train clusters the flat [n, dim] slice data into k centroids over iters
// Lloyd iterations.
func Train(ctx context.Context, data []float32, dim, k, iters int, opts ...Option) (*Result, error) {
	if dim <= 0 || len(data)%dim != 0 {
		return nil, fmt.Errorf("kmeans: data length %d is not a multiple of dim %d", len(data), dim)
	}
	if k <= 0 {
		return nil, fmt.Errorf("kmeans: k must be positive, got %d", k)
	}

	n := len(data) / dim
	if k > n {
		return nil, fmt.Errorf("%w: k=%d n=%d", ErrTooManyCentroids, k, n)
	}

	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	rng := rand.New(rand.NewSource(o.seed)) //nolint:gosec
	progress := rate.Sometimes{First: 1, Interval: 2 * time.Second}

	centroids := make([]float32, k*dim)
	copy(centroids, data[:k*dim])

	codes := make([]int, n)
	dists := make([]float32, n)
	counts := make([]int, k)
	sums := make([]float32, k*dim)

	for iter := 0; iter < iters; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := assign(ctx, data, dim, centroids, codes, dists, o.workers); err != nil {
			return nil, err
		}

		clear(sums)
		clear(counts)

		var inertia float64
		for r := 0; r < n; r++ {
			c := codes[r]
			vec := data[r*dim : (r+1)*dim]
			sum := sums[c*dim : (c+1)*dim]
			for d, v := range vec {
				sum[d] += v
			}
			counts[c]++
			inertia += float64(dists[r])
		}

		stats := Stats{Iteration: iter, Inertia: inertia}
		for j := 0; j < k; j++ {
			centroid := centroids[j*dim : (j+1)*dim]
			if counts[j] == 0 {
				stats.Empty++
				stats.Reseeded++
				row := rng.Intn(n)
				copy(centroid, data[row*dim:(row+1)*dim])
				continue
			}
			scale := 1 / float32(counts[j])
			for d, s := range sums[j*dim : (j+1)*dim] {
				centroid[d] = s * scale
			}
		}

		if o.hook != nil {
			o.hook(stats)
		}
		if o.logger != nil {
			progress.Do(func() {
				o.logger.LogAttrs(ctx, slog.LevelDebug, "kmeans iteration",
					slog.Int("iteration", iter),
					slog.Int("of", iters),
					slog.Int("k", k),
					slog.Float64("inertia", inertia),
					slog.Int("reseeded", stats.Reseeded),
				)
			})
		}
	}

	if err := assign(ctx, data, dim, centroids, codes, dists, o.workers); err != nil {
		return nil, err
	}

	var inertia float64
	for _, d := range dists {
		inertia += float64(d)
	}

	return &Result{Centroids: centroids, Codes: codes, Inertia: inertia}, nil
}

// assign writes the nearest centroid of every row into codes.
func assign(ctx context.Context, data []float32, dim int, centroids []float32, codes []int, dists []float32, workers int) error {
	n := len(codes)

	chunk := (n + workers - 1) / workers
	if chunk < minChunk {
		chunk = minChunk
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for r := start; r < end; r++ {
				codes[r], dists[r] = distance.Nearest(data[r*dim:(r+1)*dim], centroids, dim)
			}
			return nil
		})
	}

	return g.Wait()
}
