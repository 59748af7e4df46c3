package kmeans

import (
	"log/slog"
	"runtime"
)

// Stats describes one finished k-means iteration.
type Stats struct {
	Iteration int
	// Inertia is the summed squared distance of each row to the centroid it
	// was assigned to in this iteration.
	Inertia float64
	// Empty is the number of clusters that received no rows.
	Empty int
	// Reseeded is the number of clusters replaced by a random row.
	Reseeded int
}

// Option configures Train and TrainResidual.
type Option func(*options)

type options struct {
	seed    int64
	workers int
	logger  *slog.Logger
	hook    func(Stats)
}

func defaultOptions() options {
	return options{
		seed:    1016,
		workers: runtime.GOMAXPROCS(0),
	}
}

// WithSeed sets the seed used to pick reseeding rows.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

// WithWorkers bounds the number of goroutines used for assignment.
// Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger enables rate-limited progress logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithIterationHook registers fn to be called after every iteration.
func WithIterationHook(fn func(Stats)) Option {
	return func(o *options) { o.hook = fn }
}
