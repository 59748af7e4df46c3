package vqnet

import (
	"runtime"

	"github.com/hupe1980/vqnet/layer"
)

const (
	// DefaultBatchSize is the largest batch accepted by Train and Predict
	// unless configured otherwise.
	DefaultBatchSize = 1000
	// DefaultLearningRate is the initial SGD step size.
	DefaultLearningRate = 1e-4
)

type options struct {
	batchSize        int
	learningRate     float32
	workers          int
	logger           *Logger
	metricsCollector MetricsCollector
	factory          LayerFactory
	strict           bool
	seed             int64
	selection        bool
	layerOptions     []layer.Option
}

func defaultOptions() options {
	return options{
		batchSize:        DefaultBatchSize,
		learningRate:     DefaultLearningRate,
		workers:          runtime.GOMAXPROCS(0),
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		factory:          DenseFactory{},
		seed:             layer.DefaultSeed,
	}
}

// Option configures a Network.
type Option func(*options)

// WithBatchSize sets the maximum number of samples per Train or Predict call.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithLearningRate sets the initial learning rate.
func WithLearningRate(lr float32) Option {
	return func(o *options) {
		o.learningRate = lr
	}
}

// WithWorkers bounds the number of samples processed concurrently.
// Defaults to GOMAXPROCS. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vqnet.BasicMetricsCollector{}
//	net, _ := vqnet.New(784, sizes, acts, vqnet.WithMetricsCollector(metrics))
//	// ... train ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLayerFactory sets the factory that builds each layer.
func WithLayerFactory(f LayerFactory) Option {
	return func(o *options) {
		if f != nil {
			o.factory = f
		}
	}
}

// WithStrictLocking makes every layer guard its parameters with striped
// locks instead of lock-free updates.
func WithStrictLocking() Option {
	return func(o *options) {
		o.strict = true
	}
}

// WithSeed sets the base seed; layer i is initialized with seed+i.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithSelection routes SoftMax layers through a Top-K selector of the
// default capacity.
func WithSelection() Option {
	return func(o *options) {
		o.selection = true
	}
}

// WithLayerOptions appends options passed to every layer.
func WithLayerOptions(opts ...layer.Option) Option {
	return func(o *options) {
		o.layerOptions = append(o.layerOptions, opts...)
	}
}
