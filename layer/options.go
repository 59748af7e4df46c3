package layer

import (
	"github.com/hupe1980/vqnet/codec"
	"github.com/hupe1980/vqnet/quantization"
)

const (
	// DefaultSeed seeds parameter initialization.
	DefaultSeed = 1016
	// DefaultSubquantizers is the default number of sub-blocks M.
	DefaultSubquantizers = 2
	// DefaultCentroids is the default number of centroids per dictionary.
	DefaultCentroids = 256
	// DefaultStripes is the number of row locks used by strict locking.
	DefaultStripes = 256
)

// Option configures a layer.
type Option func(*options)

type options struct {
	seed           int64
	topK           int
	m              int
	ks             int
	normCorrection bool
	buckets        int
	codebook       *quantization.Codebook
	strict         bool
	compression    codec.Compression
}

func defaultOptions() options {
	return options{
		seed: DefaultSeed,
		m:    DefaultSubquantizers,
		ks:   DefaultCentroids,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithSeed sets the seed for parameter initialization.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

// WithTopK routes SoftMax pre-activations through a Top-K selector of
// capacity k. k <= 0 disables selection. Ignored for ReLU layers.
func WithTopK(k int) Option {
	return func(o *options) { o.topK = k }
}

// WithSelection enables Top-K selection with DefaultTopK capacity.
func WithSelection() Option {
	return func(o *options) { o.topK = -1 }
}

// WithSubquantizers sets the number of sub-blocks M (PQ, VQ, CPQ) or
// residual stages (RQ).
func WithSubquantizers(m int) Option {
	return func(o *options) { o.m = m }
}

// WithCentroids sets the number of centroids per dictionary (at most 256).
func WithCentroids(ks int) Option {
	return func(o *options) { o.ks = ks }
}

// WithNormCorrection pairs every PQ or CPQ code with a norm scalar.
func WithNormCorrection(enabled bool) Option {
	return func(o *options) { o.normCorrection = enabled }
}

// WithBuckets sets the bucket count of a hashed layer.
func WithBuckets(n int) Option {
	return func(o *options) { o.buckets = n }
}

// WithCodebook installs a pre-trained codebook instead of a random one.
// Every layer keeps its own copy of cb.
func WithCodebook(cb *quantization.Codebook) Option {
	return func(o *options) { o.codebook = cb }
}

// WithStrictLocking guards parameter rows with striped RWMutexes instead of
// lock-free (Hogwild) updates.
func WithStrictLocking() Option {
	return func(o *options) { o.strict = true }
}

// WithCompression sets the compression used by MarshalBinary.
func WithCompression(c codec.Compression) Option {
	return func(o *options) { o.compression = c }
}
