package vqnet

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vqnet/layer"
	"github.com/hupe1980/vqnet/loss"
	"github.com/hupe1980/vqnet/sparse"
)

// Network is a feed-forward classifier over sparse inputs.
//
// Train and Predict process the samples of a batch concurrently. Layers
// share parameters across samples without a barrier until the batch ends.
type Network struct {
	layers    []layer.Layer
	sizes     []int
	inputDim  int
	batchSize int
	workers   int
	opt       layer.Optimizer
	logger    *Logger
	metrics   MetricsCollector
}

// New builds a network with one layer per entry of sizes. Layer i maps
// sizes[i-1] (inputDim for the first layer) to sizes[i] and uses
// activations[i]. The last layer is normally SoftMax.
func New(inputDim int, sizes []int, activations []layer.Activation, opts ...Option) (*Network, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	if err := validateConfig(inputDim, sizes, activations, o); err != nil {
		o.logger.LogBuild(context.Background(), len(sizes), inputDim, 0, err)
		return nil, err
	}

	n := &Network{
		layers:    make([]layer.Layer, 0, len(sizes)),
		sizes:     append([]int(nil), sizes...),
		inputDim:  inputDim,
		batchSize: o.batchSize,
		workers:   o.workers,
		opt:       layer.Optimizer{LearningRate: o.learningRate},
		logger:    o.logger,
		metrics:   o.metricsCollector,
	}

	in := inputDim
	for i, out := range sizes {
		spec := LayerSpec{Position: i, InputDim: in, OutputDim: out, Activation: activations[i]}

		l, err := o.factory.NewLayer(spec, n.layerOptions(i, o)...)
		if err != nil {
			err = &ErrInvalidConfig{Reason: fmt.Sprintf("layer %d (%d x %d)", i, in, out), cause: err}
			n.logger.LogBuild(context.Background(), len(sizes), inputDim, 0, err)
			return nil, err
		}
		if l.InputDim() != in || l.OutputDim() != out {
			err := &ErrInvalidConfig{Reason: fmt.Sprintf("layer %d: factory built %d x %d, want %d x %d", i, l.InputDim(), l.OutputDim(), in, out)}
			n.logger.LogBuild(context.Background(), len(sizes), inputDim, 0, err)
			return nil, err
		}

		n.logger.WithLayer(i).LogBuildLayer(context.Background(), l.Kind().String(), in, out, l.ParamBytes())
		n.layers = append(n.layers, l)
		in = out
	}

	n.logger.LogBuild(context.Background(), len(n.layers), inputDim, n.ParamBytes(), nil)

	return n, nil
}

func validateConfig(inputDim int, sizes []int, activations []layer.Activation, o options) error {
	switch {
	case inputDim <= 0:
		return &ErrInvalidConfig{Reason: fmt.Sprintf("input dimension must be positive, got %d", inputDim)}
	case len(sizes) == 0:
		return &ErrInvalidConfig{Reason: "at least one layer is required"}
	case len(sizes) != len(activations):
		return &ErrInvalidConfig{Reason: fmt.Sprintf("%d layer sizes but %d activations", len(sizes), len(activations))}
	case o.batchSize <= 0:
		return &ErrInvalidConfig{Reason: fmt.Sprintf("batch size must be positive, got %d", o.batchSize)}
	case o.learningRate <= 0:
		return &ErrInvalidConfig{Reason: fmt.Sprintf("learning rate must be positive, got %g", o.learningRate)}
	}
	for i, s := range sizes {
		if s <= 0 {
			return &ErrInvalidConfig{Reason: fmt.Sprintf("layer %d size must be positive, got %d", i, s)}
		}
	}
	return nil
}

func (n *Network) layerOptions(pos int, o options) []layer.Option {
	opts := []layer.Option{layer.WithSeed(o.seed + int64(pos))}
	if o.strict {
		opts = append(opts, layer.WithStrictLocking())
	}
	if o.selection {
		opts = append(opts, layer.WithSelection())
	}
	return append(opts, o.layerOptions...)
}

// Train runs forward, loss and backward for every sample of the batch and
// returns the summed loss. Backpropagation of a sample stops early once its
// gradient is empty.
func (n *Network) Train(ctx context.Context, batch []Sample) (float32, error) {
	start := time.Now()
	logger := n.logger.WithBatchSize(len(batch))

	samples, err := n.prepare(batch, true)
	if err != nil {
		n.metrics.RecordTrainBatch(len(batch), 0, time.Since(start), err)
		logger.LogTrainBatch(ctx, 0, 0, time.Since(start), err)
		return 0, err
	}

	losses := make([]float32, len(samples))
	var shortCircuits atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.workers)

	for b := range samples {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			l, skipped, err := n.trainSample(samples[b])
			if err != nil {
				return fmt.Errorf("sample %d: %w", b, err)
			}
			if skipped >= 0 {
				shortCircuits.Add(1)
				n.metrics.RecordShortCircuit(skipped)
			}
			losses[b] = l
			return nil
		})
	}

	err = g.Wait()

	var total float32
	if err == nil {
		for _, l := range losses {
			total += l
		}
	}

	n.metrics.RecordTrainBatch(len(batch), total, time.Since(start), err)
	logger.LogTrainBatch(ctx, total, int(shortCircuits.Load()), time.Since(start), err)

	if err != nil {
		return 0, err
	}
	return total, nil
}

// trainSample returns the sample loss and the position of the first layer
// skipped by an early stop, or -1.
func (n *Network) trainSample(s prepared) (float32, int, error) {
	acts := make([]sparse.Vector, len(n.layers)+1)
	acts[0] = s.x
	for i, l := range n.layers {
		acts[i+1] = l.Forward(acts[i])
	}

	grad, sampleLoss := loss.SoftmaxCrossEntropy(acts[len(n.layers)], s.labels)

	for i := len(n.layers) - 1; i >= 0; i-- {
		if grad.Len() == 0 {
			return sampleLoss, i, nil
		}

		var err error
		grad, err = n.layers[i].Backward(grad, acts[i], &n.opt, i != 0)
		if err != nil {
			return 0, -1, fmt.Errorf("layer %d backward: %w", i, err)
		}
	}

	return sampleLoss, -1, nil
}

// Predict returns how many samples have their arg-max output among their
// labels. Ties resolve to the lowest output id.
func (n *Network) Predict(ctx context.Context, batch []Sample) (int, error) {
	start := time.Now()
	logger := n.logger.WithBatchSize(len(batch))

	samples, err := n.prepare(batch, false)
	if err != nil {
		n.metrics.RecordPredictBatch(len(batch), 0, time.Since(start), err)
		logger.LogPredictBatch(ctx, 0, time.Since(start), err)
		return 0, err
	}

	var correct atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.workers)

	for b := range samples {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			y := n.forward(samples[b].x)
			class, ok := argmax(y)
			if !ok {
				return fmt.Errorf("sample %d: %w", b, ErrEmptyActivation)
			}
			if samples[b].set.Contains(class) {
				correct.Add(1)
			}
			return nil
		})
	}

	err = g.Wait()

	n.metrics.RecordPredictBatch(len(batch), int(correct.Load()), time.Since(start), err)
	logger.LogPredictBatch(ctx, int(correct.Load()), time.Since(start), err)

	if err != nil {
		return 0, err
	}
	return int(correct.Load()), nil
}

// Forward runs x through every layer and returns the final activation.
func (n *Network) Forward(x sparse.Vector) (sparse.Vector, error) {
	if !x.IsSorted() {
		return sparse.Vector{}, &ErrInvalidSample{Reason: "indices must be strictly ascending with one value each"}
	}
	if l := x.Len(); l > 0 && int(x.Index[l-1]) >= n.inputDim {
		return sparse.Vector{}, &ErrInvalidSample{Reason: fmt.Sprintf("index %d out of range [0, %d)", x.Index[l-1], n.inputDim)}
	}
	return n.forward(x), nil
}

func (n *Network) forward(x sparse.Vector) sparse.Vector {
	for _, l := range n.layers {
		x = l.Forward(x)
	}
	return x
}

func argmax(y sparse.Vector) (uint32, bool) {
	if y.Len() == 0 {
		return 0, false
	}
	best, bestV := y.Index[0], y.Value[0]
	for s := 1; s < len(y.Index); s++ {
		if y.Value[s] > bestV {
			best, bestV = y.Index[s], y.Value[s]
		}
	}
	return best, true
}

// Optimizer returns the optimizer shared by all layers. Changing it while
// Train runs is a data race.
func (n *Network) Optimizer() *layer.Optimizer { return &n.opt }

// LearningRate returns the current learning rate.
func (n *Network) LearningRate() float32 { return n.opt.LearningRate }

// SetLearningRate changes the learning rate between batches.
func (n *Network) SetLearningRate(lr float32) {
	n.logger.LogLearningRate(context.Background(), n.opt.LearningRate, lr)
	n.opt.LearningRate = lr
}

// Layers returns the network's layers in order.
func (n *Network) Layers() []layer.Layer {
	return append([]layer.Layer(nil), n.layers...)
}

// Sizes returns the output width of every layer.
func (n *Network) Sizes() []int { return append([]int(nil), n.sizes...) }

// InputDim returns the input dimension.
func (n *Network) InputDim() int { return n.inputDim }

// BatchSize returns the maximum batch size.
func (n *Network) BatchSize() int { return n.batchSize }

// ParamBytes returns the parameter memory of all layers.
func (n *Network) ParamBytes() int {
	total := 0
	for _, l := range n.layers {
		total += l.ParamBytes()
	}
	return total
}

// MarshalLayers encodes every layer with its own MarshalBinary.
func (n *Network) MarshalLayers() ([][]byte, error) {
	out := make([][]byte, len(n.layers))
	for i, l := range n.layers {
		blob, err := l.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		out[i] = blob
	}
	return out, nil
}

// UnmarshalLayers restores every layer from blobs produced by MarshalLayers.
// It must not run concurrently with Train or Predict.
func (n *Network) UnmarshalLayers(blobs [][]byte) error {
	if len(blobs) != len(n.layers) {
		return fmt.Errorf("%w: %d blobs for %d layers", layer.ErrShapeMismatch, len(blobs), len(n.layers))
	}
	for i, l := range n.layers {
		if err := l.UnmarshalBinary(blobs[i]); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return nil
}
