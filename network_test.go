package vqnet

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vqnet/layer"
	"github.com/hupe1980/vqnet/sparse"
	"github.com/hupe1980/vqnet/testutil"
)

// separable returns one sample per class; class c activates inputs 2c and 2c+1.
func separable(classes int) []Sample {
	batch := make([]Sample, classes)
	for c := range batch {
		batch[c] = Sample{
			Indices: []uint32{uint32(2 * c), uint32(2*c + 1)},
			Values:  []float32{1, 1},
			Labels:  []uint32{uint32(c)},
		}
	}
	return batch
}

func twoLayer(t *testing.T, opts ...Option) *Network {
	t.Helper()
	net, err := New(8, []int{16, 4}, []layer.Activation{layer.ReLU, layer.SoftMax}, opts...)
	require.NoError(t, err)
	return net
}

// deadLayer builds a ReLU layer that never activates.
func deadLayer(in, out int) (*layer.Dense, error) {
	l, err := layer.NewDense(in, out, layer.ReLU)
	if err != nil {
		return nil, err
	}
	w := make([]float32, in*out)
	b := make([]float32, out)
	for i := range w {
		w[i] = -1
	}
	for i := range b {
		b[i] = -1
	}
	return l, l.SetParams(w, b)
}

func TestNew(t *testing.T) {
	t.Run("Shape", func(t *testing.T) {
		net := twoLayer(t)

		assert.Equal(t, 8, net.InputDim())
		assert.Equal(t, []int{16, 4}, net.Sizes())
		assert.Equal(t, DefaultBatchSize, net.BatchSize())
		assert.InDelta(t, DefaultLearningRate, net.LearningRate(), 1e-9)

		layers := net.Layers()
		require.Len(t, layers, 2)
		assert.Equal(t, 8, layers[0].InputDim())
		assert.Equal(t, 16, layers[0].OutputDim())
		assert.Equal(t, layer.ReLU, layers[0].Activation())
		assert.Equal(t, 16, layers[1].InputDim())
		assert.Equal(t, 4, layers[1].OutputDim())
		assert.Equal(t, layer.SoftMax, layers[1].Activation())

		assert.Equal(t, 4*(8*16+16)+4*(16*4+4), net.ParamBytes())
	})

	t.Run("LayerSeeds", func(t *testing.T) {
		a := twoLayer(t, WithSeed(7))
		b := twoLayer(t, WithSeed(7))
		c := twoLayer(t, WithSeed(8))

		assert.Equal(t, a.Layers()[0].Weight(3, 5), b.Layers()[0].Weight(3, 5))
		assert.NotEqual(t, a.Layers()[0].Weight(3, 5), c.Layers()[0].Weight(3, 5))

		// layer 1 is seeded with base+1
		l0, err := layer.NewDense(16, 4, layer.SoftMax, layer.WithSeed(8))
		require.NoError(t, err)
		assert.Equal(t, l0.Weight(2, 1), a.Layers()[1].Weight(2, 1))
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		acts := []layer.Activation{layer.ReLU, layer.SoftMax}
		cases := []struct {
			name     string
			inputDim int
			sizes    []int
			acts     []layer.Activation
			opts     []Option
		}{
			{"ZeroInput", 0, []int{4, 2}, acts, nil},
			{"NoLayers", 8, nil, nil, nil},
			{"ActivationCount", 8, []int{4, 2}, acts[:1], nil},
			{"ZeroWidth", 8, []int{0, 2}, acts, nil},
			{"ZeroBatch", 8, []int{4, 2}, acts, []Option{WithBatchSize(0)}},
			{"NegativeRate", 8, []int{4, 2}, acts, []Option{WithLearningRate(-1)}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := New(tc.inputDim, tc.sizes, tc.acts, tc.opts...)
				var cfgErr *ErrInvalidConfig
				require.ErrorAs(t, err, &cfgErr)
			})
		}
	})

	t.Run("FactoryError", func(t *testing.T) {
		boom := errors.New("boom")
		f := LayerFactoryFunc(func(LayerSpec, ...layer.Option) (layer.Layer, error) {
			return nil, boom
		})

		_, err := New(8, []int{4}, []layer.Activation{layer.SoftMax}, WithLayerFactory(f))
		var cfgErr *ErrInvalidConfig
		require.ErrorAs(t, err, &cfgErr)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("FactoryWrongShape", func(t *testing.T) {
		f := LayerFactoryFunc(func(spec LayerSpec, opts ...layer.Option) (layer.Layer, error) {
			return layer.NewDense(spec.InputDim+1, spec.OutputDim, spec.Activation, opts...)
		})

		_, err := New(8, []int{4}, []layer.Activation{layer.SoftMax}, WithLayerFactory(f))
		var cfgErr *ErrInvalidConfig
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("FactorySpecs", func(t *testing.T) {
		var specs []LayerSpec
		f := LayerFactoryFunc(func(spec LayerSpec, opts ...layer.Option) (layer.Layer, error) {
			specs = append(specs, spec)
			return DenseFactory{}.NewLayer(spec, opts...)
		})

		_, err := New(8, []int{6, 3}, []layer.Activation{layer.ReLU, layer.SoftMax}, WithLayerFactory(f))
		require.NoError(t, err)
		assert.Equal(t, []LayerSpec{
			{Position: 0, InputDim: 8, OutputDim: 6, Activation: layer.ReLU},
			{Position: 1, InputDim: 6, OutputDim: 3, Activation: layer.SoftMax},
		}, specs)
	})
}

func TestThresholdFactory(t *testing.T) {
	f := ThresholdFactory{
		Kind:      layer.KindPQ,
		Threshold: 32,
		Options:   []layer.Option{layer.WithCentroids(8)},
	}

	net, err := New(64, []int{16, 4}, []layer.Activation{layer.ReLU, layer.SoftMax}, WithLayerFactory(f))
	require.NoError(t, err)

	layers := net.Layers()
	assert.Equal(t, layer.KindPQ, layers[0].Kind())
	assert.Equal(t, layer.KindDense, layers[1].Kind())
}

func TestTrain(t *testing.T) {
	ctx := context.Background()

	t.Run("LossDecreases", func(t *testing.T) {
		metrics := &BasicMetricsCollector{}
		net := twoLayer(t, WithLearningRate(0.1), WithWorkers(1), WithMetricsCollector(metrics))
		batch := separable(4)

		first, err := net.Train(ctx, batch)
		require.NoError(t, err)
		assert.Greater(t, first, float32(0))

		var last float32
		for range 1000 {
			last, err = net.Train(ctx, batch)
			require.NoError(t, err)
		}
		assert.Less(t, last, first/10)

		correct, err := net.Predict(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, 4, correct)

		stats := metrics.GetStats()
		assert.Equal(t, int64(1001), stats.TrainBatches)
		assert.Equal(t, int64(1001*4), stats.TrainSamples)
		assert.Equal(t, last, stats.LastLoss)
		assert.Equal(t, int64(1), stats.PredictBatches)
		assert.InDelta(t, 1.0, stats.Accuracy(), 1e-9)
	})

	t.Run("SummedLoss", func(t *testing.T) {
		a := twoLayer(t, WithWorkers(1))
		b := twoLayer(t, WithWorkers(1))
		batch := separable(2)

		l0, err := a.Train(ctx, batch[:1])
		require.NoError(t, err)
		l1, err := a.Train(ctx, batch[1:])
		require.NoError(t, err)

		// b sees sample 1 after sample 0 was applied, same as a.
		both, err := b.Train(ctx, batch)
		require.NoError(t, err)
		assert.InDelta(t, l0+l1, both, 1e-4)
	})

	t.Run("Concurrent", func(t *testing.T) {
		rng := testutil.NewRNG(3)
		batch := make([]Sample, 64)
		for b := range batch {
			x := rng.SparseVector(8, 3)
			batch[b] = Sample{Indices: x.Index, Values: x.Value, Labels: rng.Labels(4, 2)}
		}

		for _, strict := range []bool{false, true} {
			opts := []Option{WithWorkers(8), WithSelection()}
			if strict {
				opts = append(opts, WithStrictLocking())
			}
			net := twoLayer(t, opts...)
			loss, err := net.Train(ctx, batch)
			require.NoError(t, err)
			assert.Greater(t, loss, float32(0))
		}
	})

	t.Run("ShortCircuit", func(t *testing.T) {
		metrics := &BasicMetricsCollector{}
		f := LayerFactoryFunc(func(spec LayerSpec, opts ...layer.Option) (layer.Layer, error) {
			if spec.Position == 0 {
				return deadLayer(spec.InputDim, spec.OutputDim)
			}
			return DenseFactory{}.NewLayer(spec, opts...)
		})
		net := twoLayer(t, WithLayerFactory(f), WithMetricsCollector(metrics), WithLearningRate(0.1))
		first := net.Layers()[0].Weight(0, 0)

		loss, err := net.Train(ctx, separable(4))
		require.NoError(t, err)
		assert.Greater(t, loss, float32(0))

		assert.Equal(t, int64(4), metrics.GetStats().ShortCircuits)
		assert.Equal(t, first, net.Layers()[0].Weight(0, 0))
	})

	t.Run("BatchTooLarge", func(t *testing.T) {
		metrics := &BasicMetricsCollector{}
		net := twoLayer(t, WithBatchSize(2), WithMetricsCollector(metrics))

		_, err := net.Train(ctx, separable(3))
		require.ErrorIs(t, err, ErrBatchTooLarge)
		assert.Equal(t, int64(1), metrics.GetStats().TrainErrors)
	})

	t.Run("NoLabels", func(t *testing.T) {
		net := twoLayer(t)
		batch := separable(2)
		batch[1].Labels = nil

		_, err := net.Train(ctx, batch)
		require.ErrorIs(t, err, ErrNoLabels)

		var sampleErr *ErrInvalidSample
		require.ErrorAs(t, err, &sampleErr)
		assert.Equal(t, 1, sampleErr.Sample)
	})

	t.Run("InvalidSample", func(t *testing.T) {
		cases := map[string]Sample{
			"Unsorted":     {Indices: []uint32{3, 1}, Values: []float32{1, 1}, Labels: []uint32{0}},
			"Duplicate":    {Indices: []uint32{1, 1}, Values: []float32{1, 1}, Labels: []uint32{0}},
			"LengthDiff":   {Indices: []uint32{1, 2}, Values: []float32{1}, Labels: []uint32{0}},
			"IndexRange":   {Indices: []uint32{8}, Values: []float32{1}, Labels: []uint32{0}},
			"LabelOfRange": {Indices: []uint32{1}, Values: []float32{1}, Labels: []uint32{4}},
		}
		for name, s := range cases {
			t.Run(name, func(t *testing.T) {
				net := twoLayer(t)
				_, err := net.Train(ctx, []Sample{s})
				var sampleErr *ErrInvalidSample
				require.ErrorAs(t, err, &sampleErr)
				assert.Equal(t, 0, sampleErr.Sample)
			})
		}
	})

	t.Run("LabelsNormalized", func(t *testing.T) {
		x := sparse.New([]uint32{1, 4}, []float32{0.5, 2})
		messy := twoLayer(t, WithWorkers(1))
		clean := twoLayer(t, WithWorkers(1))

		y, err := messy.Forward(x)
		require.NoError(t, err)
		p0, ok := y.Get(0)
		require.True(t, ok)
		p2, ok := y.Get(2)
		require.True(t, ok)
		want := -0.5 * float32(math.Log(float64(p0))+math.Log(float64(p2)))

		got, err := messy.Train(ctx, []Sample{{Indices: x.Index, Values: x.Value, Labels: []uint32{2, 0, 2}}})
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-5)

		ref, err := clean.Train(ctx, []Sample{{Indices: x.Index, Values: x.Value, Labels: []uint32{0, 2}}})
		require.NoError(t, err)
		assert.Equal(t, ref, got)
		assert.Equal(t, clean.Layers()[1].Weight(3, 2), messy.Layers()[1].Weight(3, 2))

		correct, err := messy.Predict(ctx, []Sample{{Indices: x.Index, Values: x.Value, Labels: []uint32{3, 1, 0, 2, 2}}})
		require.NoError(t, err)
		assert.Equal(t, 1, correct)
	})

	t.Run("Canceled", func(t *testing.T) {
		net := twoLayer(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := net.Train(cctx, separable(4))
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		net := twoLayer(t)
		loss, err := net.Train(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, loss)
	})
}

func TestPredict(t *testing.T) {
	ctx := context.Background()

	t.Run("UnlabeledCountsAsWrong", func(t *testing.T) {
		net := twoLayer(t)
		batch := separable(2)
		batch[0].Labels = nil

		correct, err := net.Predict(ctx, batch)
		require.NoError(t, err)
		assert.LessOrEqual(t, correct, 1)
	})

	t.Run("ArgMax", func(t *testing.T) {
		net := twoLayer(t)
		batch := separable(4)

		y, err := net.Forward(sparse.New(batch[2].Indices, batch[2].Values))
		require.NoError(t, err)
		require.Equal(t, 4, y.Len())

		best := 0
		for s := range y.Value {
			if y.Value[s] > y.Value[best] {
				best = s
			}
		}

		batch[2].Labels = []uint32{y.Index[best]}
		correct, err := net.Predict(ctx, batch[2:3])
		require.NoError(t, err)
		assert.Equal(t, 1, correct)
	})

	t.Run("EmptyActivation", func(t *testing.T) {
		f := LayerFactoryFunc(func(spec LayerSpec, _ ...layer.Option) (layer.Layer, error) {
			return deadLayer(spec.InputDim, spec.OutputDim)
		})
		net, err := New(8, []int{4}, []layer.Activation{layer.ReLU}, WithLayerFactory(f))
		require.NoError(t, err)

		_, err = net.Predict(ctx, separable(2))
		require.ErrorIs(t, err, ErrEmptyActivation)
	})

	t.Run("BatchTooLarge", func(t *testing.T) {
		net := twoLayer(t, WithBatchSize(1))
		_, err := net.Predict(ctx, separable(2))
		require.ErrorIs(t, err, ErrBatchTooLarge)
	})
}

func TestForwardRejectsInvalidInput(t *testing.T) {
	net := twoLayer(t)

	_, err := net.Forward(sparse.New([]uint32{2, 1}, []float32{1, 1}))
	var sampleErr *ErrInvalidSample
	require.ErrorAs(t, err, &sampleErr)

	_, err = net.Forward(sparse.New([]uint32{9}, []float32{1}))
	require.ErrorAs(t, err, &sampleErr)
}

func TestLearningRate(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewTextHandler(&buf, nil))
	net := twoLayer(t, WithLogger(logger))

	net.SetLearningRate(0.5)
	assert.InDelta(t, 0.5, net.LearningRate(), 1e-9)
	assert.InDelta(t, 0.5, net.Optimizer().LearningRate, 1e-9)
	assert.Contains(t, buf.String(), "learning rate changed")

	// a zero rate freezes the parameters
	net.SetLearningRate(0)
	before := net.Layers()[1].Weight(0, 0)
	_, err := net.Train(context.Background(), separable(4))
	require.NoError(t, err)
	assert.Equal(t, before, net.Layers()[1].Weight(0, 0))
}

func TestMarshalLayers(t *testing.T) {
	ctx := context.Background()
	src := twoLayer(t, WithLearningRate(0.1))
	_, err := src.Train(ctx, separable(4))
	require.NoError(t, err)

	blobs, err := src.MarshalLayers()
	require.NoError(t, err)
	require.Len(t, blobs, 2)

	dst := twoLayer(t, WithSeed(99))
	require.NoError(t, dst.UnmarshalLayers(blobs))

	x := sparse.New([]uint32{1, 4}, []float32{0.5, 2})
	want, err := src.Forward(x)
	require.NoError(t, err)
	got, err := dst.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.ErrorIs(t, dst.UnmarshalLayers(blobs[:1]), layer.ErrShapeMismatch)

	other, err := New(8, []int{8, 4}, []layer.Activation{layer.ReLU, layer.SoftMax})
	require.NoError(t, err)
	require.Error(t, other.UnmarshalLayers(blobs))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	net := twoLayer(t, WithLogger(logger))
	assert.Contains(t, buf.String(), "network built")
	assert.Contains(t, logLine(t, buf.String(), "layer built"), `"layer":0`)
	assert.Contains(t, logLine(t, buf.String(), "layer built"), `"kind":`)

	buf.Reset()
	_, err := net.Train(context.Background(), separable(2))
	require.NoError(t, err)
	assert.Contains(t, logLine(t, buf.String(), "train batch completed"), `"batch_size":2`)

	buf.Reset()
	_, err = net.Predict(context.Background(), separable(3)[:1])
	require.NoError(t, err)
	assert.Contains(t, logLine(t, buf.String(), "predict batch completed"), `"batch_size":1`)
}

// logLine returns the first JSON record whose message is msg.
func logLine(t *testing.T, out, msg string) string {
	t.Helper()

	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, `"msg":"`+msg+`"`) {
			return line
		}
	}

	t.Fatalf("no %q record in %s", msg, out)

	return ""
}

func TestNoopMetricsCollector(t *testing.T) {
	var mc MetricsCollector = NoopMetricsCollector{}
	mc.RecordTrainBatch(1, 1, 0, nil)
	mc.RecordPredictBatch(1, 1, 0, nil)
	mc.RecordShortCircuit(0)

	var stats BasicMetricsStats
	assert.Zero(t, stats.Accuracy())
}
