package metric

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vqnet"
	"github.com/hupe1980/vqnet/layer"
)

func TestPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg, "vqnet")
	require.NoError(t, err)

	p.RecordTrainBatch(10, 2.5, time.Millisecond, nil)
	p.RecordTrainBatch(4, 9, time.Millisecond, errors.New("boom"))
	p.RecordPredictBatch(8, 6, time.Millisecond, nil)
	p.RecordShortCircuit(0)
	p.RecordShortCircuit(0)
	p.RecordShortCircuit(12)

	assert.InDelta(t, 10, promtest.ToFloat64(p.samples.WithLabelValues("train")), 1e-9)
	assert.InDelta(t, 8, promtest.ToFloat64(p.samples.WithLabelValues("predict")), 1e-9)
	assert.InDelta(t, 1, promtest.ToFloat64(p.batches.WithLabelValues("train", "ok")), 1e-9)
	assert.InDelta(t, 1, promtest.ToFloat64(p.batches.WithLabelValues("train", "error")), 1e-9)
	assert.InDelta(t, 6, promtest.ToFloat64(p.correct), 1e-9)
	assert.InDelta(t, 2.5, promtest.ToFloat64(p.loss), 1e-9)
	assert.InDelta(t, 2, promtest.ToFloat64(p.shortCircuits.WithLabelValues("0")), 1e-9)
	assert.InDelta(t, 1, promtest.ToFloat64(p.shortCircuits.WithLabelValues("12")), 1e-9)

	assert.Equal(t, 3, promtest.CollectAndCount(p.latency))
}

func TestPrometheusDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg, "vqnet")
	require.NoError(t, err)

	_, err = NewPrometheus(reg, "vqnet")
	require.Error(t, err)
}

func TestPrometheusWithNetwork(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg, "test")
	require.NoError(t, err)

	net, err := vqnet.New(4, []int{3}, []layer.Activation{layer.SoftMax}, vqnet.WithMetricsCollector(p))
	require.NoError(t, err)

	batch := []vqnet.Sample{
		{Indices: []uint32{0, 2}, Values: []float32{1, 0.5}, Labels: []uint32{1}},
		{Indices: []uint32{3}, Values: []float32{2}, Labels: []uint32{2}},
	}

	_, err = net.Train(context.Background(), batch)
	require.NoError(t, err)
	_, err = net.Predict(context.Background(), batch)
	require.NoError(t, err)

	assert.InDelta(t, 2, promtest.ToFloat64(p.samples.WithLabelValues("train")), 1e-9)
	assert.InDelta(t, 2, promtest.ToFloat64(p.samples.WithLabelValues("predict")), 1e-9)
	assert.Greater(t, promtest.ToFloat64(p.loss), 0.0)
}
