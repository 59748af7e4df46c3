package vqnet

import (
	"math"
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the metric
// package ships a Prometheus implementation.
type MetricsCollector interface {
	// RecordTrainBatch is called after each Train call.
	// size is the number of samples, loss the summed batch loss,
	// err is nil if successful.
	RecordTrainBatch(size int, loss float32, duration time.Duration, err error)

	// RecordPredictBatch is called after each Predict call.
	RecordPredictBatch(size, correct int, duration time.Duration, err error)

	// RecordShortCircuit is called when backpropagation of a sample stops
	// early because the gradient became empty. layer is the position of the
	// first layer that was skipped.
	RecordShortCircuit(layer int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordTrainBatch(int, float32, time.Duration, error) {}
func (NoopMetricsCollector) RecordPredictBatch(int, int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordShortCircuit(int)                              {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	TrainBatches      atomic.Int64
	TrainSamples      atomic.Int64
	TrainErrors       atomic.Int64
	TrainTotalNanos   atomic.Int64
	PredictBatches    atomic.Int64
	PredictSamples    atomic.Int64
	PredictCorrect    atomic.Int64
	PredictErrors     atomic.Int64
	PredictTotalNanos atomic.Int64
	ShortCircuits     atomic.Int64
	lastLoss          atomic.Uint32
}

// RecordTrainBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTrainBatch(size int, loss float32, duration time.Duration, err error) {
	b.TrainBatches.Add(1)
	b.TrainTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.TrainErrors.Add(1)
		return
	}
	b.TrainSamples.Add(int64(size))
	b.lastLoss.Store(math.Float32bits(loss))
}

// RecordPredictBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPredictBatch(size, correct int, duration time.Duration, err error) {
	b.PredictBatches.Add(1)
	b.PredictTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PredictErrors.Add(1)
		return
	}
	b.PredictSamples.Add(int64(size))
	b.PredictCorrect.Add(int64(correct))
}

// RecordShortCircuit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordShortCircuit(int) {
	b.ShortCircuits.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		TrainBatches:    b.TrainBatches.Load(),
		TrainSamples:    b.TrainSamples.Load(),
		TrainErrors:     b.TrainErrors.Load(),
		TrainAvgNanos:   avg(b.TrainTotalNanos.Load(), b.TrainBatches.Load()),
		LastLoss:        math.Float32frombits(b.lastLoss.Load()),
		PredictBatches:  b.PredictBatches.Load(),
		PredictSamples:  b.PredictSamples.Load(),
		PredictCorrect:  b.PredictCorrect.Load(),
		PredictErrors:   b.PredictErrors.Load(),
		PredictAvgNanos: avg(b.PredictTotalNanos.Load(), b.PredictBatches.Load()),
		ShortCircuits:   b.ShortCircuits.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	TrainBatches    int64
	TrainSamples    int64
	TrainErrors     int64
	TrainAvgNanos   int64
	LastLoss        float32
	PredictBatches  int64
	PredictSamples  int64
	PredictCorrect  int64
	PredictErrors   int64
	PredictAvgNanos int64
	ShortCircuits   int64
}

// Accuracy returns PredictCorrect / PredictSamples.
func (s BasicMetricsStats) Accuracy() float64 {
	if s.PredictSamples == 0 {
		return 0
	}
	return float64(s.PredictCorrect) / float64(s.PredictSamples)
}
