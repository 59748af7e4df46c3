// Package metric exports network training and inference metrics to
// Prometheus.
package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/vqnet"
)

var _ vqnet.MetricsCollector = (*Prometheus)(nil)

// Prometheus is a vqnet.MetricsCollector backed by Prometheus collectors.
type Prometheus struct {
	latency       *prometheus.HistogramVec
	samples       *prometheus.CounterVec
	batches       *prometheus.CounterVec
	correct       prometheus.Counter
	loss          prometheus.Gauge
	shortCircuits *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &Prometheus{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of Train and Predict batches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Samples processed by successful batches",
		}, []string{"op"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches processed",
		}, []string{"op", "status"}),
		correct: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predict_correct_total",
			Help:      "Samples whose prediction hit a label",
		}),
		loss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "train_loss",
			Help:      "Summed loss of the last successful training batch",
		}),
		shortCircuits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backward_short_circuits_total",
			Help:      "Samples whose backward pass stopped on an empty gradient",
		}, []string{"layer"}),
	}

	for _, c := range []prometheus.Collector{p.latency, p.samples, p.batches, p.correct, p.loss, p.shortCircuits} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// RecordTrainBatch implements vqnet.MetricsCollector.
func (p *Prometheus) RecordTrainBatch(size int, loss float32, duration time.Duration, err error) {
	st := status(err)
	p.latency.WithLabelValues("train", st).Observe(duration.Seconds())
	p.batches.WithLabelValues("train", st).Inc()
	if err != nil {
		return
	}
	p.samples.WithLabelValues("train").Add(float64(size))
	p.loss.Set(float64(loss))
}

// RecordPredictBatch implements vqnet.MetricsCollector.
func (p *Prometheus) RecordPredictBatch(size, correct int, duration time.Duration, err error) {
	st := status(err)
	p.latency.WithLabelValues("predict", st).Observe(duration.Seconds())
	p.batches.WithLabelValues("predict", st).Inc()
	if err != nil {
		return
	}
	p.samples.WithLabelValues("predict").Add(float64(size))
	p.correct.Add(float64(correct))
}

// RecordShortCircuit implements vqnet.MetricsCollector.
func (p *Prometheus) RecordShortCircuit(layer int) {
	p.shortCircuits.WithLabelValues(strconv.Itoa(layer)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
