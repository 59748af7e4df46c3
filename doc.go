// Package vqnet trains sparse feed-forward classifiers whose weight
// matrices may be compressed with learned codebooks.
//
// A Network is a chain of layers from package layer. Inputs and
// activations are sparse vectors; the final SoftMax layer can route its
// outputs through a Top-K selector so only the strongest classes survive.
//
// # Quick Start
//
//	net, _ := vqnet.New(784, []int{128, 10},
//	    []layer.Activation{layer.ReLU, layer.SoftMax},
//	    vqnet.WithLearningRate(1e-3),
//	)
//
//	loss, _ := net.Train(ctx, batch)
//	correct, _ := net.Predict(ctx, batch)
//
// # Compressed Layers
//
// A LayerFactory decides how each layer stores its weights. ThresholdFactory
// compresses every layer with at least one large dimension:
//
//	factory := vqnet.ThresholdFactory{
//	    Kind:      layer.KindPQ,
//	    Threshold: 1024,
//	    Options:   []layer.Option{layer.WithNormCorrection(true)},
//	}
//	net, _ := vqnet.New(dim, sizes, acts, vqnet.WithLayerFactory(factory))
//
// # Concurrency
//
// Train and Predict process the samples of a batch on up to WithWorkers
// goroutines. Parameter updates are lock-free by default: concurrent
// samples may read weights that another sample is updating. Use
// WithStrictLocking to serialize access per weight row.
//
// # Observability
//
// Logging goes through log/slog (see WithLogger) and operational metrics
// through a MetricsCollector (see WithMetricsCollector and package metric).
package vqnet
