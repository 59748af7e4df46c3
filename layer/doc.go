// Package layer implements sparse fully-connected layers whose weight
// matrices may be stored compressed.
//
// Every layer maps a sparse input x of dimension I to activation(xW + b)
// of dimension O. The weight representation is chosen per layer:
//
//	| Kind   | Storage                            | Backward re-encodes        |
//	|--------|------------------------------------|----------------------------|
//	| Dense  | I*O floats                         | -                          |
//	| PQ     | M codebooks of I/M, O*M codes      | touched blocks per output  |
//	| VQ     | one codebook of I/M, O*M codes     | touched blocks per output  |
//	| CPQ    | M codebooks of O/M, I*M codes      | touched blocks per input   |
//	| RQ     | M stage codebooks of I, O*M codes  | full column per output     |
//	| Hashed | S buckets                          | -                          |
//
// Compressed layers compute their forward pass through a lookup table
// built once per sample, so the cost is bounded by the number of centroids
// rather than by I*O. Codebooks are frozen during training; only codes and
// norms change.
//
// # Usage
//
//	l, err := layer.NewProductQuantized(784, 1024, layer.ReLU,
//	    layer.WithSubquantizers(4),
//	    layer.WithNormCorrection(true),
//	)
//	y := l.Forward(x)
//	gx, err := l.Backward(g, x, &layer.Optimizer{LearningRate: 1e-3}, true)
//
// # Concurrency
//
// Forward and Backward are safe to call from many goroutines. Updates are
// lock-free by default, which lets concurrent samples overwrite each
// other's steps. WithStrictLocking stripes RWMutexes over parameter rows
// (outputs for PQ, VQ and RQ; inputs for Dense and CPQ; buckets for Hashed).
package layer
