// Package quantization provides the codebook math behind vqnet's compressed layers.
//
// A Codebook holds M dictionaries of Ks centroids, each D floats wide, stored
// flat as [M, Ks, D]. Codes are uint8, so Ks is capped at 256.
//
// Three encoders map a weight vector onto a codebook:
//
//   - EncodeVQ: plain vector quantization, nearest centroid by squared L2.
//   - EncodeNVQ: norm-corrected VQ. The vector's L2 norm is kept as a scalar
//     and the normalized vector is quantized.
//   - EncodeRQ: residual quantization. Each stage quantizes what the previous
//     stages left over; a single norm rescales the reconstruction to the
//     original magnitude.
//
// All nearest-centroid searches break ties on the lowest index.
//
// # Training
//
// Codebooks are learned with k-means:
//
//	cb, err := quantization.TrainCodebook(ctx, data, dim, 256, 25)
//	cb = cb.Replicate(m) // share one dictionary across m sub-blocks
//
//	rq, err := quantization.TrainResidualCodebook(ctx, data, dim, stages, 256, 25)
//
// SyntheticCodebook and SyntheticResidualCodebook train on random unit
// vectors and are used to seed layers that have no data-driven codebook.
//
// # Memory
//
//	| Layer | Parameters                         |
//	|-------|------------------------------------|
//	| Dense | I*O floats                         |
//	| PQ    | M*Ks*(I/M) floats + O*M codes      |
//	| RQ    | M*Ks*I floats + O*M codes + O norms |
package quantization
