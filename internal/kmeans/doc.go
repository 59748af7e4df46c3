// Package kmeans implements k-means clustering for codebook training.
//
// Train runs Lloyd's algorithm with a fixed iteration count. The first k
// rows seed the centroids; assignment is parallel across row chunks and
// recentering is sequential. Clusters that end an iteration empty are
// reseeded with a random data row. TrainResidual chains Train over the
// running residual to produce multi-stage residual codebooks.
package kmeans
