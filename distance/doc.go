// Package distance provides the vector arithmetic used by codebook search.
//
// Nearest-centroid search throughout the module uses squared Euclidean
// distance, with ties broken by the lowest centroid index.
//
// # Usage
//
//	dist := distance.SquaredL2(a, b)
//	sim := distance.Dot(a, b)
//	norm, ok := distance.NormalizeL2InPlace(vec)
//	code, dist := distance.Nearest(vec, centroids, dim)
package distance
