// Package sparse provides the sparse vector container that flows between layers.
//
// A Vector is a pair of parallel slices holding strictly ascending indices and
// their values. Every algorithm that merges two vectors (the loss module, the
// quantized backward passes) relies on the ascending order, so producers must
// preserve it:
//
//	var v sparse.Vector
//	v.Reserve(3)
//	v.Push(1, 0.3)
//	v.Push(4, 0.2)
//
// Push does not check the order; IsSorted can be used at trust boundaries.
package sparse
