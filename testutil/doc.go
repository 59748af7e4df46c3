// Package testutil provides testing utilities for vqnet.
//
// This package is intended for use in tests and benchmarks only.
// It provides seeded random generators for dense and sparse data and a
// slow reference forward pass that checks compressed layers against
// their effective weights.
//
// # Random Data
//
//	rng := testutil.NewRNG(seed)
//	vec := make([]float32, 128)
//	rng.FillUniform(vec)             // uniform [0, 1)
//	x := rng.SparseVector(1000, 20)  // 20 sorted indices below 1000, values in (0, 1]
//	labels := rng.Labels(100, 3)     // 3 distinct sorted labels below 100
//
// # Reference Forward
//
//	want := testutil.ReferenceForward(l, x, testutil.ForwardReLU, 0)
package testutil
