package quantization

import (
	"fmt"
	"math"

	"github.com/hupe1980/vqnet/distance"
	"github.com/hupe1980/vqnet/internal/math32"
)

// EncodeVQ returns the code of the centroid in dict (flat [Ks, len(vec)])
// nearest to vec.
func EncodeVQ(vec, dict []float32) uint8 {
	code, _ := distance.Nearest(vec, dict, len(vec))
	return uint8(code)
}

// EncodeNVQ quantizes the direction of vec and returns its L2 norm as the
// correction factor, so that vec ≈ norm * dict[code].
func EncodeNVQ(vec, dict []float32) (uint8, float32, error) {
	dim := len(vec)
	norm := distance.Norm(vec)
	if norm == 0 || math.IsNaN(float64(norm)) {
		return 0, 0, ErrZeroNorm
	}
	inv := 1 / norm

	best := 0
	minDist := float32(math.MaxFloat32)
	for k := 0; k < len(dict)/dim; k++ {
		c := dict[k*dim : (k+1)*dim]
		var d float32
		for i, v := range vec {
			diff := v*inv - c[i]
			d += diff * diff
		}
		if d < minDist {
			minDist = d
			best = k
		}
	}

	return uint8(best), norm, nil
}

// EncodeRQ writes one code per stage of cb into codes and returns the norm
// correction. vec is normalized, each stage picks the centroid nearest to the
// running residual, and the norm is ‖vec‖ / ‖reconstruction‖. scratch must
// hold cb.D floats.
func EncodeRQ(vec []float32, cb *Codebook, codes []uint8, scratch []float32) (float32, error) {
	if len(vec) != cb.D || len(codes) != cb.M || len(scratch) < cb.D {
		return 0, fmt.Errorf("quantization: rq shape mismatch: vec=%d codes=%d d=%d m=%d", len(vec), len(codes), cb.D, cb.M)
	}

	residual := scratch[:cb.D]
	copy(residual, vec)

	norm, ok := distance.NormalizeL2InPlace(residual)
	if !ok {
		return 0, ErrZeroNorm
	}
	inv := 1 / norm

	for m := 0; m < cb.M; m++ {
		code, _ := distance.Nearest(residual, cb.Dictionary(m), cb.D)
		codes[m] = uint8(code)
		math32.Sub(residual, cb.Centroid(m, code))
	}

	// reconstruction = vec/‖vec‖ - final residual
	var recon2 float32
	for i, v := range vec {
		r := v*inv - residual[i]
		recon2 += r * r
	}
	if recon2 == 0 {
		return 0, ErrZeroNorm
	}

	return norm / math32.Sqrt(recon2), nil
}

// DecodeRQ writes norm * Σ_m centroid[m, codes[m]] into dst.
func DecodeRQ(cb *Codebook, codes []uint8, norm float32, dst []float32) {
	clear(dst)
	for m, code := range codes {
		math32.Axpy(1, cb.Centroid(m, int(code)), dst)
	}
	math32.ScaleInPlace(dst, norm)
}
