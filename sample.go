package vqnet

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vqnet/sparse"
)

// Sample is one input vector with its label set. Indices must be strictly
// ascending and below the network's input dimension. Labels may be in any
// order and may repeat.
type Sample struct {
	Indices []uint32
	Values  []float32
	Labels  []uint32
}

type prepared struct {
	x      sparse.Vector
	labels []uint32
	set    *roaring.Bitmap
}

func (n *Network) prepare(batch []Sample, requireLabels bool) ([]prepared, error) {
	if len(batch) > n.batchSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(batch), n.batchSize)
	}

	out := make([]prepared, len(batch))
	classes := uint32(n.sizes[len(n.sizes)-1])

	for b, s := range batch {
		x := sparse.New(s.Indices, s.Values)
		if !x.IsSorted() {
			return nil, &ErrInvalidSample{Sample: b, Reason: "indices must be strictly ascending with one value each"}
		}
		if l := len(s.Indices); l > 0 && int(s.Indices[l-1]) >= n.inputDim {
			return nil, &ErrInvalidSample{Sample: b, Reason: fmt.Sprintf("index %d out of range [0, %d)", s.Indices[l-1], n.inputDim)}
		}
		if requireLabels && len(s.Labels) == 0 {
			return nil, &ErrInvalidSample{Sample: b, Reason: "no labels", cause: ErrNoLabels}
		}

		set := roaring.BitmapOf(s.Labels...)
		if !set.IsEmpty() && set.Maximum() >= classes {
			return nil, &ErrInvalidSample{Sample: b, Reason: fmt.Sprintf("label %d out of range [0, %d)", set.Maximum(), classes)}
		}

		out[b] = prepared{x: x, labels: set.ToArray(), set: set}
	}

	return out, nil
}
