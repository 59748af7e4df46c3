// Package loss implements the soft-max cross-entropy loss over sparse
// probability vectors and sorted label sets.
package loss

import (
	"math"

	"github.com/hupe1980/vqnet/sparse"
)

// SoftmaxCrossEntropy returns the gradient of the cross-entropy with respect
// to the pre-softmax outputs and the loss value. p must be a probability
// vector with ascending indices, labels must be ascending and unique.
//
// Every label carries target mass 1/|labels|. The gradient is the linear
// merge of both sets: p_i - 1/|y| where both are present, p_i where only p
// is, and -1/|y| where only the label is. Labels missing from p contribute
// to the gradient but not to the loss.
func SoftmaxCrossEntropy(p sparse.Vector, labels []uint32) (sparse.Vector, float32) {
	var g sparse.Vector
	if len(labels) == 0 {
		g = p.Clone()
		return g, 0
	}

	target := 1 / float32(len(labels))
	g.Reserve(p.Len() + len(labels))

	var loss float32
	i, j := 0, 0
	for i < len(p.Index) && j < len(labels) {
		switch {
		case p.Index[i] == labels[j]:
			g.Push(p.Index[i], p.Value[i]-target)
			loss -= target * float32(math.Log(float64(p.Value[i])))
			i++
			j++
		case p.Index[i] < labels[j]:
			g.Push(p.Index[i], p.Value[i])
			i++
		default:
			g.Push(labels[j], -target)
			j++
		}
	}
	for ; i < len(p.Index); i++ {
		g.Push(p.Index[i], p.Value[i])
	}
	for ; j < len(labels); j++ {
		g.Push(labels[j], -target)
	}

	return g, loss
}
