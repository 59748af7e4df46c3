package layer

import (
	"fmt"
	"math"

	"github.com/hupe1980/vqnet/queue"
	"github.com/hupe1980/vqnet/sparse"
)

// Activation is the non-linearity applied to a layer's pre-activations.
type Activation uint8

const (
	// ReLU keeps strictly positive pre-activations only.
	ReLU Activation = iota
	// SoftMax normalizes the (optionally Top-K selected) pre-activations
	// into a probability distribution.
	SoftMax
)

// String returns the activation name.
func (a Activation) String() string {
	switch a {
	case ReLU:
		return "relu"
	case SoftMax:
		return "softmax"
	default:
		return fmt.Sprintf("Activation(%d)", uint8(a))
	}
}

// DefaultTopK returns the selection capacity used for an output width of o.
func DefaultTopK(o int) int {
	return 10 + o/10
}

func relu(pre []float32) sparse.Vector {
	var y sparse.Vector
	for o, v := range pre {
		if v > 0 {
			y.Push(uint32(o), v)
		}
	}
	return y
}

func softmax(pre []float32, topK int) sparse.Vector {
	var y sparse.Vector
	if topK > 0 {
		sel := queue.NewSelector(topK)
		for o, v := range pre {
			sel.Insert(uint32(o), v)
		}
		y = sel.Select()
	} else {
		y = sparse.FromDense(pre)
	}

	maxV := float32(math.Inf(-1))
	for _, v := range y.Value {
		if v > maxV {
			maxV = v
		}
	}

	var sum float32
	for s, v := range y.Value {
		e := float32(math.Exp(float64(v - maxV)))
		y.Value[s] = e
		sum += e
	}
	for s := range y.Value {
		y.Value[s] /= sum
	}

	return y
}
