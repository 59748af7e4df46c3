package testutil

import (
	"math"

	"github.com/hupe1980/vqnet/queue"
	"github.com/hupe1980/vqnet/sparse"
)

// WeightReader exposes the effective parameters of a layer.
type WeightReader interface {
	InputDim() int
	OutputDim() int
	Weight(i, o int) float32
	Bias(o int) float32
}

// ForwardMode selects the activation of ReferenceForward.
type ForwardMode int

const (
	// ForwardLinear returns every pre-activation.
	ForwardLinear ForwardMode = iota
	// ForwardReLU keeps strictly positive pre-activations.
	ForwardReLU
	// ForwardSoftMax normalizes the (Top-K selected when topK > 0) pre-activations.
	ForwardSoftMax
)

// Preactivations computes b + xW one weight at a time.
func Preactivations(l WeightReader, x sparse.Vector) []float32 {
	pre := make([]float32, l.OutputDim())
	for o := range pre {
		sum := l.Bias(o)
		for s, i := range x.Index {
			sum += x.Value[s] * l.Weight(int(i), o)
		}
		pre[o] = sum
	}
	return pre
}

// ReferenceForward is the slow, Weight-based forward pass.
func ReferenceForward(l WeightReader, x sparse.Vector, mode ForwardMode, topK int) sparse.Vector {
	pre := Preactivations(l, x)

	switch mode {
	case ForwardReLU:
		var y sparse.Vector
		for o, v := range pre {
			if v > 0 {
				y.Push(uint32(o), v)
			}
		}
		return y
	case ForwardSoftMax:
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

		maxV := math.Inf(-1)
		for _, v := range y.Value {
			maxV = math.Max(maxV, float64(v))
		}
		var sum float64
		for s, v := range y.Value {
			e := math.Exp(float64(v) - maxV)
			y.Value[s] = float32(e)
			sum += e
		}
		for s := range y.Value {
			y.Value[s] = float32(float64(y.Value[s]) / sum)
		}
		return y
	default:
		return sparse.FromDense(pre)
	}
}

// ReferenceGradient computes gx_i = Σ_o g_o W[i, o] over x's index set.
func ReferenceGradient(l WeightReader, g, x sparse.Vector) sparse.Vector {
	gx := x.WithValues()
	for s, i := range x.Index {
		var sum float32
		for t, o := range g.Index {
			sum += g.Value[t] * l.Weight(int(i), int(o))
		}
		gx.Value[s] = sum
	}
	return gx
}
