package vqnet

import "github.com/hupe1980/vqnet/layer"

// LayerSpec describes one layer of a network under construction.
type LayerSpec struct {
	Position   int
	InputDim   int
	OutputDim  int
	Activation layer.Activation
}

// LayerFactory builds the layer at a given position.
type LayerFactory interface {
	NewLayer(spec LayerSpec, opts ...layer.Option) (layer.Layer, error)
}

// LayerFactoryFunc adapts a function to LayerFactory.
type LayerFactoryFunc func(spec LayerSpec, opts ...layer.Option) (layer.Layer, error)

// NewLayer calls f.
func (f LayerFactoryFunc) NewLayer(spec LayerSpec, opts ...layer.Option) (layer.Layer, error) {
	return f(spec, opts...)
}

// DenseFactory builds uncompressed layers.
type DenseFactory struct{}

// NewLayer implements LayerFactory.
func (DenseFactory) NewLayer(spec LayerSpec, opts ...layer.Option) (layer.Layer, error) {
	return layer.NewDense(spec.InputDim, spec.OutputDim, spec.Activation, opts...)
}

// ThresholdFactory builds a compressed layer of Kind once either dimension
// reaches Threshold and a dense layer otherwise. Options are appended to
// the compressed layer's options.
type ThresholdFactory struct {
	Kind      layer.Kind
	Threshold int
	Options   []layer.Option
}

// NewLayer implements LayerFactory.
func (f ThresholdFactory) NewLayer(spec LayerSpec, opts ...layer.Option) (layer.Layer, error) {
	if spec.InputDim < f.Threshold && spec.OutputDim < f.Threshold {
		return layer.NewDense(spec.InputDim, spec.OutputDim, spec.Activation, opts...)
	}
	all := append(append([]layer.Option(nil), opts...), f.Options...)
	return layer.New(f.Kind, spec.InputDim, spec.OutputDim, spec.Activation, all...)
}
