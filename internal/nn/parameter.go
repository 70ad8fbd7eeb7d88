package nn

import (
	"github.com/born-ml/bilateral/internal/tensor"
)

// Parameter is a named float32 tensor that an optimizer updates in place.
// The filter's parameters are its four sigmas, each of shape [1].
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
	grad   *tensor.Tensor[float32, B]
}

// NewParameter wraps t under name. The name is also the parameter's key in
// a state dict, e.g. "bilateral.sigma_r".
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string { return p.name }

// Tensor returns the parameter tensor. Its raw tensor is the key of the
// parameter's entry in a gradient map.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] { return p.tensor }

// Grad returns the stored gradient, nil until one is set.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] { return p.grad }

// SetGrad stores a gradient.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) { p.grad = grad }

// ZeroGrad drops the stored gradient.
func (p *Parameter[B]) ZeroGrad() { p.grad = nil }

// Value returns the first element, the whole value of a scalar parameter.
func (p *Parameter[B]) Value() float32 { return p.tensor.Data()[0] }

// Set overwrites every element with v.
func (p *Parameter[B]) Set(v float32) {
	data := p.tensor.Data()
	for i := range data {
		data[i] = v
	}
}

// Clamp raises every element below minimum to minimum.
func (p *Parameter[B]) Clamp(minimum float32) {
	data := p.tensor.Data()
	for i, v := range data {
		if v < minimum {
			data[i] = minimum
		}
	}
}
