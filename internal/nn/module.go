// Package nn holds the trainable bilateral filter and what is needed to fit
// it: parameters, a module interface, the MSE loss and checkpoints.
package nn

import (
	"github.com/born-ml/bilateral/internal/tensor"
)

// Module is a trainable component.
//
// Forward returns an error because the dispatcher can reject a call, for
// instance a GPU-resident input with more channels than the shaders hold.
type Module[B tensor.Backend] interface {
	Forward(input *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error)
	Parameters() []*Parameter[B]
}
