package nn

import (
	"fmt"

	"github.com/born-ml/bilateral/internal/tensor"
)

// MSELoss computes Mean Squared Error loss.
//
// Loss = mean((predictions - targets)²)
//
// The loss is assembled from backend operations, so on an autodiff backend
// it is recorded on the tape and gradients flow back into the predictions.
//
// Example:
//
//	mse := nn.NewMSELoss(backend)
//	denoised, err := filter.Forward(noisy)
//	loss := mse.Forward(denoised, clean)
type MSELoss[B tensor.Backend] struct {
	backend B
}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return &MSELoss[B]{
		backend: backend,
	}
}

// Forward computes the MSE loss and returns a tensor of shape [1].
//
// Panics if predictions and targets have different shapes.
func (m *MSELoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic(fmt.Sprintf("MSELoss: predictions %v and targets %v must have the same shape",
			predictions.Shape(), targets.Shape()))
	}

	diff := predictions.Sub(targets)
	return diff.Mul(diff).Mean()
}

// Parameters returns an empty slice (loss functions have no trainable parameters).
func (m *MSELoss[B]) Parameters() []*Parameter[B] {
	return nil
}
