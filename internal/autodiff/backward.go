package autodiff

import (
	"fmt"

	"github.com/born-ml/bilateral/internal/autodiff/ops"
	"github.com/born-ml/bilateral/internal/tensor"
)

// BackwardCapable is a backend that owns a gradient tape.
// AutodiffBackend implements it.
type BackwardCapable interface {
	tensor.Backend
	GetTape() *GradientTape
}

// GetTape implements BackwardCapable.
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward seeds t with ones and replays the backend's tape. For a [1] loss
// the result maps every recorded tensor x to dLoss/dx.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss := mse.Forward(filtered, target)
//	grads := autodiff.Backward(loss, backend)
//	gSigma := grads[filter.SigmaColor.Tensor().Raw()]
//
// Panics when nothing was recorded or t is not a float tensor.
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}
	if dt := t.DType(); dt != tensor.Float32 && dt != tensor.Float64 {
		panic(fmt.Sprintf("backward: unsupported dtype %s (only float32/float64 supported)", dt))
	}
	return tape.Backward(ops.Filled(t.Shape(), t.DType(), 1, backend), backend)
}
