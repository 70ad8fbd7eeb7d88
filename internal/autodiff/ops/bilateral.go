package ops

import (
	"github.com/pkg/errors"

	"github.com/born-ml/bilateral/internal/bilateral"
	"github.com/born-ml/bilateral/internal/tensor"
)

// BilateralKernel runs the bilateral filter passes. The dispatcher satisfies
// it, so the op is routed to CPU or GPU exactly like a direct call.
type BilateralKernel interface {
	Forward(input *tensor.RawTensor, s bilateral.Sigmas) (*bilateral.ForwardResult, error)
	Backward(args *bilateral.BackwardArgs, s bilateral.Sigmas) (*tensor.RawTensor, error)
}

// BilateralFilterOp records one bilateral filter application.
//
// Inputs are [input, sigma_x, sigma_y, sigma_z, sigma_r], sigmas of shape [1].
//
// Backward:
//   - grad_input = kernel backward pass (gather over the filter window)
//   - grad_sigma = sum(outputGrad * dO/dsigma) for each of the four sigmas
type BilateralFilterOp struct {
	inputs []*tensor.RawTensor
	kernel BilateralKernel
	sigmas bilateral.Sigmas
	saved  *bilateral.ForwardResult
}

// NewBilateralFilterOp creates the op from a completed forward pass.
func NewBilateralFilterOp(
	kernel BilateralKernel,
	input, sigmaX, sigmaY, sigmaZ, sigmaR *tensor.RawTensor,
	s bilateral.Sigmas,
	saved *bilateral.ForwardResult,
) *BilateralFilterOp {
	return &BilateralFilterOp{
		inputs: []*tensor.RawTensor{input, sigmaX, sigmaY, sigmaZ, sigmaR},
		kernel: kernel,
		sigmas: s,
		saved:  saved,
	}
}

// SigmasFrom reads the four one-element sigma tensors.
func SigmasFrom(sigmaX, sigmaY, sigmaZ, sigmaR *tensor.RawTensor) bilateral.Sigmas {
	return bilateral.Sigmas{
		X:     ScalarValue(sigmaX),
		Y:     ScalarValue(sigmaY),
		Z:     ScalarValue(sigmaZ),
		Color: ScalarValue(sigmaR),
	}
}

// Backward computes gradients for the input and the four sigmas.
// Kernel failures panic, as with any other backend failure during backward.
func (op *BilateralFilterOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradInput, err := op.kernel.Backward(&bilateral.BackwardArgs{
		GradOutput:    outputGrad,
		Input:         op.inputs[0],
		Output:        op.saved.Output,
		OutputWeights: op.saved.OutputWeights,
		DODX:          op.saved.DODX,
	}, op.sigmas)
	if err != nil {
		panic(errors.WithMessage(err, "bilateral filter backward"))
	}

	grads := []*tensor.RawTensor{gradInput, nil, nil, nil, nil}
	for i := 0; i < 4; i++ {
		sigma := op.inputs[i+1]
		g := backend.Sum(backend.Mul(outputGrad, op.saved.SigmaGradient(i)))
		grads[i+1] = backend.Reshape(g, sigma.Shape())
	}
	return grads
}

// Inputs returns [input, sigma_x, sigma_y, sigma_z, sigma_r].
func (op *BilateralFilterOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the filtered tensor.
func (op *BilateralFilterOp) Output() *tensor.RawTensor {
	return op.saved.Output
}

// Saved returns the forward pass tensors kept for the backward pass.
func (op *BilateralFilterOp) Saved() *bilateral.ForwardResult {
	return op.saved
}
