// Package autodiff implements automatic differentiation using the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation (CPU, WebGPU, mock) and
// adds gradient tracking through a GradientTape. The bilateral filter is
// recorded through BilateralFilter, which routes both passes through the
// dispatcher.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	out, err := backend.BilateralFilter(dispatcher, x, sx, sy, sz, sr)
//	loss := backend.Sum(out)
//	grads := backend.Tape().Backward(ones, backend)
package autodiff

import (
	"github.com/born-ml/bilateral/internal/autodiff/ops"
	"github.com/born-ml/bilateral/internal/tensor"
)

// AutodiffBackend decorates a Backend with a GradientTape. Arithmetic is
// delegated to the wrapped backend and recorded when the tape is on.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New wraps backend. The tape starts out not recording.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{inner: backend, tape: NewGradientTape()}
}

// Tape returns the gradient tape.
func (b *AutodiffBackend[B]) Tape() *GradientTape { return b.tape }

// Inner returns the wrapped backend.
func (b *AutodiffBackend[B]) Inner() B { return b.inner }

// Name returns "Autodiff(<inner>)".
func (b *AutodiffBackend[B]) Name() string { return "Autodiff(" + b.inner.Name() + ")" }

// Device returns the device of the wrapped backend.
func (b *AutodiffBackend[B]) Device() tensor.Device { return b.inner.Device() }

func (b *AutodiffBackend[B]) recorded(result *tensor.RawTensor, op ops.Operation) *tensor.RawTensor {
	b.tape.Record(op)
	return result
}

// Add returns a + c.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	r := b.inner.Add(a, c)
	return b.recorded(r, ops.NewAddOp(a, c, r))
}

// Sub returns a - c.
func (b *AutodiffBackend[B]) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	r := b.inner.Sub(a, c)
	return b.recorded(r, ops.NewSubOp(a, c, r))
}

// Mul returns the element-wise product a * c.
func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	r := b.inner.Mul(a, c)
	return b.recorded(r, ops.NewMulOp(a, c, r))
}

// MulScalar returns x * scalar.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	r := b.inner.MulScalar(x, scalar)
	return b.recorded(r, ops.NewMulScalarOp(x, r, scalar))
}

// Sum reduces x to shape [1].
func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	r := b.inner.Sum(x)
	return b.recorded(r, ops.NewSumOp(x, r))
}

// Reshape records the shape change so a gradient reaches t even when the
// wrapped backend returns a copy.
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	r := b.inner.Reshape(t, newShape)
	return b.recorded(r, ops.NewReshapeOp(t, r))
}

// BilateralFilter filters input with the sigmas held by four one-element
// tensors and records the operation, making the result differentiable in
// the input and in every sigma.
//
// The forward pass goes through kernel (normally a *dispatch.Dispatcher), so
// GPU limits are enforced before anything runs. On error nothing is recorded.
func (b *AutodiffBackend[B]) BilateralFilter(
	kernel ops.BilateralKernel,
	input, sigmaX, sigmaY, sigmaZ, sigmaR *tensor.RawTensor,
) (*tensor.RawTensor, error) {
	s := ops.SigmasFrom(sigmaX, sigmaY, sigmaZ, sigmaR)
	res, err := kernel.Forward(input, s)
	if err != nil {
		return nil, err
	}
	b.tape.Record(ops.NewBilateralFilterOp(kernel, input, sigmaX, sigmaY, sigmaZ, sigmaR, s, res))
	return res.Output, nil
}
