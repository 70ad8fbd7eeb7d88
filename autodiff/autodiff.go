// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// It wraps any backend with a gradient tape. Besides the element-wise
// operations, the tape records the bilateral filter itself, so gradients
// flow to the input volume and to all four sigmas.
//
// Example:
//
//	import (
//	    "github.com/born-ml/bilateral/autodiff"
//	    "github.com/born-ml/bilateral/backend/cpu"
//	    "github.com/born-ml/bilateral/bilateral"
//	    "github.com/born-ml/bilateral/nn"
//	)
//
//	func main() {
//	    backend := autodiff.New(cpu.New())
//	    filter := nn.NewBilateralFilter(bilateral.New(cpu.New()), sigmas, backend)
//
//	    backend.Tape().StartRecording()
//	    out, _ := filter.Forward(noisy)
//	    loss := nn.NewMSELoss(backend).Forward(out, clean)
//	    grads := autodiff.Backward(loss, backend)
//	}
package autodiff

import (
	"github.com/born-ml/bilateral/internal/autodiff"
	"github.com/born-ml/bilateral/internal/autodiff/ops"
	"github.com/born-ml/bilateral/internal/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New creates a new autodiff backend wrapping the given backend.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}

// BilateralKernel runs the filter for the tape. A bilateral.Dispatcher
// implements it.
type BilateralKernel = ops.BilateralKernel

// BackwardCapable interface for backends that support backpropagation.
type BackwardCapable = autodiff.BackwardCapable

// Backward computes gradients via backpropagation from a scalar tensor.
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}
