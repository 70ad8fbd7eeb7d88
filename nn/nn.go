// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/bilateral/internal/autodiff/ops"
	"github.com/born-ml/bilateral/internal/bilateral"
	"github.com/born-ml/bilateral/internal/nn"
	"github.com/born-ml/bilateral/internal/tensor"
)

// Module is the interface for layers.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a named parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// BilateralBackend is a backend able to record the filter on a tape.
type BilateralBackend = nn.BilateralBackend

// BilateralFilter is the trainable bilateral filter layer.
type BilateralFilter[B BilateralBackend] = nn.BilateralFilter[B]

// NewBilateralFilter creates the filter with initial sigmas. kernel is
// usually a bilateral.Dispatcher.
func NewBilateralFilter[B BilateralBackend](kernel ops.BilateralKernel, init bilateral.Sigmas, backend B) *BilateralFilter[B] {
	return nn.NewBilateralFilter(kernel, init, backend)
}

// MSELoss is the mean squared error loss.
type MSELoss[B tensor.Backend] = nn.MSELoss[B]

// NewMSELoss creates the loss.
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return nn.NewMSELoss(backend)
}

// Checkpoint is a snapshot of a trained filter.
type Checkpoint[B BilateralBackend] = nn.Checkpoint[B]

// LoadCheckpoint restores the sigmas of filter from a checkpoint file.
func LoadCheckpoint[B BilateralBackend](path string, filter *BilateralFilter[B]) (*Checkpoint[B], error) {
	return nn.LoadCheckpoint(path, filter)
}

// ReadSigmas reads the sigmas of a checkpoint file.
func ReadSigmas(path string) (bilateral.Sigmas, error) {
	return nn.ReadSigmas(path)
}
