// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"testing"

	"github.com/born-ml/bilateral/autodiff"
	"github.com/born-ml/bilateral/backend/cpu"
	"github.com/born-ml/bilateral/bilateral"
	"github.com/born-ml/bilateral/nn"
	"github.com/born-ml/bilateral/tensor"
)

// TestModuleInterface verifies that the filter implements Module.
func TestModuleInterface(t *testing.T) {
	backend := autodiff.New(cpu.New())
	var module nn.Module[*autodiff.Backend[*cpu.Backend]] = nn.NewBilateralFilter(
		bilateral.New(cpu.New()), bilateral.Sigmas{X: 1, Y: 1, Z: 1, Color: 0.5}, backend)

	input := tensor.Ones[float32](tensor.Shape{1, 1, 6, 4}, backend)
	out, err := module.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if !out.Shape().Equal(input.Shape()) {
		t.Errorf("output shape %v, want %v", out.Shape(), input.Shape())
	}
	if got := len(module.Parameters()); got != 4 {
		t.Errorf("Parameters() = %d, want 4", got)
	}
}

func TestTrainingStep(t *testing.T) {
	backend := autodiff.New(cpu.New())
	filter := nn.NewBilateralFilter(bilateral.New(cpu.New()), bilateral.Sigmas{X: 1, Y: 1, Z: 1, Color: 0.5}, backend)

	noisy, err := tensor.FromSlice([]float32{0, 0.1, 0, 0.1, 1, 0.9, 1, 0.9}, tensor.Shape{1, 1, 8}, backend)
	if err != nil {
		t.Fatal(err)
	}
	clean, err := tensor.FromSlice([]float32{0.05, 0.05, 0.05, 0.05, 0.95, 0.95, 0.95, 0.95}, tensor.Shape{1, 1, 8}, backend)
	if err != nil {
		t.Fatal(err)
	}

	backend.Tape().StartRecording()
	out, err := filter.Forward(noisy)
	if err != nil {
		t.Fatal(err)
	}
	loss := nn.NewMSELoss(backend).Forward(out, clean)
	grads := autodiff.Backward(loss, backend)

	if _, ok := grads[filter.SigmaColor.Tensor().Raw()]; !ok {
		t.Error("no gradient for the range sigma")
	}
}
