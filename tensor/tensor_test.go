// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"math/rand"
	"testing"

	"github.com/born-ml/bilateral/backend/cpu"
	"github.com/born-ml/bilateral/tensor"
)

// TestBackendInterface verifies that the CPU backend implements tensor.Backend.
func TestBackendInterface(_ *testing.T) {
	var _ tensor.Backend = cpu.New()
}

// TestRawTensorAPI verifies the RawTensor alias exposes the expected API.
func TestRawTensorAPI(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	if !raw.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("Shape() = %v, want [2 3]", raw.Shape())
	}
	if raw.DType() != tensor.Float32 {
		t.Errorf("DType() = %v, want Float32", raw.DType())
	}
	if raw.Device() != tensor.CPU {
		t.Errorf("Device() = %v, want CPU", raw.Device())
	}
	if got := raw.ToDevice(tensor.WebGPU).Device(); got != tensor.WebGPU {
		t.Errorf("ToDevice(WebGPU).Device() = %v", got)
	}
}

func TestCreation(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 4}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	ones := tensor.Ones[float32](tensor.Shape{1, 1, 4}, backend)

	sum := x.Add(ones).Sum().Item()
	if sum != 14 {
		t.Errorf("sum = %v, want 14", sum)
	}

	full := tensor.Full(tensor.Shape{2}, 0.5, backend)
	if !tensor.AllClose(full, tensor.Linspace(0.5, 0.5, 2, backend), 0, 0) {
		t.Errorf("Full and Linspace disagree: %v", full.Data())
	}

	noise := tensor.Randn[float64](tensor.Shape{16}, rand.New(rand.NewSource(1)), backend)
	again := tensor.Randn[float64](tensor.Shape{16}, rand.New(rand.NewSource(1)), backend)
	if !tensor.AllClose(noise, again, 0, 0) {
		t.Error("Randn with the same seed must repeat")
	}

	if _, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{3}, backend); err == nil {
		t.Error("FromSlice accepted a short slice")
	}
}
