// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the GPU backend, running the bilateral kernels as
// WGSL compute shaders through WebGPU.
//
// The backend is compiled on Windows. Elsewhere New returns an error and
// Compiled is false, so the dispatcher always filters on the CPU.
//
// Example:
//
//	gpu, err := webgpu.New()
//	if err != nil {
//	    // no GPU, filter on the CPU
//	}
//	defer gpu.Release()
//	d := bilateral.New(cpu.New(), bilateral.WithGPU(gpu))
package webgpu

import (
	internalwebgpu "github.com/born-ml/bilateral/internal/backend/webgpu"
	"github.com/born-ml/bilateral/tensor"
)

// Backend is the WebGPU compute backend.
type Backend = internalwebgpu.Backend

// MemoryStats reports GPU buffer usage.
type MemoryStats = internalwebgpu.MemoryStats

// Compiled reports whether the GPU kernels are part of this build.
const Compiled = internalwebgpu.Compiled

var _ tensor.Backend = (*Backend)(nil)

// New creates a backend on the default adapter.
func New() (*Backend, error) {
	return internalwebgpu.New()
}

// IsAvailable reports whether a WebGPU adapter can be acquired.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
