// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/bilateral/internal/backend/cpu"
	"github.com/born-ml/bilateral/internal/parallel"
	"github.com/born-ml/bilateral/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Features lists the SIMD extensions detected on the host.
type Features = internalcpu.Features

// ParallelConfig controls how kernels split work across goroutines.
type ParallelConfig = parallel.Config

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{1, 1, 16, 16}, backend)
func New() *Backend {
	return internalcpu.New()
}

// DetectFeatures reports the SIMD extensions of the host CPU.
func DetectFeatures() Features {
	return internalcpu.DetectFeatures()
}
