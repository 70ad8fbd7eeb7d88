// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the type-safe tensors the bilateral filter works on.
//
// # Overview
//
// Volumes are dense tensors of shape [batch, channels, spatial...] with one
// to three spatial axes. This package provides:
//   - Generic type-safe tensors (Tensor[T, B]) over float32 and float64
//   - The element-wise operations used by losses and optimisers
//   - Device labels so the dispatcher can route work to CPU or GPU
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/bilateral/backend/cpu"
//	    "github.com/born-ml/bilateral/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    x := tensor.Zeros[float32](tensor.Shape{1, 1, 64, 64}, backend)
//	    y := tensor.Ones[float32](tensor.Shape{1, 1, 64, 64}, backend)
//	    mse := x.Sub(y).Mul(x.Sub(y)).Mean()
//	}
//
// # Device Support
//
// Tensors can be labelled with different devices:
//   - CPU: pure Go kernels
//   - WebGPU: WGSL compute shaders (Windows builds)
//
// The label decides which bilateral kernel the dispatcher selects.
package tensor
