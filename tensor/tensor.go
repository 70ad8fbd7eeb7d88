// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand"

	"github.com/born-ml/bilateral/internal/tensor"
)

// Tensor is a generic tensor with element type T and backend B.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// RawTensor is the untyped storage behind a Tensor.
type RawTensor = tensor.RawTensor

// Backend defines the element-wise operations every compute backend provides.
type Backend = tensor.Backend

// DType constrains the element types a Tensor can hold.
type DType = tensor.DType

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// DataType is the runtime element type of a RawTensor.
type DataType = tensor.DataType

// Device is the device a tensor is resident on.
type Device = tensor.Device

// Data types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
)

// Devices.
const (
	CPU    = tensor.CPU
	CUDA   = tensor.CUDA
	Vulkan = tensor.Vulkan
	Metal  = tensor.Metal
	WebGPU = tensor.WebGPU
)

// New creates a Tensor from a RawTensor and backend.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T, B](raw, b)
}

// NewRaw creates a zero-filled RawTensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromSlice creates a tensor from a Go slice. The slice is copied.
//
// Example:
//
//	volume, err := tensor.FromSlice(data, tensor.Shape{1, 1, 32, 32, 16}, backend)
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice(data, shape, b)
}

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T](shape, b)
}

// Full creates a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full(shape, value, b)
}

// Randn creates a tensor with values drawn from N(0, 1). A nil rng uses
// the package-level source.
func Randn[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	return tensor.Randn[T](shape, rng, b)
}

// Linspace creates a 1-D tensor of n evenly spaced values from start to stop.
func Linspace[T DType, B Backend](start, stop T, n int, b B) *Tensor[T, B] {
	return tensor.Linspace(start, stop, n, b)
}

// AllClose reports whether two tensors match within atol + rtol*|b|.
func AllClose[T DType, B Backend](a, b *Tensor[T, B], rtol, atol float64) bool {
	return tensor.AllClose(a, b, rtol, atol)
}
