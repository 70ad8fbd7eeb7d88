//go:build windows

package webgpu

import (
	"github.com/born-ml/bilateral/internal/tensor"
)

// Add performs element-wise addition on GPU.
func (b *Backend) Add(a, other *tensor.RawTensor) *tensor.RawTensor {
	result, err := b.runBinaryOp(a, other, "add", addShader)
	if err != nil {
		panic("webgpu: Add: " + err.Error())
	}
	return result
}

// Sub performs element-wise subtraction on GPU.
func (b *Backend) Sub(a, other *tensor.RawTensor) *tensor.RawTensor {
	result, err := b.runBinaryOp(a, other, "sub", subShader)
	if err != nil {
		panic("webgpu: Sub: " + err.Error())
	}
	return result
}

// Mul performs element-wise multiplication on GPU.
func (b *Backend) Mul(a, other *tensor.RawTensor) *tensor.RawTensor {
	result, err := b.runBinaryOp(a, other, "mul", mulShader)
	if err != nil {
		panic("webgpu: Mul: " + err.Error())
	}
	return result
}

// MulScalar multiplies every element by scalar on GPU.
func (b *Backend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result, err := b.runScalarOp(x, scalarFloat32(scalar))
	if err != nil {
		panic("webgpu: MulScalar: " + err.Error())
	}
	return result
}

// Sum reduces all elements into a tensor of shape [1].
func (b *Backend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := b.runSum(x)
	if err != nil {
		panic("webgpu: Sum: " + err.Error())
	}
	return result
}

// Reshape returns a tensor with new shape.
// The data is host-staged between kernels, so this is a host copy.
func (b *Backend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic("webgpu: reshape: invalid shape: " + err.Error())
	}
	if t.NumElements() != newShape.NumElements() {
		panic("webgpu: reshape: incompatible number of elements")
	}

	result, err := t.Contiguous().ToDevice(tensor.WebGPU).Reshaped(newShape)
	if err != nil {
		panic("webgpu: reshape: " + err.Error())
	}
	return result
}
