// Package cpu implements the CPU backend: element-wise tensor operations and
// the bilateral filter kernels in pure Go, spread over all cores.
package cpu

import (
	"fmt"

	"github.com/born-ml/bilateral/internal/bilateral"
	"github.com/born-ml/bilateral/internal/parallel"
	"github.com/born-ml/bilateral/internal/tensor"
)

var (
	_ tensor.Backend   = (*CPUBackend)(nil)
	_ bilateral.Kernel = (*CPUBackend)(nil)
)

// CPUBackend implements tensor operations and the bilateral filter on CPU.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

// New creates a new CPU backend using every available core.
func New() *CPUBackend {
	return &CPUBackend{
		device:   tensor.CPU,
		parallel: parallel.DefaultConfig(),
	}
}

// SetParallel replaces the worker configuration used by the kernels.
func (cpu *CPUBackend) SetParallel(cfg parallel.Config) {
	cpu.parallel = cfg
}

// Parallel returns the worker configuration.
func (cpu *CPUBackend) Parallel() parallel.Config {
	return cpu.parallel
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, opAdd)
}

// Sub performs element-wise subtraction.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, opSub)
}

// Mul performs element-wise multiplication.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, opMul)
}

// MulScalar multiplies every element by scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := tensor.ScalarFloat64(scalar)
	x = x.Contiguous()

	result := cpu.newResult("mulscalar", x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		scaleSlice(result.AsFloat32(), x.AsFloat32(), float32(s), cpu.parallel)
	case tensor.Float64:
		scaleSlice(result.AsFloat64(), x.AsFloat64(), s, cpu.parallel)
	default:
		panic(fmt.Sprintf("mulscalar: unsupported dtype %s", x.DType()))
	}
	return result
}

// Sum reduces all elements into a tensor of shape [1].
// Accumulation is done in float64 for both dtypes.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	x = x.Contiguous()

	result := cpu.newResult("sum", tensor.Shape{1}, x.DType())
	switch x.DType() {
	case tensor.Float32:
		result.AsFloat32()[0] = float32(sumSlice(x.AsFloat32()))
	case tensor.Float64:
		result.AsFloat64()[0] = sumSlice(x.AsFloat64())
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}
	return result
}

// Reshape returns a tensor with the same data but different shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: invalid shape: %v", err))
	}
	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}

	result, err := t.Contiguous().ToDevice(cpu.device).Reshaped(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return result
}

func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, kind binaryOp) *tensor.RawTensor {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("%s: shape mismatch %v vs %v", op, a.Shape(), b.Shape()))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType()))
	}
	a, b = a.Contiguous(), b.Contiguous()

	result := cpu.newResult(op, a.Shape(), a.DType())
	switch a.DType() {
	case tensor.Float32:
		binarySlice(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), kind, cpu.parallel)
	case tensor.Float64:
		binarySlice(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), kind, cpu.parallel)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}
	return result
}

func (cpu *CPUBackend) newResult(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return result
}
