//go:build !windows

package webgpu

import (
	"github.com/pkg/errors"

	"github.com/born-ml/bilateral/internal/bilateral"
	"github.com/born-ml/bilateral/internal/tensor"
)

// Compiled reports whether this binary carries the WebGPU backend.
const Compiled = false

var errNotCompiled = errors.WithMessage(bilateral.ErrGPUUnavailable, "webgpu: not compiled into this build")

// Backend is the placeholder used on platforms without WebGPU support.
// New never returns one, the methods exist so callers build everywhere.
type Backend struct{}

// New always fails on this platform.
func New() (*Backend, error) {
	return nil, errNotCompiled
}

// IsAvailable reports false on this platform.
func IsAvailable() bool {
	return false
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "WebGPU"
}

// Device returns the compute device.
func (b *Backend) Device() tensor.Device {
	return tensor.WebGPU
}

// Available reports false on this platform.
func (b *Backend) Available() bool {
	return false
}

// Limits returns the limits the shaders would have.
func (b *Backend) Limits() bilateral.Limits {
	return Limits()
}

// AdapterName returns an empty string on this platform.
func (b *Backend) AdapterName() string {
	return ""
}

// MemoryStats returns zero statistics.
func (b *Backend) MemoryStats() MemoryStats {
	return MemoryStats{}
}

// Release is a no-op on this platform.
func (b *Backend) Release() {}

// BilateralForward fails on this platform.
func (b *Backend) BilateralForward(*tensor.RawTensor, bilateral.Sigmas) (*bilateral.ForwardResult, error) {
	return nil, errNotCompiled
}

// BilateralBackward fails on this platform.
func (b *Backend) BilateralBackward(*bilateral.BackwardArgs, bilateral.Sigmas) (*tensor.RawTensor, error) {
	return nil, errNotCompiled
}

// Element-wise operations panic on this platform, New never hands out a
// Backend to call them on.

func (b *Backend) Add(_, _ *tensor.RawTensor) *tensor.RawTensor { panic(errNotCompiled) }

func (b *Backend) Sub(_, _ *tensor.RawTensor) *tensor.RawTensor { panic(errNotCompiled) }

func (b *Backend) Mul(_, _ *tensor.RawTensor) *tensor.RawTensor { panic(errNotCompiled) }

func (b *Backend) MulScalar(_ *tensor.RawTensor, _ any) *tensor.RawTensor { panic(errNotCompiled) }

func (b *Backend) Sum(_ *tensor.RawTensor) *tensor.RawTensor { panic(errNotCompiled) }

func (b *Backend) Reshape(_ *tensor.RawTensor, _ tensor.Shape) *tensor.RawTensor {
	panic(errNotCompiled)
}
