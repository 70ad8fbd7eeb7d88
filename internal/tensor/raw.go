package tensor

import (
	"fmt"
	"unsafe"
)

// Device represents the compute device a tensor is resident on.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	CUDA
	Vulkan
	Metal
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case Vulkan:
		return "Vulkan"
	case Metal:
		return "Metal"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// RawTensor is the low-level tensor representation.
//
// Data is kept in a host byte buffer. Views created by Permute share the
// buffer and carry their own strides; kernels that need a dense row-major
// layout call Contiguous first.
type RawTensor struct {
	data   []byte   // Shared storage
	shape  Shape    // Tensor dimensions
	stride []int    // Strides in elements
	dtype  DataType // Runtime type information
	device Device   // Device the tensor is resident on
	offset int      // Byte offset of the first element
}

// NewRaw creates a new zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:   make([]byte, shape.NumElements()*dtype.Size()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's strides in elements.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the device the tensor is resident on.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the logical size of the tensor in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// IsContiguous reports whether the tensor is laid out densely in row-major order.
func (r *RawTensor) IsContiguous() bool {
	expected := r.shape.ComputeStrides()
	for i, s := range r.stride {
		// Size-1 dimensions never move the cursor, their stride is irrelevant.
		if r.shape[i] != 1 && s != expected[i] {
			return false
		}
	}
	return true
}

// Data returns the raw bytes of a contiguous tensor.
// WARNING: Direct access to underlying memory.
func (r *RawTensor) Data() []byte {
	r.mustBeContiguous("Data")
	return r.data[r.offset : r.offset+r.ByteSize()]
}

// AsFloat32 interprets the data of a contiguous tensor as []float32.
// Panics if the dtype is not Float32 or the tensor is a strided view.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	r.mustBeContiguous("AsFloat32")
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[r.offset])), r.NumElements())
}

// AsFloat64 interprets the data of a contiguous tensor as []float64.
// Panics if the dtype is not Float64 or the tensor is a strided view.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	r.mustBeContiguous("AsFloat64")
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.data[r.offset])), r.NumElements())
}

func (r *RawTensor) mustBeContiguous(op string) {
	if !r.IsContiguous() {
		panic(fmt.Sprintf("%s: tensor with shape %v and strides %v is not contiguous, call Contiguous() first",
			op, r.shape, r.stride))
	}
}

// Clone creates a deep, contiguous copy of the tensor on the same device.
func (r *RawTensor) Clone() *RawTensor {
	return r.materialize(r.device)
}

// ToDevice returns a contiguous copy of the tensor labelled with the target device.
// Host bytes act as the staging copy, backends upload them when they run a kernel.
func (r *RawTensor) ToDevice(device Device) *RawTensor {
	return r.materialize(device)
}

// Contiguous returns the tensor itself when it is already row-major,
// otherwise a dense copy of the view.
func (r *RawTensor) Contiguous() *RawTensor {
	if r.IsContiguous() {
		return r
	}
	return r.materialize(r.device)
}

// Permute returns a zero-copy view with dimensions reordered by axes.
// The view is generally not contiguous.
//
// Example:
//
//	x, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
//	xt := x.Permute(1, 0) // shape [3, 2], strides [1, 3]
func (r *RawTensor) Permute(axes ...int) *RawTensor {
	ndim := len(r.shape)
	if len(axes) != ndim {
		panic(fmt.Sprintf("permute: axes length %d != ndim %d", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	shape := make(Shape, ndim)
	stride := make([]int, ndim)
	for i, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("permute: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("permute: duplicate axis %d", ax))
		}
		seen[ax] = true
		shape[i] = r.shape[ax]
		stride[i] = r.stride[ax]
	}

	return &RawTensor{
		data:   r.data,
		shape:  shape,
		stride: stride,
		dtype:  r.dtype,
		device: r.device,
		offset: r.offset,
	}
}

// Reshaped returns a contiguous tensor with the same data and a new shape.
func (r *RawTensor) Reshaped(newShape Shape) (*RawTensor, error) {
	if err := newShape.Validate(); err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}
	if newShape.NumElements() != r.NumElements() {
		return nil, fmt.Errorf("reshape: incompatible shapes %v -> %v", r.shape, newShape)
	}
	src := r.Contiguous()
	return &RawTensor{
		data:   src.data,
		shape:  newShape.Clone(),
		stride: newShape.ComputeStrides(),
		dtype:  src.dtype,
		device: src.device,
		offset: src.offset,
	}, nil
}

// materialize copies the (possibly strided) tensor into a fresh row-major buffer.
func (r *RawTensor) materialize(device Device) *RawTensor {
	out, err := NewRaw(r.shape, r.dtype, device)
	if err != nil {
		panic(fmt.Sprintf("materialize: %v", err))
	}

	esz := r.dtype.Size()
	if r.IsContiguous() {
		copy(out.data, r.data[r.offset:r.offset+r.ByteSize()])
		return out
	}

	ndim := len(r.shape)
	index := make([]int, ndim)
	for i := 0; i < r.NumElements(); i++ {
		src := 0
		for d := 0; d < ndim; d++ {
			src += index[d] * r.stride[d]
		}
		start := r.offset + src*esz
		copy(out.data[i*esz:(i+1)*esz], r.data[start:start+esz])

		// Advance the row-major multi-index.
		for d := ndim - 1; d >= 0; d-- {
			index[d]++
			if index[d] < r.shape[d] {
				break
			}
			index[d] = 0
		}
	}
	return out
}
