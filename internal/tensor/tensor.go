package tensor

import "fmt"

// Tensor pairs a RawTensor with the backend its arithmetic runs on. The
// element type T must match the raw dtype.
//
//	backend := autodiff.New(cpu.New())
//	x := tensor.Zeros[float32](Shape{1, 1, 32, 32}, backend)
//	loss := x.Sub(y).Mul(x.Sub(y)).Mean()
type Tensor[T DType, B Backend] struct {
	raw     *RawTensor
	backend B
}

// New wraps raw for backend b without copying.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return &Tensor[T, B]{raw: raw, backend: b}
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		return nil, err
	}

	t := New[T, B](raw, b)
	copy(t.Data(), data)
	return t, nil
}

// Shape returns the tensor's shape.
func (t *Tensor[T, B]) Shape() Shape { return t.raw.Shape() }

// DType returns the runtime element type.
func (t *Tensor[T, B]) DType() DataType { return t.raw.DType() }

// Device returns the device the tensor is resident on.
func (t *Tensor[T, B]) Device() Device { return t.raw.Device() }

// NumElements returns the total number of elements.
func (t *Tensor[T, B]) NumElements() int { return t.raw.NumElements() }

// Raw returns the underlying RawTensor. Gradient maps are keyed by it.
func (t *Tensor[T, B]) Raw() *RawTensor { return t.raw }

// Backend returns the backend the tensor's operations run on.
func (t *Tensor[T, B]) Backend() B { return t.backend }

// Detach returns a new handle on the same data. Its raw tensor is a
// different key, so it is a constant to the tape.
func (t *Tensor[T, B]) Detach() *Tensor[T, B] {
	return New[T, B](t.raw.Clone(), t.backend)
}

// Data returns the elements in place; writes go to the tensor.
func (t *Tensor[T, B]) Data() []T {
	var zero T
	if _, ok := any(zero).(float64); ok {
		return any(t.raw.AsFloat64()).([]T)
	}
	return any(t.raw.AsFloat32()).([]T)
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor[T, B]) At(indices ...int) T {
	return t.Data()[t.flatIndex(indices)]
}

// Set sets the element at the given indices.
func (t *Tensor[T, B]) Set(value T, indices ...int) {
	t.Data()[t.flatIndex(indices)] = value
}

func (t *Tensor[T, B]) flatIndex(indices []int) int {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(shape), len(indices)))
	}

	offset := 0
	strides := t.raw.Strides()
	for i, idx := range indices {
		if idx < 0 || idx >= shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, shape[i]))
		}
		offset += idx * strides[i]
	}
	return offset
}

// Item returns the single value of a one-element tensor.
func (t *Tensor[T, B]) Item() T {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("Item() only works for one-element tensors, got shape %v", t.Shape()))
	}
	return t.Data()[0]
}

// String returns a human-readable representation of the tensor.
func (t *Tensor[T, B]) String() string {
	return fmt.Sprintf("Tensor[%s]%v on %s", t.raw.DType(), t.raw.Shape(), t.raw.Device())
}

// Clone creates a deep copy of the tensor without gradient state.
func (t *Tensor[T, B]) Clone() *Tensor[T, B] {
	return New[T, B](t.raw.Clone(), t.backend)
}
