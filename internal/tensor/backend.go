package tensor

// Backend defines the element-wise operations every compute backend provides.
// They are the glue around the bilateral filter: loss computation, gradient
// accumulation on the tape and optimiser updates.
//
// Implementations:
//   - CPU: pure Go (internal/backend/cpu)
//   - WebGPU: WGSL compute shaders (internal/backend/webgpu)
//   - Mock: naive reference for tests
//
// Filtering itself is not part of this interface, it goes through the
// dispatcher so that GPU limits are checked in one place.
type Backend interface {
	// Element-wise binary operations, both operands must share a shape.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// MulScalar multiplies every element by a float32 or float64 scalar.
	MulScalar(x *RawTensor, scalar any) *RawTensor

	// Sum reduces all elements into a tensor of shape [1].
	Sum(x *RawTensor) *RawTensor

	// Reshape returns a tensor with the same data and a new shape.
	Reshape(t *RawTensor, newShape Shape) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
