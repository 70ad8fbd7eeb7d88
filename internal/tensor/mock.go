package tensor

import "fmt"

// Verify that MockBackend implements Backend.
var _ Backend = (*MockBackend)(nil)

// MockBackend is a simple backend for testing.
// It implements all operations naively in float64 for correctness verification.
type MockBackend struct {
	device Device
}

// NewMockBackend creates a new MockBackend resident on the CPU.
func NewMockBackend() *MockBackend {
	return &MockBackend{device: CPU}
}

// NewMockBackendOn creates a MockBackend that labels its tensors with device.
// Useful for exercising device-dependent code paths without hardware.
func NewMockBackendOn(device Device) *MockBackend {
	return &MockBackend{device: device}
}

// Name returns the backend name.
func (m *MockBackend) Name() string {
	return "mock"
}

// Device returns the device type.
func (m *MockBackend) Device() Device {
	return m.device
}

// Add performs element-wise addition.
func (m *MockBackend) Add(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction.
func (m *MockBackend) Sub(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication.
func (m *MockBackend) Mul(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x * y })
}

// MulScalar multiplies by a scalar.
func (m *MockBackend) MulScalar(x *RawTensor, scalar any) *RawTensor {
	s := ScalarFloat64(scalar)
	return m.unary(x, func(v float64) float64 { return v * s })
}

// Sum reduces all elements into shape [1].
func (m *MockBackend) Sum(x *RawTensor) *RawTensor {
	values := readFloat64(x.Contiguous())
	var sum float64
	for _, v := range values {
		sum += v
	}
	out, err := NewRaw(Shape{1}, x.DType(), m.device)
	if err != nil {
		panic(err)
	}
	writeFloat64(out, []float64{sum})
	return out
}

// Reshape returns a reshaped copy.
func (m *MockBackend) Reshape(t *RawTensor, newShape Shape) *RawTensor {
	out, err := t.Clone().Reshaped(newShape)
	if err != nil {
		panic(err)
	}
	return out
}

func (m *MockBackend) elementWise(a, b *RawTensor, op func(float64, float64) float64) *RawTensor {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("mock: shape mismatch %v vs %v", a.Shape(), b.Shape()))
	}
	av, bv := readFloat64(a.Contiguous()), readFloat64(b.Contiguous())
	out := make([]float64, len(av))
	for i := range av {
		out[i] = op(av[i], bv[i])
	}
	result, err := NewRaw(a.Shape(), a.DType(), m.device)
	if err != nil {
		panic(err)
	}
	writeFloat64(result, out)
	return result
}

func (m *MockBackend) unary(x *RawTensor, op func(float64) float64) *RawTensor {
	xv := readFloat64(x.Contiguous())
	for i := range xv {
		xv[i] = op(xv[i])
	}
	result, err := NewRaw(x.Shape(), x.DType(), m.device)
	if err != nil {
		panic(err)
	}
	writeFloat64(result, xv)
	return result
}

// ScalarFloat64 converts a float32/float64 scalar passed as any to float64.
func ScalarFloat64(scalar any) float64 {
	switch s := scalar.(type) {
	case float32:
		return float64(s)
	case float64:
		return s
	case int:
		return float64(s)
	default:
		panic(fmt.Sprintf("unsupported scalar type %T", scalar))
	}
}

func readFloat64(r *RawTensor) []float64 {
	switch r.DType() {
	case Float32:
		src := r.AsFloat32()
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = float64(v)
		}
		return out
	case Float64:
		return append([]float64(nil), r.AsFloat64()...)
	default:
		panic(fmt.Sprintf("unsupported dtype %s", r.DType()))
	}
}

func writeFloat64(r *RawTensor, values []float64) {
	switch r.DType() {
	case Float32:
		dst := r.AsFloat32()
		for i, v := range values {
			dst[i] = float32(v)
		}
	case Float64:
		copy(r.AsFloat64(), values)
	default:
		panic(fmt.Sprintf("unsupported dtype %s", r.DType()))
	}
}
