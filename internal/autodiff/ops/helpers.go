package ops

import (
	"fmt"

	"github.com/born-ml/bilateral/internal/tensor"
)

// ScalarValue returns the value of a one-element float tensor as float64.
func ScalarValue(t *tensor.RawTensor) float64 {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("ScalarValue: expected one element, got shape %v", t.Shape()))
	}
	t = t.Contiguous()
	switch t.DType() {
	case tensor.Float32:
		return float64(t.AsFloat32()[0])
	case tensor.Float64:
		return t.AsFloat64()[0]
	default:
		panic(fmt.Sprintf("ScalarValue: unsupported dtype %s", t.DType()))
	}
}

// Filled creates a tensor of the given shape with every element set to v.
func Filled(shape tensor.Shape, dtype tensor.DataType, v float64, backend tensor.Backend) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, backend.Device())
	if err != nil {
		panic(fmt.Sprintf("Filled: failed to create result: %v", err))
	}

	switch dtype {
	case tensor.Float32:
		data := result.AsFloat32()
		for i := range data {
			data[i] = float32(v)
		}
	case tensor.Float64:
		data := result.AsFloat64()
		for i := range data {
			data[i] = v
		}
	default:
		panic(fmt.Sprintf("Filled: unsupported dtype %s", dtype))
	}
	return result
}

// negateGradient returns -grad.
func negateGradient(grad *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	switch grad.DType() {
	case tensor.Float32:
		return backend.MulScalar(grad, float32(-1))
	default:
		return backend.MulScalar(grad, float64(-1))
	}
}
