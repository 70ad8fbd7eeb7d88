// Package tensor provides the core tensor types used by the bilateral filter kernels.
package tensor

// DType constrains the element types of a typed Tensor. The filter only
// works on floating point data.
type DType interface {
	~float32 | ~float64
}

// DataType is the element type of a RawTensor.
type DataType int

// Supported element types.
const (
	Float32 DataType = iota
	Float64
)

var dataTypeInfo = [...]struct {
	name string
	size int
}{
	Float32: {"float32", 4},
	Float64: {"float64", 8},
}

func (dt DataType) known() bool { return dt >= 0 && int(dt) < len(dataTypeInfo) }

// Size returns the element size in bytes. Panics on an unknown type.
func (dt DataType) Size() int {
	if !dt.known() {
		panic("unknown data type")
	}
	return dataTypeInfo[dt].size
}

// String returns "float32" or "float64".
func (dt DataType) String() string {
	if !dt.known() {
		return "unknown"
	}
	return dataTypeInfo[dt].name
}

func inferDataType[T DType](dummy T) DataType {
	if _, ok := any(dummy).(float64); ok {
		return Float64
	}
	return Float32
}
