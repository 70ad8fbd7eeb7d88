package tensor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataTypeSize(t *testing.T) {
	tests := []struct {
		dtype DataType
		size  int
		str   string
	}{
		{Float32, 4, "float32"},
		{Float64, 8, "float64"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.size, tt.dtype.Size())
		assert.Equal(t, tt.str, tt.dtype.String())
	}
}

func TestShape(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.True(t, s.Equal(s.Clone()))
	assert.False(t, s.Equal(Shape{2, 3}))
	assert.NoError(t, s.Validate())
	assert.Error(t, Shape{2, 0}.Validate())

	assert.Equal(t, 3, s.Channels())
	assert.Equal(t, 1, s.SpatialDims())
	assert.Equal(t, 0, Shape{4}.Channels())
	assert.Equal(t, 0, Shape{4}.SpatialDims())
	assert.Empty(t, Shape{}.ComputeStrides())
}

func TestNewRaw_InvalidShape(t *testing.T) {
	_, err := NewRaw(Shape{1, -1}, Float32, CPU)
	assert.Error(t, err)
}

func TestRawTensor_AsFloat32ZeroCopy(t *testing.T) {
	raw, err := NewRaw(Shape{3, 2}, Float32, CPU)
	require.NoError(t, err)

	data := raw.AsFloat32()
	require.Len(t, data, 6)
	data[0] = 42
	assert.Equal(t, float32(42), raw.AsFloat32()[0])
	assert.Equal(t, 24, raw.ByteSize())
}

func TestRawTensor_AsFloat64WrongDType(t *testing.T) {
	raw, err := NewRaw(Shape{2}, Float32, CPU)
	require.NoError(t, err)
	assert.Panics(t, func() { raw.AsFloat64() })
}

func TestRawTensor_PermuteIsView(t *testing.T) {
	raw, err := NewRaw(Shape{2, 3}, Float32, CPU)
	require.NoError(t, err)
	for i := range raw.AsFloat32() {
		raw.AsFloat32()[i] = float32(i)
	}

	view := raw.Permute(1, 0)
	assert.Equal(t, Shape{3, 2}, view.Shape())
	assert.Equal(t, []int{1, 3}, view.Strides())
	assert.False(t, view.IsContiguous())
	assert.Panics(t, func() { view.AsFloat32() })

	dense := view.Contiguous()
	assert.True(t, dense.IsContiguous())
	assert.Equal(t, []float32{0, 3, 1, 4, 2, 5}, dense.AsFloat32())

	// The view shares storage with its source.
	raw.AsFloat32()[1] = 100
	assert.Equal(t, float32(100), view.Contiguous().AsFloat32()[2])
}

func TestRawTensor_PermuteSizeOneStaysContiguous(t *testing.T) {
	raw, err := NewRaw(Shape{1, 4}, Float32, CPU)
	require.NoError(t, err)
	assert.True(t, raw.Permute(1, 0).IsContiguous())
}

func TestRawTensor_PermuteInvalidAxes(t *testing.T) {
	raw, err := NewRaw(Shape{2, 3}, Float32, CPU)
	require.NoError(t, err)

	assert.Panics(t, func() { raw.Permute(0) })
	assert.Panics(t, func() { raw.Permute(0, 0) })
	assert.Panics(t, func() { raw.Permute(0, 2) })
}

func TestRawTensor_ToDevice(t *testing.T) {
	raw, err := NewRaw(Shape{4}, Float64, CPU)
	require.NoError(t, err)
	raw.AsFloat64()[2] = 7

	moved := raw.ToDevice(WebGPU)
	assert.Equal(t, WebGPU, moved.Device())
	assert.Equal(t, 7.0, moved.AsFloat64()[2])

	moved.AsFloat64()[2] = 1
	assert.Equal(t, 7.0, raw.AsFloat64()[2], "ToDevice must copy")
}

func TestRawTensor_Reshaped(t *testing.T) {
	raw, err := NewRaw(Shape{2, 3}, Float32, CPU)
	require.NoError(t, err)

	r, err := raw.Reshaped(Shape{3, 2})
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 2}, r.Shape())

	_, err = raw.Reshaped(Shape{4, 2})
	assert.Error(t, err)
}

func TestFromSlice(t *testing.T) {
	backend := NewMockBackend()

	x, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, backend)
	require.NoError(t, err)
	assert.Equal(t, float32(6), x.At(1, 2))
	assert.Equal(t, CPU, x.Device())

	x.Set(-1, 0, 1)
	assert.Equal(t, float32(-1), x.Data()[1])

	_, err = FromSlice([]float32{1, 2}, Shape{3}, backend)
	assert.Error(t, err)

	assert.Panics(t, func() { x.At(2, 0) })
}

func TestCreation(t *testing.T) {
	backend := NewMockBackendOn(WebGPU)

	z := Zeros[float64](Shape{2, 2}, backend)
	assert.Equal(t, []float64{0, 0, 0, 0}, z.Data())
	assert.Equal(t, WebGPU, z.Device())

	o := Ones[float32](Shape{3}, backend)
	assert.Equal(t, []float32{1, 1, 1}, o.Data())

	f := Full[float32](Shape{1}, 2.5, backend)
	assert.Equal(t, float32(2.5), f.Item())

	l := Linspace[float64](0, 1, 5, backend)
	assert.InDeltaSlice(t, []float64{0, 0.25, 0.5, 0.75, 1}, l.Data(), 1e-12)
}

func TestRandn_Seeded(t *testing.T) {
	backend := NewMockBackend()

	a := Randn[float64](Shape{1000}, rand.New(rand.NewSource(1)), backend)
	b := Randn[float64](Shape{1000}, rand.New(rand.NewSource(1)), backend)
	assert.True(t, AllClose(a, b, 0, 0))

	var mean float64
	for _, v := range a.Data() {
		mean += v
	}
	mean /= 1000
	assert.Less(t, math.Abs(mean), 0.15)
}

func TestTensorOps_Mock(t *testing.T) {
	backend := NewMockBackend()

	a, err := FromSlice([]float32{1, 2, 3, 4}, Shape{2, 2}, backend)
	require.NoError(t, err)
	b, err := FromSlice([]float32{4, 3, 2, 1}, Shape{2, 2}, backend)
	require.NoError(t, err)

	assert.Equal(t, []float32{5, 5, 5, 5}, a.Add(b).Data())
	assert.Equal(t, []float32{-3, -1, 1, 3}, a.Sub(b).Data())
	assert.Equal(t, []float32{4, 6, 6, 4}, a.Mul(b).Data())
	assert.Equal(t, []float32{2, 4, 6, 8}, a.MulScalar(2).Data())
	assert.Equal(t, float32(10), a.Sum().Item())
	assert.Equal(t, float32(2.5), a.Mean().Item())
	assert.Equal(t, Shape{4}, a.Reshape(4).Shape())

	c, err := FromSlice([]float32{1, 2, 3}, Shape{3}, backend)
	require.NoError(t, err)
	assert.Panics(t, func() { a.Add(c) })
}

func TestAllClose(t *testing.T) {
	backend := NewMockBackend()

	a, _ := FromSlice([]float64{1, 2}, Shape{2}, backend)
	b, _ := FromSlice([]float64{1, 2.0001}, Shape{2}, backend)
	c, _ := FromSlice([]float64{1, 2, 3}, Shape{3}, backend)

	assert.True(t, AllClose(a, b, 0, 1e-3))
	assert.False(t, AllClose(a, b, 0, 1e-6))
	assert.False(t, AllClose(a, c, 1, 1))
}
