package tensor

import (
	"math"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{1, 1, 16, 16}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		panic(err) // Shape validation should prevent this
	}
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, T(1), b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	sigma := tensor.Full[float32](Shape{1}, 2.5, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a tensor with values drawn from N(0, 1) using rng.
// A nil rng falls back to the package-level source.
// Note: Uses math/rand (not crypto/rand) - appropriate for statistical purposes.
func Randn[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()

	normal := rand.NormFloat64 //nolint:gosec // G404: noise generation, not security
	if rng != nil {
		normal = rng.NormFloat64
	}
	for i := range data {
		data[i] = T(normal())
	}
	return t
}

// Linspace creates a 1-D tensor of n evenly spaced values from start to stop.
func Linspace[T DType, B Backend](start, stop T, n int, b B) *Tensor[T, B] {
	t := Zeros[T, B](Shape{n}, b)
	data := t.Data()
	if n == 1 {
		data[0] = start
		return t
	}
	step := float64(stop-start) / float64(n-1)
	for i := range data {
		data[i] = T(float64(start) + step*float64(i))
	}
	return t
}

// AllClose reports whether two tensors have the same shape and all elements
// within atol + rtol*|b| of each other.
func AllClose[T DType, B Backend](a, b *Tensor[T, B], rtol, atol float64) bool {
	if !a.Shape().Equal(b.Shape()) {
		return false
	}
	ad, bd := a.Data(), b.Data()
	for i := range ad {
		diff := math.Abs(float64(ad[i] - bd[i]))
		if diff > atol+rtol*math.Abs(float64(bd[i])) || math.IsNaN(diff) {
			return false
		}
	}
	return true
}
