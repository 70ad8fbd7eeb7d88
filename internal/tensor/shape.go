package tensor

import (
	"fmt"
	"slices"
)

// Shape holds the dimensions of a tensor. Filter volumes use the layout
// [batch, channels, spatial...].
type Shape []int

// NumElements returns the product of the dimensions, 1 for a scalar shape.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that every dimension is positive.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal reports whether both shapes have the same dimensions.
func (s Shape) Equal(other Shape) bool { return slices.Equal(s, other) }

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape { return slices.Clone(s) }

// Channels returns dimension 1 of a [B, C, ...] shape, 0 when rank < 2.
func (s Shape) Channels() int {
	if len(s) < 2 {
		return 0
	}
	return s[1]
}

// SpatialDims returns the number of dimensions after batch and channels.
func (s Shape) SpatialDims() int { return max(len(s)-2, 0) }

// ComputeStrides returns row-major element strides.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	step := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = step
		step *= s[i]
	}
	return strides
}
