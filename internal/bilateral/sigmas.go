// Package bilateral holds the definitions shared by the trainable bilateral
// filter kernels and the dispatcher: smoothing parameters, the volume layout,
// GPU limits, the kernel interface and its error values.
//
// The filter is edge preserving: every output voxel is a normalised sum over a
// window of neighbours, each weighted by a spatial Gaussian on the offset and a
// range Gaussian on the colour (intensity) distance.
//
//	w(h, o) = exp(-Σ_i o_i² / 2σ_i²) · exp(-‖x[clamp(h+o)] - x[h]‖² / 2σr²)
//	O(h)    = Σ_o w·x[clamp(h+o)] / Σ_o w
//
// All four sigmas are trainable: the forward pass also returns the partial
// derivatives of the output with respect to each of them.
package bilateral

import (
	"math"

	"github.com/pkg/errors"
)

// MaxSpatialDims is the number of spatial axes the filter understands.
// One sigma exists per axis (x, y, z).
const MaxSpatialDims = 3

// Sigmas holds the spatial bandwidths along x, y, z and the colour bandwidth.
type Sigmas struct {
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Z     float64 `yaml:"z"`
	Color float64 `yaml:"color"`
}

// Validate checks that every sigma is finite and strictly positive.
func (s Sigmas) Validate() error {
	for _, v := range []struct {
		name  string
		value float64
	}{{"x", s.X}, {"y", s.Y}, {"z", s.Z}, {"color", s.Color}} {
		if v.value <= 0 || math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return errors.WithMessagef(ErrInvalidSigma, "sigma %s = %v", v.name, v.value)
		}
	}
	return nil
}

// Spatial returns the spatial sigmas indexed by axis.
func (s Sigmas) Spatial() [MaxSpatialDims]float64 {
	return [MaxSpatialDims]float64{s.X, s.Y, s.Z}
}

// WindowSize returns the odd window length used for a spatial sigma:
// ceil(5σ) with the lowest bit forced on, never smaller than 5.
func WindowSize(sigma float64) int {
	return max(int(math.Ceil(5*sigma))|1, 5)
}
