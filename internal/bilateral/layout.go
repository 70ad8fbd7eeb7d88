package bilateral

import (
	"github.com/pkg/errors"

	"github.com/born-ml/bilateral/internal/tensor"
)

// Layout describes how a [B, C, S1(, S2(, S3))] tensor is walked by the
// filter kernels. Missing spatial axes are padded with size 1 and window 1,
// so every kernel can iterate over exactly three spatial axes.
type Layout struct {
	Batch    int
	Channels int
	Dims     int                 // number of real spatial axes, 1..3
	Sizes    [MaxSpatialDims]int // spatial extent per axis, padded with 1
	Window   [MaxSpatialDims]int // window length per axis
	Half     [MaxSpatialDims]int // Window/2
	Voxels   int                 // product of Sizes
}

// NewLayout derives the iteration layout of shape for the given sigmas.
// Rank must be between 3 and 5. The GPU spatial limit is checked by the
// dispatcher before this point, so the rank error here is a plain shape error.
func NewLayout(shape tensor.Shape, s Sigmas) (Layout, error) {
	if len(shape) < 3 || len(shape) > 2+MaxSpatialDims {
		return Layout{}, errors.WithMessagef(ErrInvalidRank, "got shape %v", shape)
	}
	if err := shape.Validate(); err != nil {
		return Layout{}, errors.WithMessagef(ErrInvalidRank, "%v", err)
	}

	l := Layout{
		Batch:    shape[0],
		Channels: shape.Channels(),
		Dims:     shape.SpatialDims(),
		Voxels:   1,
	}
	sigmas := s.Spatial()
	for i := 0; i < MaxSpatialDims; i++ {
		l.Sizes[i], l.Window[i] = 1, 1
		if i < l.Dims {
			l.Sizes[i] = shape[2+i]
			l.Window[i] = WindowSize(sigmas[i])
		}
		l.Half[i] = l.Window[i] / 2
		l.Voxels *= l.Sizes[i]
	}
	return l, nil
}

// SpatialStrides returns element strides of the three padded spatial axes
// inside one channel plane.
func (l Layout) SpatialStrides() [MaxSpatialDims]int {
	return [MaxSpatialDims]int{l.Sizes[1] * l.Sizes[2], l.Sizes[2], 1}
}

// Coords converts a voxel index inside a channel plane to spatial coordinates.
func (l Layout) Coords(voxel int) [MaxSpatialDims]int {
	return [MaxSpatialDims]int{
		voxel / (l.Sizes[1] * l.Sizes[2]),
		(voxel / l.Sizes[2]) % l.Sizes[1],
		voxel % l.Sizes[2],
	}
}

// SpatialKernels returns, per axis, the Gaussian weights exp(-o²/2σ²) for
// o = -Half..Half. Padded axes get the single weight 1.
func (l Layout) SpatialKernels(s Sigmas) [MaxSpatialDims][]float64 {
	var out [MaxSpatialDims][]float64
	sigmas := s.Spatial()
	for i := range out {
		out[i] = make([]float64, l.Window[i])
		for k := range out[i] {
			o := float64(k - l.Half[i])
			if i >= l.Dims {
				out[i][k] = 1
				continue
			}
			out[i][k] = gauss(o, sigmas[i])
		}
	}
	return out
}
