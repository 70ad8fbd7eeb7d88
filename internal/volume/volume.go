// Package volume reads and writes float32 volumes, either raw little-endian
// or as SafeTensors, and synthesises test phantoms for the filter and train
// commands.
package volume

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/bilateral/internal/serialization"
	"github.com/born-ml/bilateral/internal/tensor"
)

// TensorName is the SafeTensors entry holding the volume.
const TensorName = "volume"

// Volume is a dense [batch, channels, spatial...] float32 array.
type Volume struct {
	Shape tensor.Shape
	Data  []float32
}

// New allocates a zero volume.
func New(shape tensor.Shape) (*Volume, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(err, "volume")
	}
	return &Volume{Shape: shape.Clone(), Data: make([]float32, shape.NumElements())}, nil
}

// Read decodes shape.NumElements() little-endian float32 values from r.
func Read(r io.Reader, shape tensor.Shape) (*Volume, error) {
	v, err := New(shape)
	if err != nil {
		return nil, err
	}
	if err := binary.Read(bufio.NewReader(r), binary.LittleEndian, v.Data); err != nil {
		return nil, errors.Wrapf(err, "read %d values for shape %v", len(v.Data), shape)
	}
	return v, nil
}

// IsSafeTensors reports whether path names a SafeTensors file.
func IsSafeTensors(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".safetensors")
}

// ReadFile reads a volume from path. SafeTensors files carry their own
// shape; a non-nil shape must then match it. Raw files need the shape.
func ReadFile(path string, shape tensor.Shape) (*Volume, error) {
	if IsSafeTensors(path) {
		return readSafeTensors(path, shape)
	}
	if shape == nil {
		return nil, errors.Errorf("raw volume %s needs a shape", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open volume")
	}
	defer f.Close()
	return Read(f, shape)
}

// Write encodes the volume as little-endian float32 values.
func (v *Volume) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, v.Data); err != nil {
		return errors.Wrap(err, "write volume")
	}
	return errors.Wrap(bw.Flush(), "write volume")
}

// WriteFile writes the volume to path, as SafeTensors when the extension
// is .safetensors and raw otherwise.
func (v *Volume) WriteFile(path string) error {
	if IsSafeTensors(path) {
		raw, err := tensor.NewRaw(v.Shape, tensor.Float32, tensor.CPU)
		if err != nil {
			return errors.Wrap(err, "volume")
		}
		copy(raw.AsFloat32(), v.Data)
		return errors.Wrap(serialization.WriteFile(path, map[string]*tensor.RawTensor{TensorName: raw}, nil), "write volume")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create volume")
	}
	if err := v.Write(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close volume")
}

func readSafeTensors(path string, shape tensor.Shape) (*Volume, error) {
	file, err := serialization.ReadFile(path, tensor.CPU)
	if err != nil {
		return nil, errors.Wrap(err, "read volume")
	}
	raw, err := file.Tensor(TensorName)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	if shape != nil && !shape.Equal(raw.Shape()) {
		return nil, errors.Errorf("volume %s has shape %v, expected %v", path, raw.Shape(), shape)
	}
	v := &Volume{Shape: raw.Shape().Clone(), Data: make([]float32, raw.NumElements())}
	switch raw.DType() {
	case tensor.Float32:
		copy(v.Data, raw.AsFloat32())
	default:
		for i, x := range raw.AsFloat64() {
			v.Data[i] = float32(x)
		}
	}
	return v, nil
}

// Tensor copies the volume into a tensor on backend b.
func Tensor[B tensor.Backend](v *Volume, b B) (*tensor.Tensor[float32, B], error) {
	return tensor.FromSlice(v.Data, v.Shape, b)
}

// FromTensor copies a float32 tensor into a volume.
func FromTensor[B tensor.Backend](t *tensor.Tensor[float32, B]) *Volume {
	raw := t.Raw().Contiguous()
	return &Volume{Shape: raw.Shape().Clone(), Data: append([]float32(nil), raw.AsFloat32()...)}
}

// Profile returns the values along the first spatial axis through the
// centre of the other spatial axes, for batch 0 and the given channel.
func (v *Volume) Profile(channel int) []float64 {
	spatial := v.Shape[2:]
	strides := v.Shape.ComputeStrides()
	offset := channel * strides[1]
	for d := 1; d < len(spatial); d++ {
		offset += (spatial[d] / 2) * strides[d+2]
	}
	out := make([]float64, spatial[0])
	for i := range out {
		out[i] = float64(v.Data[offset+i*strides[2]])
	}
	return out
}

// Phantom builds a piecewise constant volume of shape [1, channels, size...]:
// two boxes and a sphere on a zero background. Channel c is scaled by
// 1/(c+1), so every channel shares the same edges.
func Phantom(size []int, channels int) (*Volume, error) {
	shape := append(tensor.Shape{1, channels}, size...)
	v, err := New(shape)
	if err != nil {
		return nil, err
	}

	voxels := tensor.Shape(size).NumElements()
	strides := tensor.Shape(size).ComputeStrides()
	coord := make([]float64, len(size))
	for i := 0; i < voxels; i++ {
		rem := i
		for d := range size {
			coord[d] = (float64(rem/strides[d]) + 0.5) / float64(size[d])
			rem %= strides[d]
		}
		value := phantomValue(coord)
		for c := 0; c < channels; c++ {
			v.Data[c*voxels+i] = float32(value / float64(c+1))
		}
	}
	return v, nil
}

// phantomValue maps normalised coordinates in [0, 1) to an intensity.
func phantomValue(coord []float64) float64 {
	inBox := func(lo, hi float64) bool {
		for _, x := range coord {
			if x < lo || x >= hi {
				return false
			}
		}
		return true
	}

	var r2 float64
	for _, x := range coord {
		r2 += (x - 0.7) * (x - 0.7)
	}
	switch {
	case r2 < 0.15*0.15:
		return 0.8
	case inBox(0.15, 0.45):
		return 1.0
	case inBox(0.1, 0.6):
		return 0.4
	default:
		return 0
	}
}

// AddNoise returns a copy of v with additive Gaussian noise of standard
// deviation sigma drawn from a source seeded with seed.
func (v *Volume) AddNoise(sigma float64, seed int64) *Volume {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // G404: test data, not security
	out := &Volume{Shape: v.Shape.Clone(), Data: make([]float32, len(v.Data))}
	for i, x := range v.Data {
		out.Data[i] = x + float32(sigma*rng.NormFloat64())
	}
	return out
}

// PSNR returns the peak signal-to-noise ratio of v against reference, with
// the peak taken from the reference.
func (v *Volume) PSNR(reference *Volume) float64 {
	var mse, peak float64
	for i, r := range reference.Data {
		d := float64(v.Data[i] - r)
		mse += d * d
		peak = math.Max(peak, math.Abs(float64(r)))
	}
	mse /= float64(len(reference.Data))
	if mse == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(peak*peak/mse)
}
