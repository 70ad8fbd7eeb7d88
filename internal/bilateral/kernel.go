package bilateral

import (
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/bilateral/internal/tensor"
)

// Kernel is a compute backend able to run the bilateral filter.
//
// Kernels assume their inputs were validated by the dispatcher: they still
// reject malformed shapes and dtypes, but GPU limits are not their concern.
type Kernel interface {
	Name() string
	BilateralForward(input *tensor.RawTensor, s Sigmas) (*ForwardResult, error)
	BilateralBackward(args *BackwardArgs, s Sigmas) (*tensor.RawTensor, error)
}

// Limits are the compiled-in capacity of a GPU kernel.
type Limits struct {
	MaxChannels    int `yaml:"max_channels"`
	MaxSpatialDims int `yaml:"max_spatial_dims"`
}

// DefaultGPULimits matches the fixed-size per-voxel scratch arrays of the
// GPU shaders.
var DefaultGPULimits = Limits{MaxChannels: 16, MaxSpatialDims: MaxSpatialDims}

// Check returns a *LimitError when input does not fit into the limits.
// Input rank is [B, C, spatial...].
func (l Limits) Check(shape tensor.Shape) error {
	if len(shape) < 2 {
		return errors.WithMessagef(ErrInvalidRank, "got shape %v", shape)
	}
	if c := shape.Channels(); c > l.MaxChannels {
		return &LimitError{Kind: ChannelLimit, Limit: l.MaxChannels, Got: c}
	}
	if d := shape.SpatialDims(); d > l.MaxSpatialDims {
		return &LimitError{Kind: SpatialLimit, Limit: l.MaxSpatialDims, Got: d}
	}
	return nil
}

// ForwardResult holds the seven tensors produced by a forward pass.
// Each has the shape of the input.
type ForwardResult struct {
	Output        *tensor.RawTensor
	OutputWeights *tensor.RawTensor // normalisation Σw per voxel, repeated per channel
	DODX          *tensor.RawTensor // dO/dx at the home voxel (diagonal of the Jacobian)
	DODSigmaColor *tensor.RawTensor
	DODSigmaX     *tensor.RawTensor
	DODSigmaY     *tensor.RawTensor
	DODSigmaZ     *tensor.RawTensor
}

// NewForwardResult allocates the seven output tensors.
func NewForwardResult(shape tensor.Shape, dtype tensor.DataType, device tensor.Device) (*ForwardResult, error) {
	res := &ForwardResult{}
	for _, dst := range res.fields() {
		t, err := tensor.NewRaw(shape, dtype, device)
		if err != nil {
			return nil, err
		}
		*dst = t
	}
	return res, nil
}

// Tensors returns the outputs in order:
// output, weights, dO/dx, dO/dσr, dO/dσx, dO/dσy, dO/dσz.
func (r *ForwardResult) Tensors() []*tensor.RawTensor {
	fields := r.fields()
	out := make([]*tensor.RawTensor, len(fields))
	for i, f := range fields {
		out[i] = *f
	}
	return out
}

func (r *ForwardResult) fields() []**tensor.RawTensor {
	return []**tensor.RawTensor{
		&r.Output, &r.OutputWeights, &r.DODX,
		&r.DODSigmaColor, &r.DODSigmaX, &r.DODSigmaY, &r.DODSigmaZ,
	}
}

// SigmaGradient returns dO/dσ for the sigma at index i in the order
// x, y, z, color.
func (r *ForwardResult) SigmaGradient(i int) *tensor.RawTensor {
	return [...]*tensor.RawTensor{r.DODSigmaX, r.DODSigmaY, r.DODSigmaZ, r.DODSigmaColor}[i]
}

// BackwardArgs bundles the tensors required by the backward pass: the
// upstream gradient and the input plus the activations saved by forward.
type BackwardArgs struct {
	GradOutput    *tensor.RawTensor
	Input         *tensor.RawTensor
	Output        *tensor.RawTensor
	OutputWeights *tensor.RawTensor
	DODX          *tensor.RawTensor
}

// Tensors returns the argument tensors in a fixed order.
func (a *BackwardArgs) Tensors() []*tensor.RawTensor {
	return []*tensor.RawTensor{a.GradOutput, a.Input, a.Output, a.OutputWeights, a.DODX}
}

// CheckBackward verifies that all backward tensors are present and share
// the shape and dtype of the input.
func CheckBackward(a *BackwardArgs) error {
	if a == nil || a.Input == nil {
		return ErrMissingActivation
	}
	for _, t := range a.Tensors() {
		if t == nil {
			return ErrMissingActivation
		}
		if !t.Shape().Equal(a.Input.Shape()) {
			return errors.WithMessagef(ErrShapeMismatch, "%v vs input %v", t.Shape(), a.Input.Shape())
		}
		if t.DType() != a.Input.DType() {
			return errors.WithMessagef(ErrDTypeMismatch, "%s vs input %s", t.DType(), a.Input.DType())
		}
	}
	return nil
}

func gauss(o, sigma float64) float64 {
	return math.Exp(-(o * o) / (2 * sigma * sigma))
}
