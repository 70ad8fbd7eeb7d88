package nn

import (
	"github.com/pkg/errors"

	"github.com/born-ml/bilateral/internal/autodiff/ops"
	"github.com/born-ml/bilateral/internal/bilateral"
	"github.com/born-ml/bilateral/internal/tensor"
)

// Parameter names of the filter, also the keys of its state dict.
const (
	paramSigmaX = "bilateral.sigma_x"
	paramSigmaY = "bilateral.sigma_y"
	paramSigmaZ = "bilateral.sigma_z"
	paramSigmaR = "bilateral.sigma_r"
)

// BilateralBackend is a backend that can record the bilateral filter on a
// gradient tape. autodiff.AutodiffBackend implements it.
type BilateralBackend interface {
	tensor.Backend
	BilateralFilter(kernel ops.BilateralKernel, input, sigmaX, sigmaY, sigmaZ, sigmaR *tensor.RawTensor) (*tensor.RawTensor, error)
}

// BilateralFilter is a trainable bilateral filter.
//
// The three spatial sigmas and the range sigma are parameters of shape [1].
// Filtering goes through kernel (a dispatcher), which picks CPU or GPU per
// call and enforces the GPU limits.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	filter := nn.NewBilateralFilter(dispatcher, bilateral.Sigmas{X: 2, Y: 2, Z: 2, Color: 0.5}, backend)
//	out, err := filter.Forward(volume) // volume: [B, C, X, Y, Z]
type BilateralFilter[B BilateralBackend] struct {
	kernel  ops.BilateralKernel
	backend B

	SigmaX     *Parameter[B]
	SigmaY     *Parameter[B]
	SigmaZ     *Parameter[B]
	SigmaColor *Parameter[B]
}

// NewBilateralFilter creates the filter with initial sigmas.
func NewBilateralFilter[B BilateralBackend](kernel ops.BilateralKernel, init bilateral.Sigmas, backend B) *BilateralFilter[B] {
	param := func(name string, v float64) *Parameter[B] {
		return NewParameter(name, tensor.Full[float32](tensor.Shape{1}, float32(v), backend))
	}
	return &BilateralFilter[B]{
		kernel:     kernel,
		backend:    backend,
		SigmaX:     param(paramSigmaX, init.X),
		SigmaY:     param(paramSigmaY, init.Y),
		SigmaZ:     param(paramSigmaZ, init.Z),
		SigmaColor: param(paramSigmaR, init.Color),
	}
}

// Forward filters input with the current sigmas.
func (f *BilateralFilter[B]) Forward(input *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	out, err := f.backend.BilateralFilter(f.kernel, input.Raw(),
		f.SigmaX.Tensor().Raw(),
		f.SigmaY.Tensor().Raw(),
		f.SigmaZ.Tensor().Raw(),
		f.SigmaColor.Tensor().Raw())
	if err != nil {
		return nil, err
	}
	return tensor.New[float32, B](out, f.backend), nil
}

// Parameters returns [sigma_x, sigma_y, sigma_z, sigma_r].
func (f *BilateralFilter[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{f.SigmaX, f.SigmaY, f.SigmaZ, f.SigmaColor}
}

// Sigmas returns the current parameter values.
func (f *BilateralFilter[B]) Sigmas() bilateral.Sigmas {
	return bilateral.Sigmas{
		X:     float64(f.SigmaX.Value()),
		Y:     float64(f.SigmaY.Value()),
		Z:     float64(f.SigmaZ.Value()),
		Color: float64(f.SigmaColor.Value()),
	}
}

// ClampSigmas raises every sigma below minimum to minimum.
// An optimiser step can push a sigma to zero or below, which the kernels reject.
func (f *BilateralFilter[B]) ClampSigmas(minimum float32) {
	for _, p := range f.Parameters() {
		p.Clamp(minimum)
	}
}

// StateDict returns copies of the sigma tensors keyed by parameter name.
func (f *BilateralFilter[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor, 4)
	for _, p := range f.Parameters() {
		state[p.Name()] = p.Tensor().Raw().Clone()
	}
	return state
}

// LoadStateDict overwrites the sigmas with the entries of state. Every
// parameter must be present and the loaded sigmas must be valid.
func (f *BilateralFilter[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	values := make([]float64, 0, 4)
	for _, p := range f.Parameters() {
		raw, ok := state[p.Name()]
		if !ok {
			return errors.Errorf("state dict has no %s", p.Name())
		}
		v, err := scalarOf(raw)
		if err != nil {
			return errors.Wrap(err, p.Name())
		}
		values = append(values, v)
	}
	loaded := bilateral.Sigmas{X: values[0], Y: values[1], Z: values[2], Color: values[3]}
	if err := loaded.Validate(); err != nil {
		return err
	}
	for i, p := range f.Parameters() {
		p.Set(float32(values[i]))
	}
	return nil
}
