package nn_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bilateral/internal/autodiff"
	"github.com/born-ml/bilateral/internal/backend/cpu"
	"github.com/born-ml/bilateral/internal/bilateral"
	"github.com/born-ml/bilateral/internal/dispatch"
	"github.com/born-ml/bilateral/internal/nn"
	"github.com/born-ml/bilateral/internal/tensor"
)

type testBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func noisyVolume(t *testing.T, backend testBackend, shape tensor.Shape) *tensor.Tensor[float32, testBackend] {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	x := tensor.Zeros[float32](shape, backend)
	data := x.Data()
	for i := range data {
		data[i] = float32(i%7)/7 + 0.05*float32(rng.NormFloat64())
	}
	return x
}

func TestParameter(t *testing.T) {
	backend := autodiff.New(cpu.New())

	data, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	require.NoError(t, err)
	param := nn.NewParameter("test_param", data)

	assert.Equal(t, "test_param", param.Name())
	assert.Same(t, data, param.Tensor())
	assert.Nil(t, param.Grad())

	grad, err := tensor.FromSlice([]float32{0.1, 0.2, 0.3}, tensor.Shape{3}, backend)
	require.NoError(t, err)
	param.SetGrad(grad)
	assert.Same(t, grad, param.Grad())

	param.ZeroGrad()
	assert.Nil(t, param.Grad())

	assert.Equal(t, float32(1), param.Value())
	param.Clamp(2.5)
	assert.Equal(t, []float32{2.5, 2.5, 3}, data.Data())
	param.Set(0.5)
	assert.Equal(t, []float32{0.5, 0.5, 0.5}, data.Data())
}

func TestMSELoss(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	pred, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	require.NoError(t, err)
	target, err := tensor.FromSlice([]float32{0, 2, 5}, tensor.Shape{3}, backend)
	require.NoError(t, err)

	loss := nn.NewMSELoss(backend).Forward(pred, target)
	require.Equal(t, tensor.Shape{1}, loss.Shape())
	assert.InDelta(t, 5.0/3.0, loss.Item(), 1e-6)

	grads := autodiff.Backward(loss, backend)
	gp := grads[pred.Raw()]
	require.NotNil(t, gp)
	assert.InDeltaSlice(t, []float32{2.0 / 3, 0, -4.0 / 3}, gp.AsFloat32(), 1e-6)
}

func TestMSELoss_ShapeMismatch(t *testing.T) {
	backend := autodiff.New(cpu.New())
	a := tensor.Zeros[float32](tensor.Shape{2}, backend)
	b := tensor.Zeros[float32](tensor.Shape{3}, backend)
	assert.Panics(t, func() { nn.NewMSELoss(backend).Forward(a, b) })
}

func TestBilateralFilter_Forward(t *testing.T) {
	backend := autodiff.New(cpu.New())
	d := dispatch.New(cpu.New())
	init := bilateral.Sigmas{X: 1.5, Y: 1, Z: 1, Color: 0.3}
	filter := nn.NewBilateralFilter(d, init, backend)

	params := filter.Parameters()
	require.Len(t, params, 4)
	assert.Equal(t, "bilateral.sigma_x", params[0].Name())
	assert.Equal(t, "bilateral.sigma_r", params[3].Name())
	assert.InDelta(t, 1.5, filter.Sigmas().X, 1e-6)
	assert.InDelta(t, 0.3, filter.Sigmas().Color, 1e-6)

	x := noisyVolume(t, backend, tensor.Shape{1, 1, 8, 8})
	out, err := filter.Forward(x)
	require.NoError(t, err)

	want, err := d.Forward(x.Raw(), filter.Sigmas())
	require.NoError(t, err)
	assert.InDeltaSlice(t, want.Output.AsFloat32(), out.Data(), 1e-6)
}

func TestBilateralFilter_GradientsReachSigmas(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	filter := nn.NewBilateralFilter(dispatch.New(cpu.New()), bilateral.Sigmas{X: 1, Y: 1, Z: 1, Color: 0.2}, backend)

	x := noisyVolume(t, backend, tensor.Shape{1, 1, 6, 6})
	target := tensor.Zeros[float32](x.Shape(), backend)
	out, err := filter.Forward(x)
	require.NoError(t, err)
	loss := nn.NewMSELoss(backend).Forward(out, target)

	grads := autodiff.Backward(loss, backend)
	for _, p := range filter.Parameters() {
		g := grads[p.Tensor().Raw()]
		require.NotNil(t, g, p.Name())
		assert.Equal(t, tensor.Shape{1}, g.Shape(), p.Name())
	}
	assert.NotZero(t, grads[filter.SigmaColor.Tensor().Raw()].AsFloat32()[0])
	assert.Zero(t, grads[filter.SigmaZ.Tensor().Raw()].AsFloat32()[0], "2D input has no z axis")
}

func TestBilateralFilter_ClampSigmas(t *testing.T) {
	backend := autodiff.New(cpu.New())
	filter := nn.NewBilateralFilter(dispatch.New(cpu.New()), bilateral.Sigmas{X: 1, Y: 1, Z: 1, Color: 1}, backend)

	filter.SigmaColor.Tensor().Data()[0] = -0.5
	x := noisyVolume(t, backend, tensor.Shape{1, 1, 4})
	_, err := filter.Forward(x)
	require.ErrorIs(t, err, bilateral.ErrInvalidSigma)

	filter.ClampSigmas(0.01)
	assert.InDelta(t, 0.01, filter.Sigmas().Color, 1e-7)
	assert.InDelta(t, 1, filter.Sigmas().X, 1e-7)
	_, err = filter.Forward(x)
	assert.NoError(t, err)
}
