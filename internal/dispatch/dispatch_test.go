package dispatch

import (
	"bytes"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bilateral/internal/backend/cpu"
	"github.com/born-ml/bilateral/internal/bilateral"
	"github.com/born-ml/bilateral/internal/metrics"
	"github.com/born-ml/bilateral/internal/tensor"
)

var testSigmas = bilateral.Sigmas{X: 1, Y: 1, Z: 1, Color: 0.5}

// fakeKernel records calls and returns canned results.
type fakeKernel struct {
	name      string
	available bool
	limits    bilateral.Limits
	result    *bilateral.ForwardResult
	grad      *tensor.RawTensor
	err       error

	forwardCalls  int
	backwardCalls int
	lastSigmas    bilateral.Sigmas
}

func (f *fakeKernel) Name() string { return f.name }

func (f *fakeKernel) Available() bool { return f.available }

func (f *fakeKernel) Limits() bilateral.Limits { return f.limits }

func (f *fakeKernel) BilateralForward(_ *tensor.RawTensor, s bilateral.Sigmas) (*bilateral.ForwardResult, error) {
	f.forwardCalls++
	f.lastSigmas = s
	return f.result, f.err
}

func (f *fakeKernel) BilateralBackward(_ *bilateral.BackwardArgs, s bilateral.Sigmas) (*tensor.RawTensor, error) {
	f.backwardCalls++
	f.lastSigmas = s
	return f.grad, f.err
}

func newFakes(t *testing.T) (cpuK, gpuK *fakeKernel) {
	t.Helper()
	res, err := bilateral.NewForwardResult(tensor.Shape{1, 1, 4}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	grad, err := tensor.NewRaw(tensor.Shape{1, 1, 4}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)

	cpuK = &fakeKernel{name: "CPU", result: res, grad: grad}
	gpuK = &fakeKernel{
		name:      "WebGPU",
		available: true,
		limits:    bilateral.DefaultGPULimits,
		result:    &bilateral.ForwardResult{},
		grad:      grad.Clone(),
	}
	return cpuK, gpuK
}

// newTestDispatcher builds a dispatcher that behaves as if GPU support was
// compiled in.
func newTestDispatcher(cpuK bilateral.Kernel, opts ...Option) *Dispatcher {
	d := New(cpuK, opts...)
	d.compiled = true
	return d
}

func onDevice(t *testing.T, shape tensor.Shape, device tensor.Device) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, device)
	require.NoError(t, err)
	return r
}

func backwardArgs(grad *tensor.RawTensor) *bilateral.BackwardArgs {
	return &bilateral.BackwardArgs{GradOutput: grad, Input: grad, Output: grad, OutputWeights: grad, DODX: grad}
}

func TestForward_SelectsBackend(t *testing.T) {
	tests := []struct {
		name      string
		compiled  bool
		available bool
		device    tensor.Device
		wantGPU   bool
	}{
		{"gpu resident input", true, true, tensor.WebGPU, true},
		{"cpu resident input", true, true, tensor.CPU, false},
		{"gpu unavailable", true, false, tensor.WebGPU, false},
		{"gpu not compiled", false, true, tensor.WebGPU, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpuK, gpuK := newFakes(t)
			gpuK.available = tt.available
			d := New(cpuK, WithGPU(gpuK))
			d.compiled = tt.compiled

			res, err := d.Forward(onDevice(t, tensor.Shape{1, 2, 4, 4}, tt.device), testSigmas)
			require.NoError(t, err)

			if tt.wantGPU {
				assert.Same(t, gpuK.result, res)
				assert.Equal(t, 1, gpuK.forwardCalls)
				assert.Zero(t, cpuK.forwardCalls)
			} else {
				assert.Same(t, cpuK.result, res)
				assert.Equal(t, 1, cpuK.forwardCalls)
				assert.Zero(t, gpuK.forwardCalls)
			}
		})
	}
}

func TestForward_PassesSigmasThrough(t *testing.T) {
	cpuK, gpuK := newFakes(t)
	d := newTestDispatcher(cpuK, WithGPU(gpuK))

	s := bilateral.Sigmas{X: 0.5, Y: 1.5, Z: 2.5, Color: 0.1}
	_, err := d.Forward(onDevice(t, tensor.Shape{1, 1, 4}, tensor.WebGPU), s)
	require.NoError(t, err)
	assert.Equal(t, s, gpuK.lastSigmas)
}

func TestForward_LimitsCheckedBeforeAnyBackend(t *testing.T) {
	tests := []struct {
		name    string
		shape   tensor.Shape
		want    error
		message string
	}{
		{
			"too many channels", tensor.Shape{1, 17, 4, 4}, bilateral.ErrChannelLimit,
			"Bilateral filtering not implemented for channel count > 16",
		},
		{
			"too many spatial dims", tensor.Shape{1, 2, 3, 3, 3, 3}, bilateral.ErrSpatialLimit,
			"Bilateral filtering not implemented for spatial dimension > 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpuK, gpuK := newFakes(t)
			d := newTestDispatcher(cpuK, WithGPU(gpuK))

			_, err := d.Forward(onDevice(t, tt.shape, tensor.WebGPU), testSigmas)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.message, err.Error())

			_, err = d.Backward(backwardArgs(onDevice(t, tt.shape, tensor.WebGPU)), testSigmas)
			assert.ErrorIs(t, err, tt.want)

			assert.Zero(t, cpuK.forwardCalls+cpuK.backwardCalls)
			assert.Zero(t, gpuK.forwardCalls+gpuK.backwardCalls)
		})
	}
}

func TestForward_LimitsIgnoredOnCPUPath(t *testing.T) {
	cpuK, gpuK := newFakes(t)
	d := newTestDispatcher(cpuK, WithGPU(gpuK))

	_, err := d.Forward(onDevice(t, tensor.Shape{1, 40, 4, 4}, tensor.CPU), testSigmas)
	require.NoError(t, err)
	assert.Equal(t, 1, cpuK.forwardCalls)
}

func TestForward_ChannelLimitBoundary(t *testing.T) {
	cpuK, gpuK := newFakes(t)
	d := newTestDispatcher(cpuK, WithGPU(gpuK))

	_, err := d.Forward(onDevice(t, tensor.Shape{1, 16, 2, 2, 2}, tensor.WebGPU), testSigmas)
	require.NoError(t, err)
	assert.Equal(t, 1, gpuK.forwardCalls)
}

func TestForward_NonContiguousGPUInput(t *testing.T) {
	cpuK, gpuK := newFakes(t)
	d := newTestDispatcher(cpuK, WithGPU(gpuK))

	view := onDevice(t, tensor.Shape{1, 2, 3, 4}, tensor.WebGPU).Permute(0, 1, 3, 2)
	_, err := d.Forward(view, testSigmas)
	assert.ErrorIs(t, err, bilateral.ErrNotContiguous)
	assert.Zero(t, gpuK.forwardCalls)
	assert.Zero(t, cpuK.forwardCalls)
}

func TestWithLimits(t *testing.T) {
	cpuK, gpuK := newFakes(t)
	d := newTestDispatcher(cpuK, WithGPU(gpuK), WithLimits(bilateral.Limits{MaxChannels: 2, MaxSpatialDims: 2}))

	assert.Equal(t, 2, d.Limits().MaxChannels)

	_, err := d.Forward(onDevice(t, tensor.Shape{1, 3, 4}, tensor.WebGPU), testSigmas)
	assert.EqualError(t, err, "Bilateral filtering not implemented for channel count > 2")

	_, err = d.Forward(onDevice(t, tensor.Shape{1, 1, 4, 4, 4}, tensor.WebGPU), testSigmas)
	assert.ErrorIs(t, err, bilateral.ErrSpatialLimit)
}

func TestWithLimits_CannotExceedGPULimits(t *testing.T) {
	cpuK, gpuK := newFakes(t)
	d := newTestDispatcher(cpuK, WithGPU(gpuK), WithLimits(bilateral.Limits{MaxChannels: 32, MaxSpatialDims: 5}))

	assert.Equal(t, bilateral.DefaultGPULimits, d.Limits())

	_, err := d.Forward(onDevice(t, tensor.Shape{1, 17, 4}, tensor.WebGPU), testSigmas)
	assert.ErrorIs(t, err, bilateral.ErrChannelLimit)
	_, err = d.Forward(onDevice(t, tensor.Shape{1, 1, 2, 2, 2, 2}, tensor.WebGPU), testSigmas)
	assert.ErrorIs(t, err, bilateral.ErrSpatialLimit)
	assert.Zero(t, gpuK.forwardCalls+cpuK.forwardCalls)
}

func TestBackward_NonContiguousGPUGradOutput(t *testing.T) {
	cpuK, gpuK := newFakes(t)
	d := newTestDispatcher(cpuK, WithGPU(gpuK))

	view := onDevice(t, tensor.Shape{1, 2, 3, 4}, tensor.WebGPU).Permute(0, 1, 3, 2)
	_, err := d.Backward(backwardArgs(view), testSigmas)
	assert.ErrorIs(t, err, bilateral.ErrNotContiguous)
	assert.Zero(t, gpuK.backwardCalls)
	assert.Zero(t, cpuK.backwardCalls)
}

func TestBackward_SelectedByGradOutput(t *testing.T) {
	cpuK, gpuK := newFakes(t)
	d := newTestDispatcher(cpuK, WithGPU(gpuK))

	args := backwardArgs(onDevice(t, tensor.Shape{1, 1, 4}, tensor.WebGPU))
	args.Input = onDevice(t, tensor.Shape{1, 1, 4}, tensor.CPU)

	grad, err := d.Backward(args, testSigmas)
	require.NoError(t, err)
	assert.Same(t, gpuK.grad, grad)
	assert.Equal(t, 1, gpuK.backwardCalls)

	args.GradOutput = onDevice(t, tensor.Shape{1, 1, 4}, tensor.CPU)
	grad, err = d.Backward(args, testSigmas)
	require.NoError(t, err)
	assert.Same(t, cpuK.grad, grad)
}

func TestBackward_NilArgs(t *testing.T) {
	cpuK, _ := newFakes(t)
	d := New(cpuK)

	_, err := d.Backward(nil, testSigmas)
	assert.ErrorIs(t, err, bilateral.ErrMissingActivation)

	_, err = d.Backward(&bilateral.BackwardArgs{}, testSigmas)
	assert.ErrorIs(t, err, bilateral.ErrMissingActivation)
}

func TestPreference(t *testing.T) {
	t.Run("cpu forced", func(t *testing.T) {
		cpuK, gpuK := newFakes(t)
		d := newTestDispatcher(cpuK, WithGPU(gpuK), WithPreference(PreferCPU))

		k, err := d.Select(onDevice(t, tensor.Shape{1, 1, 4}, tensor.WebGPU))
		require.NoError(t, err)
		assert.Equal(t, "CPU", k.Name())
	})

	t.Run("gpu forced", func(t *testing.T) {
		cpuK, gpuK := newFakes(t)
		d := newTestDispatcher(cpuK, WithGPU(gpuK), WithPreference(PreferGPU))

		k, err := d.Select(onDevice(t, tensor.Shape{1, 1, 4}, tensor.CPU))
		require.NoError(t, err)
		assert.Equal(t, "WebGPU", k.Name())
	})

	t.Run("gpu forced but unavailable", func(t *testing.T) {
		cpuK, gpuK := newFakes(t)
		gpuK.available = false
		d := newTestDispatcher(cpuK, WithGPU(gpuK), WithPreference(PreferGPU))

		_, err := d.Forward(onDevice(t, tensor.Shape{1, 1, 4}, tensor.CPU), testSigmas)
		assert.ErrorIs(t, err, bilateral.ErrGPUUnavailable)
		assert.Zero(t, cpuK.forwardCalls)
	})
}

func TestParsePreference(t *testing.T) {
	for in, want := range map[string]Preference{
		"":       PreferAuto,
		"auto":   PreferAuto,
		"CPU":    PreferCPU,
		"gpu":    PreferGPU,
		"webgpu": PreferGPU,
	} {
		got, err := ParsePreference(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePreference("cuda")
	assert.Error(t, err)
	assert.Equal(t, "gpu", PreferGPU.String())
}

func TestKernelErrorsAreWrapped(t *testing.T) {
	cpuK, _ := newFakes(t)
	cpuK.err = bilateral.ErrInvalidSigma
	d := New(cpuK)

	_, err := d.Forward(onDevice(t, tensor.Shape{1, 1, 4}, tensor.CPU), testSigmas)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bilateral.ErrInvalidSigma))
	assert.Contains(t, err.Error(), "forward on CPU")
}

func TestKernelFailuresAreCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	cpuK, gpuK := newFakes(t)
	gpuK.err = errors.New("device lost")
	d := newTestDispatcher(cpuK, WithGPU(gpuK), WithMetrics(m))

	_, err := d.Forward(onDevice(t, tensor.Shape{1, 1, 4}, tensor.WebGPU), testSigmas)
	require.Error(t, err)
	_, err = d.Backward(backwardArgs(onDevice(t, tensor.Shape{1, 1, 4}, tensor.WebGPU)), testSigmas)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues("forward", "WebGPU")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues("backward", "WebGPU")))
	assert.Zero(t, testutil.CollectAndCount(m.Dispatches))
	assert.Zero(t, testutil.CollectAndCount(m.Rejections))
}

func TestMetricsAndLogging(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	cpuK, gpuK := newFakes(t)
	d := newTestDispatcher(cpuK, WithGPU(gpuK), WithMetrics(m), WithLogger(log))

	_, err := d.Forward(onDevice(t, tensor.Shape{1, 1, 4}, tensor.WebGPU), testSigmas)
	require.NoError(t, err)
	_, err = d.Forward(onDevice(t, tensor.Shape{1, 1, 4}, tensor.CPU), testSigmas)
	require.NoError(t, err)
	_, err = d.Backward(backwardArgs(onDevice(t, tensor.Shape{1, 1, 4}, tensor.CPU)), testSigmas)
	require.NoError(t, err)
	_, err = d.Forward(onDevice(t, tensor.Shape{1, 20, 4}, tensor.WebGPU), testSigmas)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("forward", "WebGPU")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("forward", "CPU")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("backward", "CPU")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("forward", "channels")))

	out := buf.String()
	assert.Contains(t, out, "bilateral dispatcher ready")
	assert.Contains(t, out, "bilateral dispatch rejected")
	assert.Contains(t, out, `"backend":"WebGPU"`)
}

func TestDispatcher_RealCPUKernel(t *testing.T) {
	backend := cpu.New()
	d := New(backend)

	x := onDevice(t, tensor.Shape{1, 1, 6}, tensor.WebGPU)
	copy(x.AsFloat32(), []float32{0, 0, 0, 1, 1, 1})

	direct, err := backend.BilateralForward(x, testSigmas)
	require.NoError(t, err)
	routed, err := d.Forward(x, testSigmas)
	require.NoError(t, err)

	assert.Equal(t, direct.Output.AsFloat32(), routed.Output.AsFloat32())
	assert.False(t, d.GPUAvailable())
}
