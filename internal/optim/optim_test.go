package optim_test

import (
	"math"
	"testing"

	"github.com/born-ml/bilateral/internal/autodiff"
	"github.com/born-ml/bilateral/internal/backend/cpu"
	"github.com/born-ml/bilateral/internal/bilateral"
	"github.com/born-ml/bilateral/internal/dispatch"
	"github.com/born-ml/bilateral/internal/nn"
	"github.com/born-ml/bilateral/internal/optim"
	"github.com/born-ml/bilateral/internal/tensor"
)

type testBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Helper to check float equality with tolerance.
func floatEqual(a, b, eps float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < eps
}

func newParam(t *testing.T, backend testBackend, name string, values ...float32) *nn.Parameter[testBackend] {
	t.Helper()
	x, err := tensor.FromSlice(values, tensor.Shape{len(values)}, backend)
	if err != nil {
		t.Fatal(err)
	}
	return nn.NewParameter(name, x)
}

// gradsFor builds a gradient map with one gradient per parameter.
func gradsFor(t *testing.T, params []*nn.Parameter[testBackend], values ...[]float32) map[*tensor.RawTensor]*tensor.RawTensor {
	t.Helper()
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor, len(params))
	for i, p := range params {
		g, err := tensor.NewRaw(p.Tensor().Shape(), tensor.Float32, tensor.CPU)
		if err != nil {
			t.Fatal(err)
		}
		copy(g.AsFloat32(), values[i])
		grads[p.Tensor().Raw()] = g
	}
	return grads
}

func TestSGD_SimpleUpdate(t *testing.T) {
	backend := autodiff.New(cpu.New())
	params := []*nn.Parameter[testBackend]{newParam(t, backend, "x", 2.0)}
	optimizer := optim.NewSGD(params, optim.SGDConfig{LR: 0.1}, backend)

	optimizer.Step(gradsFor(t, params, []float32{1.0}))

	// x = 2.0 - 0.1 * 1.0
	if got := params[0].Tensor().Item(); !floatEqual(got, 1.9, 1e-6) {
		t.Errorf("SGD update: got %f, want 1.9", got)
	}
}

func TestSGD_WithMomentum(t *testing.T) {
	backend := autodiff.New(cpu.New())
	params := []*nn.Parameter[testBackend]{newParam(t, backend, "x", 1.0)}
	optimizer := optim.NewSGD(params, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)

	// v_1 = 1.0, x_1 = 0.9; v_2 = 1.9, x_2 = 0.71
	for step, want := range []float32{0.9, 0.71} {
		optimizer.Step(gradsFor(t, params, []float32{1.0}))
		if got := params[0].Tensor().Item(); !floatEqual(got, want, 1e-5) {
			t.Errorf("SGD momentum step %d: got %f, want %f", step+1, got, want)
		}
	}
}

func TestSGD_GetSetLR(t *testing.T) {
	backend := autodiff.New(cpu.New())
	optimizer := optim.NewSGD([]*nn.Parameter[testBackend]{newParam(t, backend, "x", 1)}, optim.SGDConfig{}, backend)

	if optimizer.GetLR() != 0.01 {
		t.Errorf("default LR: got %f, want 0.01", optimizer.GetLR())
	}
	optimizer.SetLR(0.001)
	if optimizer.GetLR() != 0.001 {
		t.Errorf("GetLR after SetLR: got %f, want 0.001", optimizer.GetLR())
	}
}

func TestAdam_FirstStep(t *testing.T) {
	backend := autodiff.New(cpu.New())
	params := []*nn.Parameter[testBackend]{newParam(t, backend, "x", 1.0)}
	optimizer := optim.NewAdam(params, optim.AdamConfig{LR: 0.001}, backend)

	if optimizer.GetTimestep() != 0 {
		t.Errorf("initial timestep: got %d, want 0", optimizer.GetTimestep())
	}
	optimizer.Step(gradsFor(t, params, []float32{1.0}))

	// m_hat = v_hat = 1 after bias correction, so x = 1 - lr
	if got := params[0].Tensor().Item(); !floatEqual(got, 0.999, 1e-5) {
		t.Errorf("Adam first step: got %f, want 0.999", got)
	}
	if optimizer.GetTimestep() != 1 {
		t.Errorf("timestep: got %d, want 1", optimizer.GetTimestep())
	}
}

func TestZeroGrad(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := newParam(t, backend, "x", 1.0)
	params := []*nn.Parameter[testBackend]{param}

	for _, name := range []string{"sgd", "adam"} {
		optimizer, err := optim.New(name, params, 0.1, backend)
		if err != nil {
			t.Fatal(err)
		}
		param.SetGrad(param.Tensor().Clone())
		optimizer.ZeroGrad()
		if param.Grad() != nil {
			t.Errorf("%s: ZeroGrad should clear gradients", name)
		}
	}
}

func TestNew(t *testing.T) {
	backend := autodiff.New(cpu.New())
	params := []*nn.Parameter[testBackend]{newParam(t, backend, "x", 1.0)}

	opt, err := optim.New("Adam", params, 0.05, backend)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := opt.(*optim.Adam[testBackend]); !ok {
		t.Errorf("New(Adam) returned %T", opt)
	}
	if opt.GetLR() != 0.05 {
		t.Errorf("LR: got %f, want 0.05", opt.GetLR())
	}

	if _, err := optim.New("lbfgs", params, 0.05, backend); err == nil {
		t.Error("expected an error for an unknown optimizer")
	}
}

func TestMultipleParameters(t *testing.T) {
	backend := autodiff.New(cpu.New())
	params := []*nn.Parameter[testBackend]{
		newParam(t, backend, "x1", 1.0, 2.0),
		newParam(t, backend, "x2", 3.0),
	}
	optimizer := optim.NewSGD(params, optim.SGDConfig{LR: 0.1}, backend)

	optimizer.Step(gradsFor(t, params, []float32{1.0, 2.0}, []float32{0.5}))

	p1 := params[0].Tensor().Data()
	if !floatEqual(p1[0], 0.9, 1e-6) || !floatEqual(p1[1], 1.8, 1e-6) {
		t.Errorf("x1: got %v, want [0.9 1.8]", p1)
	}
	if got := params[1].Tensor().Item(); !floatEqual(got, 2.95, 1e-6) {
		t.Errorf("x2: got %f, want 2.95", got)
	}
}

func TestSkipsParametersWithoutGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	params := []*nn.Parameter[testBackend]{newParam(t, backend, "x", 1.0)}
	optimizer := optim.NewAdam(params, optim.AdamConfig{LR: 0.1}, backend)

	optimizer.Step(map[*tensor.RawTensor]*tensor.RawTensor{})
	if got := params[0].Tensor().Item(); got != 1.0 {
		t.Errorf("parameter without gradient changed to %f", got)
	}
}

// TestConvergence_Quadratic minimises f(x) = x² from x = 3.
func TestConvergence_Quadratic(t *testing.T) {
	for _, name := range []string{"sgd", "adam"} {
		t.Run(name, func(t *testing.T) {
			backend := autodiff.New(cpu.New())
			params := []*nn.Parameter[testBackend]{newParam(t, backend, "x", 3.0)}
			optimizer, err := optim.New(name, params, 0.1, backend)
			if err != nil {
				t.Fatal(err)
			}

			for i := 0; i < 100; i++ {
				x := params[0].Tensor().Item()
				optimizer.Step(gradsFor(t, params, []float32{2 * x}))
			}

			if final := params[0].Tensor().Item(); math.Abs(float64(final)) > 0.1 {
				t.Errorf("x = %f, expected close to 0", final)
			}
		})
	}
}

// TestFitRangeSigma learns sigma_r on a step edge: the clean target is the
// output of a small range sigma, training starts from a large one.
func TestFitRangeSigma(t *testing.T) {
	backend := autodiff.New(cpu.New())
	d := dispatch.New(cpu.New())

	data := make([]float32, 24)
	for i := range data {
		if i >= 12 {
			data[i] = 1
		}
	}
	x, err := tensor.FromSlice(data, tensor.Shape{1, 1, 24}, backend)
	if err != nil {
		t.Fatal(err)
	}

	target := nn.NewBilateralFilter(d, bilateral.Sigmas{X: 1, Y: 1, Z: 1, Color: 0.2}, backend)
	want, err := target.Forward(x)
	if err != nil {
		t.Fatal(err)
	}
	want = want.Detach()

	filter := nn.NewBilateralFilter(d, bilateral.Sigmas{X: 1, Y: 1, Z: 1, Color: 0.8}, backend)
	optimizer := optim.NewAdam(filter.Parameters()[3:], optim.AdamConfig{LR: 0.05}, backend)
	mse := nn.NewMSELoss(backend)

	backend.Tape().StartRecording()
	var first, last float32
	for epoch := 0; epoch < 60; epoch++ {
		backend.Tape().Clear()
		out, err := filter.Forward(x)
		if err != nil {
			t.Fatal(err)
		}
		loss := mse.Forward(out, want)
		if epoch == 0 {
			first = loss.Item()
		}
		last = loss.Item()

		optimizer.Step(autodiff.Backward(loss, backend))
		optimizer.ZeroGrad()
		filter.ClampSigmas(0.01)
	}

	if last >= first/10 {
		t.Errorf("loss did not drop: first %g, last %g", first, last)
	}
	if got := filter.Sigmas().Color; got > 0.5 {
		t.Errorf("sigma_r = %f, expected it to move towards 0.2", got)
	}
}
