// Package dispatch routes bilateral filter calls to the CPU or GPU kernel.
//
// A call goes to the GPU when GPU support is compiled in, a device is
// available and the selecting tensor (the input for Forward, the output
// gradient for Backward) resides on it. On that path the tensor is checked
// against the GPU limits before any kernel runs. Kernel results are returned
// as produced.
package dispatch

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/born-ml/bilateral/internal/backend/webgpu"
	"github.com/born-ml/bilateral/internal/bilateral"
	"github.com/born-ml/bilateral/internal/metrics"
	"github.com/born-ml/bilateral/internal/tensor"
)

// GPUKernel is a bilateral kernel backed by a device that may be absent at
// run time and that has fixed capacity limits.
type GPUKernel interface {
	bilateral.Kernel
	Available() bool
	Limits() bilateral.Limits
}

// Dispatcher selects a kernel per call.
type Dispatcher struct {
	cpu      bilateral.Kernel
	gpu      GPUKernel
	compiled bool
	limits   *bilateral.Limits
	pref     Preference
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

// New creates a dispatcher with cpu as the fallback kernel.
func New(cpu bilateral.Kernel, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cpu:      cpu,
		compiled: webgpu.Compiled,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.log.Info().
		Str("cpu", cpu.Name()).
		Bool("gpu_compiled", d.compiled).
		Bool("gpu_available", d.GPUAvailable()).
		Stringer("preference", d.pref).
		Msg("bilateral dispatcher ready")
	return d
}

// CPU returns the CPU kernel.
func (d *Dispatcher) CPU() bilateral.Kernel {
	return d.cpu
}

// GPU returns the registered GPU kernel, or nil.
func (d *Dispatcher) GPU() GPUKernel {
	return d.gpu
}

// GPUCompiled reports whether GPU support is built into the binary.
func (d *Dispatcher) GPUCompiled() bool {
	return d.compiled
}

// GPUAvailable reports whether the GPU path can be taken at all.
func (d *Dispatcher) GPUAvailable() bool {
	return d.compiled && d.gpu != nil && d.gpu.Available()
}

// Preference returns the configured backend preference.
func (d *Dispatcher) Preference() Preference {
	return d.pref
}

// Limits returns the limits enforced on the GPU path. Configured limits can
// only tighten what the registered GPU kernel supports.
func (d *Dispatcher) Limits() bilateral.Limits {
	l := bilateral.DefaultGPULimits
	if d.gpu != nil {
		l = d.gpu.Limits()
	}
	if d.limits != nil {
		l.MaxChannels = min(l.MaxChannels, d.limits.MaxChannels)
		l.MaxSpatialDims = min(l.MaxSpatialDims, d.limits.MaxSpatialDims)
	}
	return l
}

// Select returns the kernel a call selected by t would run on. On the GPU
// path it also applies the contiguity and limit checks.
func (d *Dispatcher) Select(t *tensor.RawTensor) (bilateral.Kernel, error) {
	if t == nil {
		return nil, bilateral.ErrMissingActivation
	}
	if !d.wantGPU(t) {
		if d.pref == PreferGPU {
			return nil, errors.WithMessagef(bilateral.ErrGPUUnavailable,
				"gpu backend forced (compiled=%t)", d.compiled)
		}
		return d.cpu, nil
	}
	if err := d.checkGPU(t); err != nil {
		return nil, err
	}
	return d.gpu, nil
}

func (d *Dispatcher) wantGPU(t *tensor.RawTensor) bool {
	switch d.pref {
	case PreferCPU:
		return false
	case PreferGPU:
		return d.GPUAvailable()
	default:
		return d.GPUAvailable() && t.Device() == tensor.WebGPU
	}
}

func (d *Dispatcher) checkGPU(t *tensor.RawTensor) error {
	if !t.IsContiguous() {
		return errors.WithMessagef(bilateral.ErrNotContiguous,
			"shape %v with strides %v", t.Shape(), t.Strides())
	}
	return d.Limits().Check(t.Shape())
}

// Forward filters input and returns the seven forward tensors produced by
// the selected kernel.
func (d *Dispatcher) Forward(input *tensor.RawTensor, s bilateral.Sigmas) (*bilateral.ForwardResult, error) {
	const op = "forward"

	k, err := d.route(op, input)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := k.BilateralForward(input, s)
	if err != nil {
		d.metrics.ObserveFailure(op, k.Name())
		return nil, errors.WithMessagef(err, "%s on %s", op, k.Name())
	}
	d.metrics.ObserveDispatch(op, k.Name(), time.Since(start))
	return res, nil
}

// Backward returns the gradient with respect to the filter input. The
// output gradient decides the backend.
func (d *Dispatcher) Backward(args *bilateral.BackwardArgs, s bilateral.Sigmas) (*tensor.RawTensor, error) {
	const op = "backward"

	if args == nil {
		return nil, bilateral.ErrMissingActivation
	}
	k, err := d.route(op, args.GradOutput)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	grad, err := k.BilateralBackward(args, s)
	if err != nil {
		d.metrics.ObserveFailure(op, k.Name())
		return nil, errors.WithMessagef(err, "%s on %s", op, k.Name())
	}
	d.metrics.ObserveDispatch(op, k.Name(), time.Since(start))
	return grad, nil
}

func (d *Dispatcher) route(op string, t *tensor.RawTensor) (bilateral.Kernel, error) {
	k, err := d.Select(t)
	if err != nil {
		reason := rejectReason(err)
		d.metrics.ObserveRejection(op, reason)
		d.log.Debug().Err(err).Str("op", op).Str("reason", reason).Msg("bilateral dispatch rejected")
		return nil, err
	}

	d.log.Debug().
		Str("op", op).
		Str("backend", k.Name()).
		Stringer("device", t.Device()).
		Ints("shape", t.Shape()).
		Msg("bilateral dispatch")
	return k, nil
}

func rejectReason(err error) string {
	var limitErr *bilateral.LimitError
	switch {
	case errors.As(err, &limitErr):
		return limitErr.Reason()
	case errors.Is(err, bilateral.ErrNotContiguous):
		return "not_contiguous"
	case errors.Is(err, bilateral.ErrGPUUnavailable):
		return "gpu_unavailable"
	default:
		return "invalid"
	}
}
