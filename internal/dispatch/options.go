package dispatch

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/born-ml/bilateral/internal/bilateral"
	"github.com/born-ml/bilateral/internal/metrics"
)

// Preference overrides automatic backend selection.
type Preference int

// Backend preferences.
const (
	// PreferAuto uses the GPU when it is available and the tensor lives on it.
	PreferAuto Preference = iota
	// PreferCPU always runs on the CPU.
	PreferCPU
	// PreferGPU always runs on the GPU and fails when none is usable.
	PreferGPU
)

func (p Preference) String() string {
	switch p {
	case PreferAuto:
		return "auto"
	case PreferCPU:
		return "cpu"
	case PreferGPU:
		return "gpu"
	default:
		return "unknown"
	}
}

// ParsePreference parses "auto", "cpu" or "gpu" (case-insensitive).
func ParsePreference(s string) (Preference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return PreferAuto, nil
	case "cpu":
		return PreferCPU, nil
	case "gpu", "webgpu":
		return PreferGPU, nil
	default:
		return PreferAuto, errors.Errorf("unknown backend preference %q (want auto, cpu or gpu)", s)
	}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithGPU registers the GPU kernel. It is only used when GPU support is
// compiled into the binary.
func WithGPU(k GPUKernel) Option {
	return func(d *Dispatcher) {
		d.gpu = k
	}
}

// WithLogger sets the logger used for dispatch decisions.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = log
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithLimits tightens the GPU kernel's own limits.
func WithLimits(l bilateral.Limits) Option {
	return func(d *Dispatcher) {
		d.limits = &l
	}
}

// WithPreference forces or relaxes backend selection.
func WithPreference(p Preference) Option {
	return func(d *Dispatcher) {
		d.pref = p
	}
}
