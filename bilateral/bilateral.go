// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package bilateral is the entry point of the trainable bilateral filter.
//
// A Dispatcher runs the filter forward and backward on the CPU or the GPU.
// Calls go to the GPU when it is compiled in, available, and the selecting
// tensor (the input for Forward, the output gradient for Backward) lives on
// it. GPU calls are checked against the GPU limits first:
//
//	Bilateral filtering not implemented for channel count > 16
//	Bilateral filtering not implemented for spatial dimension > 3
//
// Example:
//
//	d := bilateral.New(cpu.New())
//	res, err := d.Forward(volume.Raw(), bilateral.Sigmas{X: 2, Y: 2, Z: 2, Color: 0.1})
//	filtered := res.Output
//	dOdSigmaR := res.DODSigmaColor
package bilateral

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/born-ml/bilateral/internal/bilateral"
	"github.com/born-ml/bilateral/internal/dispatch"
	"github.com/born-ml/bilateral/internal/metrics"
)

// Sigmas holds the spatial bandwidths along x, y, z and the colour bandwidth.
type Sigmas = bilateral.Sigmas

// Limits are the compiled-in capacity of a GPU kernel.
type Limits = bilateral.Limits

// DefaultGPULimits are the limits of the WebGPU shaders.
var DefaultGPULimits = bilateral.DefaultGPULimits

// Kernel is a compute backend able to run the bilateral filter.
type Kernel = bilateral.Kernel

// GPUKernel is a kernel on a device that may be absent at run time.
type GPUKernel = dispatch.GPUKernel

// ForwardResult holds the seven tensors of a forward pass.
type ForwardResult = bilateral.ForwardResult

// BackwardArgs are the tensors a backward pass consumes.
type BackwardArgs = bilateral.BackwardArgs

// LimitError reports an input the GPU kernels cannot handle.
type LimitError = bilateral.LimitError

// Errors returned by the dispatcher and the kernels.
var (
	ErrChannelLimit      = bilateral.ErrChannelLimit
	ErrSpatialLimit      = bilateral.ErrSpatialLimit
	ErrNotContiguous     = bilateral.ErrNotContiguous
	ErrInvalidSigma      = bilateral.ErrInvalidSigma
	ErrInvalidRank       = bilateral.ErrInvalidRank
	ErrShapeMismatch     = bilateral.ErrShapeMismatch
	ErrDTypeMismatch     = bilateral.ErrDTypeMismatch
	ErrUnsupportedDType  = bilateral.ErrUnsupportedDType
	ErrGPUUnavailable    = bilateral.ErrGPUUnavailable
	ErrMissingActivation = bilateral.ErrMissingActivation
)

// WindowSize returns the window length used for a spatial sigma.
func WindowSize(sigma float64) int {
	return bilateral.WindowSize(sigma)
}

// Dispatcher selects a kernel per call.
type Dispatcher = dispatch.Dispatcher

// Option configures a Dispatcher.
type Option = dispatch.Option

// Preference overrides automatic backend selection.
type Preference = dispatch.Preference

// Backend preferences.
const (
	PreferAuto = dispatch.PreferAuto
	PreferCPU  = dispatch.PreferCPU
	PreferGPU  = dispatch.PreferGPU
)

// Metrics are the dispatcher's Prometheus collectors.
type Metrics = metrics.Metrics

// New creates a dispatcher with cpu as the fallback kernel.
func New(cpu Kernel, opts ...Option) *Dispatcher {
	return dispatch.New(cpu, opts...)
}

// NewMetrics registers the dispatcher collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return metrics.New(reg)
}

// ParsePreference parses "auto", "cpu" or "gpu".
func ParsePreference(s string) (Preference, error) {
	return dispatch.ParsePreference(s)
}

// WithGPU sets the GPU kernel.
func WithGPU(k GPUKernel) Option {
	return dispatch.WithGPU(k)
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return dispatch.WithLogger(log)
}

// WithMetrics records dispatch counts, latencies and rejections.
func WithMetrics(m *Metrics) Option {
	return dispatch.WithMetrics(m)
}

// WithLimits tightens the GPU limits.
func WithLimits(l Limits) Option {
	return dispatch.WithLimits(l)
}

// WithPreference sets the backend preference.
func WithPreference(p Preference) Option {
	return dispatch.WithPreference(p)
}
