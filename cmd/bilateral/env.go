package main

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/born-ml/bilateral/internal/backend/cpu"
	"github.com/born-ml/bilateral/internal/backend/webgpu"
	"github.com/born-ml/bilateral/internal/config"
	"github.com/born-ml/bilateral/internal/dispatch"
	"github.com/born-ml/bilateral/internal/metrics"
	"github.com/born-ml/bilateral/internal/tensor"
)

// env holds what every command needs: configuration, logger, metrics and
// the dispatcher with its backends.
type env struct {
	cfg        *config.Config
	log        zerolog.Logger
	registry   *prometheus.Registry
	cpu        *cpu.CPUBackend
	gpu        *webgpu.Backend
	dispatcher *dispatch.Dispatcher
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if backendPref != "" {
		cfg.Dispatch.Backend = backendPref
	}
	return cfg, cfg.Validate()
}

func newLogger(w io.Writer, cfg *config.Config) (zerolog.Logger, error) {
	lvl, err := cfg.LogLevel()
	if err != nil {
		return zerolog.Nop(), err
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().
		Timestamp().
		Logger(), nil
}

func newEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(os.Stderr, cfg)
	if err != nil {
		return nil, err
	}

	e := &env{
		cfg:      cfg,
		log:      log,
		registry: prometheus.NewRegistry(),
		cpu:      cpu.New(),
	}
	e.cpu.SetParallel(cfg.Dispatch.Parallel)
	log.Debug().Stringer("features", e.cpu.Features()).Int("workers", cfg.Dispatch.Parallel.NumWorkers).Msg("cpu backend")

	pref := cfg.Preference()
	opts := []dispatch.Option{
		dispatch.WithLogger(log),
		dispatch.WithMetrics(metrics.New(e.registry)),
		dispatch.WithLimits(cfg.Dispatch.Limits),
		dispatch.WithPreference(pref),
	}
	if webgpu.Compiled && pref != dispatch.PreferCPU {
		gpu, err := webgpu.New()
		switch {
		case err == nil:
			e.gpu = gpu
			opts = append(opts, dispatch.WithGPU(gpu))
		case pref == dispatch.PreferGPU:
			return nil, errors.WithMessage(err, "gpu backend requested")
		default:
			log.Warn().Err(err).Msg("webgpu unavailable, using cpu")
		}
	}
	e.dispatcher = dispatch.New(e.cpu, opts...)
	return e, nil
}

// compute returns the backend that holds the working tensors. Tensors
// created on the WebGPU backend are labelled with its device, which is what
// routes the filter to the GPU in auto mode.
func (e *env) compute() tensor.Backend {
	if e.gpu != nil && e.dispatcher.GPUAvailable() {
		return e.gpu
	}
	return e.cpu
}

// release frees the GPU device. Commands defer it right after newEnv so
// error returns release the device too.
func (e *env) release() {
	if e.gpu != nil {
		e.gpu.Release()
		e.gpu = nil
	}
}

// dumpMetrics prints the gathered samples when --metrics is set.
func (e *env) dumpMetrics(w io.Writer) error {
	if !showMetrics {
		return nil
	}
	return metrics.Dump(w, e.registry)
}
