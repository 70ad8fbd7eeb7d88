// Package config loads and saves the YAML configuration shared by the
// filter and train commands.
package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/bilateral/internal/bilateral"
	"github.com/born-ml/bilateral/internal/dispatch"
	"github.com/born-ml/bilateral/internal/parallel"
)

const (
	DefaultSigmaSpatial = 2.0
	DefaultSigmaColor   = 0.5
	DefaultEpochs       = 40
	DefaultLR           = 0.05
	DefaultNoise        = 0.1
	DefaultPhantomSize  = 32
	DefaultMinSigma     = 0.05
)

type Config struct {
	Filter   FilterConfig   `yaml:"filter"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Train    TrainConfig    `yaml:"train"`
	Log      LogConfig      `yaml:"log"`
}

type FilterConfig struct {
	Sigmas bilateral.Sigmas `yaml:"sigmas"`
}

type DispatchConfig struct {
	// Backend is auto, cpu or gpu.
	Backend  string           `yaml:"backend"`
	Limits   bilateral.Limits `yaml:"limits"`
	Parallel parallel.Config  `yaml:"parallel"`
}

type TrainConfig struct {
	Epochs    int     `yaml:"epochs"`
	LR        float64 `yaml:"lr"`
	Optimizer string  `yaml:"optimizer"`
	// Noise is the standard deviation of the Gaussian noise added to the phantom.
	Noise    float64 `yaml:"noise"`
	Size     []int   `yaml:"size"`
	Channels int     `yaml:"channels"`
	Seed     int64   `yaml:"seed"`
	MinSigma float64 `yaml:"min_sigma"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		Filter: FilterConfig{
			Sigmas: bilateral.Sigmas{
				X:     DefaultSigmaSpatial,
				Y:     DefaultSigmaSpatial,
				Z:     DefaultSigmaSpatial,
				Color: DefaultSigmaColor,
			},
		},
		Dispatch: DispatchConfig{
			Backend:  "auto",
			Limits:   bilateral.DefaultGPULimits,
			Parallel: parallel.DefaultConfig(),
		},
		Train: TrainConfig{
			Epochs:    DefaultEpochs,
			LR:        DefaultLR,
			Optimizer: "adam",
			Noise:     DefaultNoise,
			Size:      []int{DefaultPhantomSize, DefaultPhantomSize},
			Channels:  1,
			Seed:      1,
			MinSigma:  DefaultMinSigma,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path on top of the defaults, so a file only needs the keys it changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "config %s", path)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "write config")
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if err := c.Filter.Sigmas.Validate(); err != nil {
		return errors.WithMessage(err, "filter")
	}
	if _, err := dispatch.ParsePreference(c.Dispatch.Backend); err != nil {
		return errors.WithMessage(err, "dispatch")
	}
	if c.Dispatch.Limits.MaxChannels < 1 || c.Dispatch.Limits.MaxSpatialDims < 1 {
		return errors.Errorf("dispatch: limits must be positive, got %+v", c.Dispatch.Limits)
	}
	if c.Train.Epochs < 1 {
		return errors.Errorf("train: epochs must be positive, got %d", c.Train.Epochs)
	}
	if c.Train.LR <= 0 {
		return errors.Errorf("train: lr must be positive, got %g", c.Train.LR)
	}
	switch strings.ToLower(c.Train.Optimizer) {
	case "adam", "sgd":
	default:
		return errors.Errorf("train: unknown optimizer %q", c.Train.Optimizer)
	}
	if c.Train.Noise < 0 {
		return errors.Errorf("train: noise must not be negative, got %g", c.Train.Noise)
	}
	if n := len(c.Train.Size); n < 1 || n > bilateral.MaxSpatialDims {
		return errors.Errorf("train: size needs 1 to %d dimensions, got %v", bilateral.MaxSpatialDims, c.Train.Size)
	}
	for _, s := range c.Train.Size {
		if s < 1 {
			return errors.Errorf("train: size must be positive, got %v", c.Train.Size)
		}
	}
	if c.Train.Channels < 1 {
		return errors.Errorf("train: channels must be positive, got %d", c.Train.Channels)
	}
	if c.Train.MinSigma <= 0 {
		return errors.Errorf("train: min_sigma must be positive, got %g", c.Train.MinSigma)
	}
	if _, err := c.LogLevel(); err != nil {
		return errors.WithMessage(err, "log")
	}
	return nil
}

// Preference returns the parsed dispatch backend.
func (c *Config) Preference() dispatch.Preference {
	p, err := dispatch.ParsePreference(c.Dispatch.Backend)
	if err != nil {
		return dispatch.PreferAuto
	}
	return p
}

// LogLevel parses the configured zerolog level. An empty level means info.
func (c *Config) LogLevel() (zerolog.Level, error) {
	if c.Log.Level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(err, "level %q", c.Log.Level)
	}
	return lvl, nil
}
