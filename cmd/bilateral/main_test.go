package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bilateral/internal/config"
	"github.com/born-ml/bilateral/internal/nn"
	"github.com/born-ml/bilateral/internal/tensor"
	"github.com/born-ml/bilateral/internal/volume"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Train.Size = []int{12, 10}
	cfg.Train.Epochs = 3
	cfg.Log.Level = "warn"
	mutate(cfg)
	path := filepath.Join(t.TempDir(), "bilateral.yaml")
	require.NoError(t, config.Save(path, cfg))
	return path
}

func TestParseShape(t *testing.T) {
	shape, err := parseShape("1, 2,16,8")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 2, 16, 8}, shape)

	for _, bad := range []string{"", "1,x", "1,0,4"} {
		_, err := parseShape(bad)
		assert.Error(t, err, bad)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

func TestInfo(t *testing.T) {
	out, err := run(t, "info", "--backend", "cpu", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "max channels")
	assert.Contains(t, out, "gpu compiled")
	assert.Contains(t, out, "gpu tensors run")
	assert.Contains(t, out, "CPU", "a forced cpu backend routes gpu tensors to the cpu")
}

func TestFilter_FileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.raw")
	out := filepath.Join(dir, "out.raw")

	v, err := volume.Phantom([]int{9, 7}, 2)
	require.NoError(t, err)
	require.NoError(t, v.WriteFile(in))

	stdout, err := run(t, "filter", "--backend", "cpu", "--log-level", "error",
		"--input", in, "--shape", "1,2,9,7", "--output", out, "--sigma-r", "0.05", "--plot", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, stdout, `bilateral_dispatch_total{backend="CPU",op="forward"} 1`)

	got, err := volume.ReadFile(out, v.Shape)
	require.NoError(t, err)
	// A piecewise constant phantom survives a small range sigma.
	assert.InDeltaSlice(t, v.Data, got.Data, 1e-3)
}

func TestFilter_SafeTensorsNeedsNoShape(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.safetensors")
	out := filepath.Join(dir, "out.safetensors")

	v, err := volume.Phantom([]int{8, 6, 4}, 1)
	require.NoError(t, err)
	require.NoError(t, v.WriteFile(in))

	_, err = run(t, "filter", "--backend", "cpu", "--log-level", "error", "--input", in, "--output", out)
	require.NoError(t, err)

	got, err := volume.ReadFile(out, nil)
	require.NoError(t, err)
	assert.Equal(t, v.Shape, got.Shape)
}

func TestFilter_RequiresShape(t *testing.T) {
	_, err := run(t, "filter", "--backend", "cpu", "--input", "missing.raw")
	assert.Error(t, err)
}

func TestFilter_Phantom(t *testing.T) {
	cfgPath := writeConfig(t, func(*config.Config) {})
	_, err := run(t, "filter", "--config", cfgPath, "--backend", "cpu")
	assert.NoError(t, err)
}

func TestFilter_MetricsOnlyOnSuccess(t *testing.T) {
	cfgPath := writeConfig(t, func(*config.Config) {})

	out, err := run(t, "filter", "--config", cfgPath, "--backend", "cpu", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, `bilateral_dispatch_total{backend="CPU",op="forward"} 1`)

	out, err = run(t, "filter", "--config", cfgPath, "--backend", "cpu", "--metrics", "--checkpoint", "missing.safetensors")
	require.Error(t, err)
	assert.NotContains(t, out, "bilateral_dispatch_total")
}

func TestEnv_ReleaseTwice(t *testing.T) {
	configFile, logLevel, backendPref = "", "error", "cpu"
	e, err := newEnv()
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		e.release()
		e.release()
	})
	assert.Nil(t, e.gpu)
}

func TestTrain_SavesSigmas(t *testing.T) {
	cfgPath := writeConfig(t, func(c *config.Config) { c.Filter.Sigmas.Color = 1.5 })
	saved := filepath.Join(t.TempDir(), "learned.yaml")

	_, err := run(t, "train", "--config", cfgPath, "--backend", "cpu", "--save", saved, "--plot")
	require.NoError(t, err)

	cfg, err := config.Load(saved)
	require.NoError(t, err)
	assert.NotEqual(t, 1.5, cfg.Filter.Sigmas.Color, "the range sigma must have moved")
}

func TestTrain_CheckpointFeedsFilter(t *testing.T) {
	cfgPath := writeConfig(t, func(*config.Config) {})
	ckpt := filepath.Join(t.TempDir(), "sigmas.safetensors")

	_, err := run(t, "train", "--config", cfgPath, "--backend", "cpu", "--checkpoint", ckpt)
	require.NoError(t, err)

	s, err := nn.ReadSigmas(ckpt)
	require.NoError(t, err)
	assert.NoError(t, s.Validate())

	_, err = run(t, "filter", "--config", cfgPath, "--backend", "cpu", "--checkpoint", ckpt)
	assert.NoError(t, err)

	_, err = run(t, "filter", "--config", cfgPath, "--backend", "cpu", "--checkpoint", ckpt+".missing")
	assert.Error(t, err)
}

func TestTrain_InvalidOptimizer(t *testing.T) {
	cfgPath := writeConfig(t, func(*config.Config) {})
	_, err := run(t, "train", "--config", cfgPath, "--backend", "cpu", "--optimizer", "lbfgs")
	assert.Error(t, err)
}

func TestInvalidBackend(t *testing.T) {
	_, err := run(t, "info", "--backend", "cuda")
	assert.Error(t, err)
}
