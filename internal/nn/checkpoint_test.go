package nn_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bilateral/internal/autodiff"
	"github.com/born-ml/bilateral/internal/backend/cpu"
	"github.com/born-ml/bilateral/internal/bilateral"
	"github.com/born-ml/bilateral/internal/dispatch"
	"github.com/born-ml/bilateral/internal/nn"
	"github.com/born-ml/bilateral/internal/serialization"
	"github.com/born-ml/bilateral/internal/tensor"
)

func TestBilateralFilter_StateDict(t *testing.T) {
	backend := autodiff.New(cpu.New())
	d := dispatch.New(cpu.New())
	src := nn.NewBilateralFilter(d, bilateral.Sigmas{X: 1.5, Y: 2, Z: 0.5, Color: 0.25}, backend)

	state := src.StateDict()
	require.Len(t, state, 4)
	assert.Equal(t, []float32{0.25}, state["bilateral.sigma_r"].AsFloat32())

	// The state dict holds copies.
	state["bilateral.sigma_x"].AsFloat32()[0] = 9
	assert.InDelta(t, 1.5, src.Sigmas().X, 1e-7)

	dst := nn.NewBilateralFilter(d, bilateral.Sigmas{X: 1, Y: 1, Z: 1, Color: 1}, backend)
	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	assert.Equal(t, src.Sigmas(), dst.Sigmas())

	partial := src.StateDict()
	delete(partial, "bilateral.sigma_z")
	assert.ErrorContains(t, dst.LoadStateDict(partial), "bilateral.sigma_z")

	invalid := src.StateDict()
	invalid["bilateral.sigma_y"].AsFloat32()[0] = 0
	assert.ErrorIs(t, dst.LoadStateDict(invalid), bilateral.ErrInvalidSigma)
	assert.Equal(t, src.Sigmas(), dst.Sigmas(), "a rejected state dict leaves the filter unchanged")
}

func TestCheckpoint_SaveLoad(t *testing.T) {
	backend := autodiff.New(cpu.New())
	d := dispatch.New(cpu.New())
	path := filepath.Join(t.TempDir(), "sigmas.safetensors")

	trained := nn.NewBilateralFilter(d, bilateral.Sigmas{X: 1.25, Y: 0.75, Z: 1, Color: 0.125}, backend)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ckpt := &nn.Checkpoint[testBackend]{
		Filter:    trained,
		Optimizer: "adam",
		LR:        0.05,
		Epoch:     40,
		Loss:      0.0125,
		CreatedAt: created,
	}
	require.NoError(t, ckpt.Save(path))

	fresh := nn.NewBilateralFilter(d, bilateral.Sigmas{X: 2, Y: 2, Z: 2, Color: 1}, backend)
	got, err := nn.LoadCheckpoint(path, fresh)
	require.NoError(t, err)
	assert.Equal(t, trained.Sigmas(), fresh.Sigmas())
	assert.Equal(t, "adam", got.Optimizer)
	assert.InDelta(t, 0.05, got.LR, 1e-7)
	assert.Equal(t, 40, got.Epoch)
	assert.Equal(t, 0.0125, got.Loss)
	assert.True(t, created.Equal(got.CreatedAt))

	s, err := nn.ReadSigmas(path)
	require.NoError(t, err)
	assert.Equal(t, trained.Sigmas(), s)
}

func TestReadSigmas_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := nn.ReadSigmas(filepath.Join(dir, "missing.safetensors"))
	assert.Error(t, err)

	raw, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	raw.AsFloat32()[0] = 1
	path := filepath.Join(dir, "partial.safetensors")
	require.NoError(t, serialization.WriteFile(path, map[string]*tensor.RawTensor{"bilateral.sigma_x": raw}, nil))
	_, err = nn.ReadSigmas(path)
	assert.ErrorIs(t, err, serialization.ErrTensorNotFound)
}
