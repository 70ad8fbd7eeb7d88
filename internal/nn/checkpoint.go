package nn

import (
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/born-ml/bilateral/internal/bilateral"
	"github.com/born-ml/bilateral/internal/serialization"
	"github.com/born-ml/bilateral/internal/tensor"
)

// Checkpoint metadata keys.
const (
	metaOptimizer = "optimizer"
	metaLR        = "lr"
	metaEpoch     = "epoch"
	metaLoss      = "loss"
	metaCreatedAt = "created_at"
)

// Checkpoint is a snapshot of a trained filter.
//
// The sigmas are stored as SafeTensors entries named after the filter
// parameters, the training state as string metadata.
//
// Example:
//
//	ckpt := &nn.Checkpoint[B]{Filter: filter, Optimizer: "adam", LR: 0.05, Epoch: 200, Loss: loss}
//	err := ckpt.Save("sigmas.safetensors")
//
//	ckpt, err := nn.LoadCheckpoint("sigmas.safetensors", filter)
type Checkpoint[B BilateralBackend] struct {
	Filter    *BilateralFilter[B]
	Optimizer string
	LR        float32
	Epoch     int
	Loss      float64
	CreatedAt time.Time
}

// Save writes the checkpoint to path.
func (c *Checkpoint[B]) Save(path string) error {
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	meta := map[string]string{
		metaOptimizer: c.Optimizer,
		metaLR:        strconv.FormatFloat(float64(c.LR), 'g', -1, 32),
		metaEpoch:     strconv.Itoa(c.Epoch),
		metaLoss:      strconv.FormatFloat(c.Loss, 'g', -1, 64),
		metaCreatedAt: created.Format(time.RFC3339),
	}
	return errors.Wrap(serialization.WriteFile(path, c.Filter.StateDict(), meta), "save checkpoint")
}

// LoadCheckpoint restores the sigmas of filter from path and returns the
// stored training state.
func LoadCheckpoint[B BilateralBackend](path string, filter *BilateralFilter[B]) (*Checkpoint[B], error) {
	file, err := serialization.ReadFile(path, tensor.CPU)
	if err != nil {
		return nil, errors.Wrap(err, "load checkpoint")
	}
	if err := filter.LoadStateDict(file.Tensors); err != nil {
		return nil, errors.Wrap(err, path)
	}

	c := &Checkpoint[B]{Filter: filter, Optimizer: file.Metadata[metaOptimizer]}
	if v, ok := file.Metadata[metaLR]; ok {
		lr, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "checkpoint %s", metaLR)
		}
		c.LR = float32(lr)
	}
	if v, ok := file.Metadata[metaEpoch]; ok {
		if c.Epoch, err = strconv.Atoi(v); err != nil {
			return nil, errors.Wrapf(err, "checkpoint %s", metaEpoch)
		}
	}
	if v, ok := file.Metadata[metaLoss]; ok {
		if c.Loss, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, errors.Wrapf(err, "checkpoint %s", metaLoss)
		}
	}
	if v, ok := file.Metadata[metaCreatedAt]; ok {
		if c.CreatedAt, err = time.Parse(time.RFC3339, v); err != nil {
			return nil, errors.Wrapf(err, "checkpoint %s", metaCreatedAt)
		}
	}
	return c, nil
}

// ReadSigmas reads the sigmas stored in a checkpoint without building a filter.
func ReadSigmas(path string) (bilateral.Sigmas, error) {
	file, err := serialization.ReadFile(path, tensor.CPU)
	if err != nil {
		return bilateral.Sigmas{}, errors.Wrap(err, "read sigmas")
	}
	var s bilateral.Sigmas
	for _, entry := range []struct {
		name string
		dst  *float64
	}{
		{paramSigmaX, &s.X},
		{paramSigmaY, &s.Y},
		{paramSigmaZ, &s.Z},
		{paramSigmaR, &s.Color},
	} {
		raw, err := file.Tensor(entry.name)
		if err != nil {
			return bilateral.Sigmas{}, errors.Wrap(err, path)
		}
		if *entry.dst, err = scalarOf(raw); err != nil {
			return bilateral.Sigmas{}, errors.Wrap(err, entry.name)
		}
	}
	return s, errors.Wrap(s.Validate(), path)
}

// scalarOf reads the single value of a float32 or float64 tensor.
func scalarOf(raw *tensor.RawTensor) (float64, error) {
	if raw.NumElements() != 1 {
		return 0, errors.Errorf("expected one element, got shape %v", raw.Shape())
	}
	switch raw.DType() {
	case tensor.Float32:
		return float64(raw.AsFloat32()[0]), nil
	case tensor.Float64:
		return raw.AsFloat64()[0], nil
	default:
		return 0, errors.Errorf("unsupported dtype %s", raw.DType())
	}
}
