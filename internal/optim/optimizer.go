// Package optim fits the filter sigmas from the gradients of a recorded loss.
//
// Both optimizers keep per-parameter state on the host and update the
// parameter data in place, so nothing they do is recorded on the tape.
//
//	optimizer := optim.NewAdam(filter.Parameters(), optim.AdamConfig{LR: 0.05}, backend)
//	for epoch := range epochs {
//	    backend.Tape().Clear()
//	    out, err := filter.Forward(noisy)
//	    loss := mse.Forward(out, clean)
//	    optimizer.Step(autodiff.Backward(loss, backend))
//	    optimizer.ZeroGrad()
//	    filter.ClampSigmas(minSigma)
//	}
package optim

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/bilateral/internal/nn"
	"github.com/born-ml/bilateral/internal/tensor"
)

// Optimizer updates parameters from a gradient map produced by
// autodiff.Backward.
type Optimizer interface {
	// Step updates every parameter that has an entry in grads.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears the gradients stored on the parameters.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// Config is the part of the configuration every optimizer shares.
type Config struct {
	LR float32
}

// New builds an optimizer by name. "sgd" gets momentum 0.9, "adam" the
// default betas.
func New[B tensor.Backend](name string, params []*nn.Parameter[B], lr float32, backend B) (Optimizer, error) {
	switch strings.ToLower(name) {
	case "adam":
		return NewAdam(params, AdamConfig{LR: lr}, backend), nil
	case "sgd":
		return NewSGD(params, SGDConfig{LR: lr, Momentum: 0.9}, backend), nil
	default:
		return nil, errors.Errorf("unknown optimizer %q (want adam or sgd)", name)
	}
}

// paramState is the bookkeeping shared by SGD and Adam.
type paramState[B tensor.Backend] struct {
	list  []*nn.Parameter[B]
	lr    float32
	state map[*nn.Parameter[B]][][]float32
}

func newParams[B tensor.Backend](list []*nn.Parameter[B], lr float32) paramState[B] {
	return paramState[B]{list: list, lr: lr, state: make(map[*nn.Parameter[B]][][]float32, len(list))}
}

// slots returns n zero-initialised buffers the size of p, created on first use.
func (ps *paramState[B]) slots(p *nn.Parameter[B], n int) [][]float32 {
	s, ok := ps.state[p]
	if !ok {
		s = make([][]float32, n)
		for i := range s {
			s[i] = make([]float32, p.Tensor().NumElements())
		}
		ps.state[p] = s
	}
	return s
}

// each calls fn with the data and float32 gradient of every parameter that
// took part in the loss.
func (ps *paramState[B]) each(grads map[*tensor.RawTensor]*tensor.RawTensor, fn func(p *nn.Parameter[B], data, grad []float32)) {
	for _, p := range ps.list {
		if p == nil {
			continue
		}
		g := grads[p.Tensor().Raw()]
		if g == nil {
			continue
		}
		fn(p, p.Tensor().Data(), gradient32(g.Contiguous()))
	}
}

// ZeroGrad clears the gradients of all parameters.
func (ps *paramState[B]) ZeroGrad() {
	for _, p := range ps.list {
		p.ZeroGrad()
	}
}

// GetLR returns the learning rate.
func (ps *paramState[B]) GetLR() float32 { return ps.lr }

// SetLR changes the learning rate for subsequent steps.
func (ps *paramState[B]) SetLR(lr float32) { ps.lr = lr }

func gradient32(g *tensor.RawTensor) []float32 {
	if g.DType() == tensor.Float32 {
		return g.AsFloat32()
	}
	src := g.AsFloat64()
	out := make([]float32, len(src))
	for i, v := range src {
		out[i] = float32(v)
	}
	return out
}
