package optim

import (
	"math"

	"github.com/born-ml/bilateral/internal/nn"
	"github.com/born-ml/bilateral/internal/tensor"
)

// Adam is the optimizer of Kingma & Ba with bias-corrected moments:
//
//	m = β1*m + (1-β1)*g
//	v = β2*v + (1-β2)*g²
//	p -= lr * (m/(1-β1^t)) / (sqrt(v/(1-β2^t)) + eps)
//
// The range sigma and the spatial sigmas see gradients of very different
// magnitude; the per-parameter step size evens that out.
type Adam[B tensor.Backend] struct {
	paramState[B]
	beta1, beta2 float32
	eps          float32
	t            int
}

// AdamConfig configures Adam. Zero fields take the defaults LR 0.001,
// Betas {0.9, 0.999}, Eps 1e-8.
type AdamConfig struct {
	LR    float32
	Betas [2]float32
	Eps   float32
}

// NewAdam creates an Adam optimizer over params.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, _ B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam[B]{
		paramState: newParams(params, config.LR),
		beta1:      config.Betas[0],
		beta2:      config.Betas[1],
		eps:        config.Eps,
	}
}

// Step implements Optimizer.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++
	c1 := float32(1 - math.Pow(float64(a.beta1), float64(a.t)))
	c2 := float32(1 - math.Pow(float64(a.beta2), float64(a.t)))

	a.each(grads, func(p *nn.Parameter[B], data, grad []float32) {
		s := a.slots(p, 2)
		m, v := s[0], s[1]
		for i, g := range grad {
			m[i] = a.beta1*m[i] + (1-a.beta1)*g
			v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
			data[i] -= a.lr * (m[i] / c1) / (float32(math.Sqrt(float64(v[i]/c2))) + a.eps)
		}
	})
}

// GetTimestep returns the number of steps taken.
func (a *Adam[B]) GetTimestep() int {
	return a.t
}
