package optim

import (
	"github.com/born-ml/bilateral/internal/nn"
	"github.com/born-ml/bilateral/internal/tensor"
)

// SGD is gradient descent with optional heavy-ball momentum:
//
//	v = momentum*v + g
//	p -= lr * v
//
// With zero momentum it is plain p -= lr*g.
type SGD[B tensor.Backend] struct {
	paramState[B]
	momentum float32
}

// SGDConfig configures SGD. LR defaults to 0.01, momentum to 0.
type SGDConfig struct {
	LR       float32
	Momentum float32
}

// NewSGD creates an SGD optimizer over params.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, _ B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD[B]{paramState: newParams(params, config.LR), momentum: config.Momentum}
}

// Step implements Optimizer.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	s.each(grads, func(p *nn.Parameter[B], data, grad []float32) {
		if s.momentum == 0 {
			for i, g := range grad {
				data[i] -= s.lr * g
			}
			return
		}
		v := s.slots(p, 1)[0]
		for i, g := range grad {
			v[i] = s.momentum*v[i] + g
			data[i] -= s.lr * v[i]
		}
	})
}
