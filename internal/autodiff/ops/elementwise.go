package ops

import "github.com/born-ml/bilateral/internal/tensor"

// recorded holds the tensors every tape entry keeps.
type recorded struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

func record(output *tensor.RawTensor, inputs ...*tensor.RawTensor) recorded {
	return recorded{inputs: inputs, output: output}
}

// Inputs returns the recorded inputs in call order.
func (r recorded) Inputs() []*tensor.RawTensor { return r.inputs }

// Output returns the recorded result.
func (r recorded) Output() *tensor.RawTensor { return r.output }

// AddOp is a + b. Both inputs receive the output gradient; each gets its own
// copy so accumulation on the tape cannot alias.
type AddOp struct{ recorded }

// NewAddOp records a + b.
func NewAddOp(a, b, output *tensor.RawTensor) *AddOp {
	return &AddOp{record(output, a, b)}
}

// Backward implements Operation.
func (op *AddOp) Backward(g *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{g.Clone(), g.Clone()}
}

// SubOp is a - b.
type SubOp struct{ recorded }

// NewSubOp records a - b.
func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{record(output, a, b)}
}

// Backward implements Operation.
func (op *SubOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{g.Clone(), negateGradient(g, backend)}
}

// MulOp is the element-wise product a * b; each input's gradient is the
// output gradient times the other input.
type MulOp struct{ recorded }

// NewMulOp records a * b.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{record(output, a, b)}
}

// Backward implements Operation.
func (op *MulOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{backend.Mul(g, b), backend.Mul(g, a)}
}

// MulScalarOp is x * s for a constant s that takes no gradient.
type MulScalarOp struct {
	recorded
	scalar any
}

// NewMulScalarOp records x * scalar.
func NewMulScalarOp(x, output *tensor.RawTensor, scalar any) *MulScalarOp {
	return &MulScalarOp{recorded: record(output, x), scalar: scalar}
}

// Backward implements Operation.
func (op *MulScalarOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(g, op.scalar)}
}

// SumOp reduces x to shape [1]. Its gradient spreads the single output
// gradient over every element of x.
type SumOp struct{ recorded }

// NewSumOp records sum(x).
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{record(output, x)}
}

// Backward implements Operation.
func (op *SumOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	return []*tensor.RawTensor{Filled(x.Shape(), x.DType(), ScalarValue(g), backend)}
}

// ReshapeOp changes the shape of x; the gradient is reshaped back.
type ReshapeOp struct {
	recorded
	from tensor.Shape
}

// NewReshapeOp records a reshape of input into output.
func NewReshapeOp(input, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{recorded: record(output, input), from: input.Shape()}
}

// Backward implements Operation.
func (op *ReshapeOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(g, op.from)}
}
