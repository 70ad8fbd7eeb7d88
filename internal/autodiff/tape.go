package autodiff

import (
	"github.com/born-ml/bilateral/internal/autodiff/ops"
	"github.com/born-ml/bilateral/internal/tensor"
)

// GradientTape is a reverse-mode tape. Operations are appended while
// recording is on, and Backward replays them last to first.
//
// A training step looks like:
//
//	tape.StartRecording()
//	for epoch := range epochs {
//		tape.Clear()
//		loss := ...            // filter + loss, recorded
//		grads := tape.Backward(ones, backend)
//	}
type GradientTape struct {
	operations []ops.Operation
	recording  bool
}

// NewGradientTape creates an empty tape that is not recording.
func NewGradientTape() *GradientTape {
	return &GradientTape{operations: make([]ops.Operation, 0, 16)}
}

// StartRecording turns recording on.
func (t *GradientTape) StartRecording() { t.recording = true }

// StopRecording turns recording off. Recorded operations are kept.
func (t *GradientTape) StopRecording() { t.recording = false }

// IsRecording reports whether Record currently appends.
func (t *GradientTape) IsRecording() bool { return t.recording }

// Record appends op when the tape is recording.
func (t *GradientTape) Record(op ops.Operation) {
	if !t.recording {
		return
	}
	t.operations = append(t.operations, op)
}

// Clear drops the recorded operations but keeps the recording state.
func (t *GradientTape) Clear() { t.operations = t.operations[:0] }

// Operations returns the recorded operations in execution order.
func (t *GradientTape) Operations() []ops.Operation { return t.operations }

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int { return len(t.operations) }

// Backward seeds the output of the last recorded operation with outputGrad
// and propagates gradients to every tensor that fed the tape. A tensor used
// more than once gets the sum of its gradients.
//
// Recording is paused while gradients are computed, so the backward work
// never lands on the tape.
func (t *GradientTape) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	n := len(t.operations)
	if n == 0 {
		return grads
	}

	defer func(was bool) { t.recording = was }(t.recording)
	t.recording = false

	grads[t.operations[n-1].Output()] = outputGrad
	for i := n - 1; i >= 0; i-- {
		op := t.operations[i]
		g, reached := grads[op.Output()]
		if !reached {
			continue
		}
		inputGrads := op.Backward(g, backend)
		for j, in := range op.Inputs() {
			if j >= len(inputGrads) || inputGrads[j] == nil {
				continue
			}
			if prev, ok := grads[in]; ok {
				grads[in] = backend.Add(prev, inputGrads[j])
			} else {
				grads[in] = inputGrads[j]
			}
		}
	}
	return grads
}
