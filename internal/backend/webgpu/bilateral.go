//go:build windows

package webgpu

import (
	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"

	"github.com/born-ml/bilateral/internal/bilateral"
	"github.com/born-ml/bilateral/internal/tensor"
)

// forwardOutputs is the number of tensors packed in the forward result buffer.
const forwardOutputs = 7

// BilateralForward filters a float32 input on GPU and returns the seven
// forward tensors, labelled as WebGPU-resident.
func (b *Backend) BilateralForward(input *tensor.RawTensor, s bilateral.Sigmas) (*bilateral.ForwardResult, error) {
	layout, err := b.prepare(input, s)
	if err != nil {
		return nil, err
	}

	x := input.Contiguous()
	pipeline := b.pipeline("bilateralForward", bilateralForwardShader)

	bufferInput := b.uploadTensor(x)
	defer bufferInput.Release()

	//nolint:gosec // G115: Safe conversion, ByteSize() returns non-negative int
	tensorSize := uint64(x.ByteSize())
	resultSize := forwardOutputs * tensorSize
	bufferResult := b.acquireResult(resultSize)
	defer b.releaseResult(bufferResult, resultSize)

	bufferParams := b.createUniformBuffer(bilateralParams(layout, s))
	defer bufferParams.Release()

	b.runKernel(pipeline, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufferInput, 0, tensorSize),
		wgpu.BufferBindingEntry(1, bufferResult, 0, resultSize),
		wgpu.BufferBindingEntry(2, bufferParams, 0, bilateralParamsSize),
	}, layout.Batch*layout.Voxels)

	data, err := b.readBuffer(bufferResult, resultSize)
	if err != nil {
		return nil, errors.WithMessage(err, "webgpu: bilateral forward")
	}

	res, err := bilateral.NewForwardResult(x.Shape(), tensor.Float32, tensor.WebGPU)
	if err != nil {
		return nil, err
	}
	for i, t := range res.Tensors() {
		copy(t.Data(), data[uint64(i)*tensorSize:])
	}
	return res, nil
}

// BilateralBackward computes the input gradient on GPU.
func (b *Backend) BilateralBackward(args *bilateral.BackwardArgs, s bilateral.Sigmas) (*tensor.RawTensor, error) {
	if err := bilateral.CheckBackward(args); err != nil {
		return nil, err
	}
	layout, err := b.prepare(args.Input, s)
	if err != nil {
		return nil, err
	}

	pipeline := b.pipeline("bilateralBackward", bilateralBackwardShader)

	//nolint:gosec // G115: Safe conversion, ByteSize() returns non-negative int
	tensorSize := uint64(args.Input.ByteSize())
	entries := make([]wgpu.BindGroupEntry, 0, 7)
	for i, t := range args.Tensors() {
		buffer := b.uploadTensor(t)
		defer buffer.Release()
		entries = append(entries, wgpu.BufferBindingEntry(uint32(i), buffer, 0, tensorSize)) //nolint:gosec // i < 5
	}

	bufferResult := b.acquireResult(tensorSize)
	defer b.releaseResult(bufferResult, tensorSize)

	bufferParams := b.createUniformBuffer(bilateralParams(layout, s))
	defer bufferParams.Release()

	entries = append(entries,
		wgpu.BufferBindingEntry(5, bufferResult, 0, tensorSize),
		wgpu.BufferBindingEntry(6, bufferParams, 0, bilateralParamsSize),
	)
	b.runKernel(pipeline, entries, layout.Batch*layout.Voxels)

	result, err := b.readTensor(bufferResult, args.Input.Shape())
	if err != nil {
		return nil, errors.WithMessage(err, "webgpu: bilateral backward")
	}
	return result, nil
}

// prepare validates what the shaders cannot handle and derives the layout.
func (b *Backend) prepare(input *tensor.RawTensor, s bilateral.Sigmas) (bilateral.Layout, error) {
	if err := s.Validate(); err != nil {
		return bilateral.Layout{}, err
	}
	if input.DType() != tensor.Float32 {
		return bilateral.Layout{}, errors.WithMessagef(bilateral.ErrUnsupportedDType, "webgpu: %s", input.DType())
	}
	if err := b.Limits().Check(input.Shape()); err != nil {
		return bilateral.Layout{}, err
	}
	return bilateral.NewLayout(input.Shape(), s)
}
