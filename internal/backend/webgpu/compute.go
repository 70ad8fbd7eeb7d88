//go:build windows

package webgpu

import (
	"bytes"
	"fmt"
	"math"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/bilateral/internal/tensor"
)

const resultUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// pipeline returns the compute pipeline for the named shader, compiling it
// on first use. Entry point is always "main" with an automatic layout.
func (b *Backend) pipeline(name, code string) *wgpu.ComputePipeline {
	b.mu.RLock()
	p, ok := b.pipelines[name]
	b.mu.RUnlock()
	if ok {
		return p
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pipelines[name]; ok {
		return p
	}
	shader := b.device.CreateShaderModuleWGSL(code)
	p = b.device.CreateComputePipelineSimple(nil, shader, "main")
	b.shaders[name] = shader
	b.pipelines[name] = p
	return p
}

// mappedBuffer creates a buffer of size bytes mapped at creation and fills
// its head with data.
func (b *Backend) mappedBuffer(data []byte, size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	//nolint:gosec // mapped range is exactly size bytes
	copy(unsafe.Slice((*byte)(buffer.GetMappedRange(0, size)), size), data)
	buffer.Unmap()
	return buffer
}

// createBuffer uploads data into a new buffer of the same size.
func (b *Backend) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	return b.mappedBuffer(data, uint64(len(data)), usage)
}

// createUniformBuffer uploads data into a uniform buffer rounded up to 16 bytes.
func (b *Backend) createUniformBuffer(data []byte) *wgpu.Buffer {
	size := (uint64(len(data)) + 15) &^ 15
	return b.mappedBuffer(data, size, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)
}

// uploadTensor copies a contiguous float32 tensor into a read-only storage buffer.
func (b *Backend) uploadTensor(t *tensor.RawTensor) *wgpu.Buffer {
	return b.createBuffer(t.Contiguous().Data(), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
}

// acquireResult takes a writable storage buffer from the pool.
func (b *Backend) acquireResult(size uint64) *wgpu.Buffer {
	b.mem.alloc(size)
	return b.bufferPool.Acquire(size, resultUsage)
}

func (b *Backend) releaseResult(buffer *wgpu.Buffer, size uint64) {
	b.mem.release(size)
	b.bufferPool.Release(buffer, size, resultUsage)
}

// readBuffer copies size bytes of src back to the host through a staging
// buffer; storage buffers cannot be mapped for reading.
func (b *Backend) readBuffer(src *wgpu.Buffer, size uint64) ([]byte, error) {
	staging := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	b.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(b.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, fmt.Errorf("failed to map staging buffer: %w", err)
	}
	defer staging.Unmap()

	//nolint:gosec // mapped range is exactly size bytes
	return bytes.Clone(unsafe.Slice((*byte)(staging.GetMappedRange(0, size)), size)), nil
}

// runKernel binds entries to group 0 of pipeline and dispatches enough
// workgroups to cover threads invocations.
func (b *Backend) runKernel(pipeline *wgpu.ComputePipeline, entries []wgpu.BindGroupEntry, threads int) {
	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := b.device.CreateBindGroupSimple(bindGroupLayout, entries)
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)

	x, y := workgroupGrid(threads)
	computePass.DispatchWorkgroups(x, y, 1)
	computePass.End()

	b.queue.Submit(encoder.Finish(nil))
}

func requireFloat32(op string, ts ...*tensor.RawTensor) error {
	for _, t := range ts {
		if t.DType() != tensor.Float32 {
			return fmt.Errorf("webgpu: %s: only float32 is supported, got %s", op, t.DType())
		}
	}
	return nil
}

// runElementwise runs a one-thread-per-element shader. The shader binds the
// inputs in order, then the result, then the element params uniform.
func (b *Backend) runElementwise(name, code string, scalar float32, inputs ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := requireFloat32(name, inputs...); err != nil {
		return nil, err
	}
	shape := inputs[0].Shape()
	for _, in := range inputs[1:] {
		if !in.Shape().Equal(shape) {
			return nil, fmt.Errorf("webgpu: shape mismatch: %v vs %v", shape, in.Shape())
		}
	}

	n := inputs[0].NumElements()
	//nolint:gosec // G115: ByteSize is non-negative
	size := uint64(inputs[0].ByteSize())
	entries := make([]wgpu.BindGroupEntry, 0, len(inputs)+2)
	for i, in := range inputs {
		buf := b.uploadTensor(in)
		defer buf.Release()
		entries = append(entries, wgpu.BufferBindingEntry(uint32(i), buf, 0, size)) //nolint:gosec // few inputs
	}

	result := b.acquireResult(size)
	defer b.releaseResult(result, size)
	params := b.createUniformBuffer(elementParams(n, scalar))
	defer params.Release()

	next := uint32(len(inputs)) //nolint:gosec // few inputs
	entries = append(entries,
		wgpu.BufferBindingEntry(next, result, 0, size),
		wgpu.BufferBindingEntry(next+1, params, 0, 16),
	)
	b.runKernel(b.pipeline(name, code), entries, n)
	return b.readTensor(result, shape)
}

// runBinaryOp executes a same-shape element-wise operation on GPU.
func (b *Backend) runBinaryOp(a, other *tensor.RawTensor, shaderName, shaderCode string) (*tensor.RawTensor, error) {
	return b.runElementwise(shaderName, shaderCode, 0, a, other)
}

// runScalarOp multiplies every element by scalar on GPU.
func (b *Backend) runScalarOp(x *tensor.RawTensor, scalar float32) (*tensor.RawTensor, error) {
	return b.runElementwise("scalarMul", scalarMulShader, scalar, x)
}

// runSum reduces each workgroup on GPU and adds the partial sums on the host.
func (b *Backend) runSum(x *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := requireFloat32("sum", x); err != nil {
		return nil, err
	}

	numElements := x.NumElements()
	pipeline := b.pipeline("globalSum", globalSumShader)

	bufferInput := b.uploadTensor(x)
	defer bufferInput.Release()

	gx, gy := workgroupGrid(numElements)
	partialSize := uint64(gx) * uint64(gy) * 4
	bufferPartial := b.acquireResult(partialSize)
	defer b.releaseResult(bufferPartial, partialSize)

	bufferParams := b.createUniformBuffer(elementParams(numElements, 0))
	defer bufferParams.Release()

	//nolint:gosec // G115: Safe conversion, ByteSize() returns non-negative int
	inputSize := uint64(x.ByteSize())
	b.runKernel(pipeline, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufferInput, 0, inputSize),
		wgpu.BufferBindingEntry(1, bufferPartial, 0, partialSize),
		wgpu.BufferBindingEntry(2, bufferParams, 0, 16),
	}, numElements)

	data, err := b.readBuffer(bufferPartial, partialSize)
	if err != nil {
		return nil, err
	}

	var sum float64
	//nolint:gosec // unsafe.Slice over a host copy of the partial sums
	for _, v := range unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), len(data)/4) {
		sum += float64(v)
	}

	result, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, tensor.WebGPU)
	if err != nil {
		return nil, err
	}
	result.AsFloat32()[0] = float32(sum)
	return result, nil
}

// readTensor copies a result buffer into a new WebGPU-labelled tensor.
func (b *Backend) readTensor(buffer *wgpu.Buffer, shape tensor.Shape) (*tensor.RawTensor, error) {
	result, err := tensor.NewRaw(shape, tensor.Float32, tensor.WebGPU)
	if err != nil {
		return nil, err
	}
	//nolint:gosec // G115: Safe conversion, ByteSize() returns non-negative int
	data, err := b.readBuffer(buffer, uint64(result.ByteSize()))
	if err != nil {
		return nil, err
	}
	copy(result.Data(), data)
	return result, nil
}

func scalarFloat32(scalar any) float32 {
	v := tensor.ScalarFloat64(scalar)
	if math.IsInf(v, 0) || math.Abs(v) > math.MaxFloat32 {
		panic(fmt.Sprintf("webgpu: scalar %v overflows float32", v))
	}
	return float32(v)
}
