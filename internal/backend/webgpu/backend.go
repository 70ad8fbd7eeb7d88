//go:build windows

package webgpu

import (
	"fmt"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/bilateral/internal/bilateral"
	"github.com/born-ml/bilateral/internal/tensor"
)

// Compiled reports whether this binary carries the WebGPU backend.
const Compiled = true

var (
	_ tensor.Backend   = (*Backend)(nil)
	_ bilateral.Kernel = (*Backend)(nil)
)

// Backend runs the element-wise tensor operations and the bilateral filter
// kernels as WGSL compute shaders on one WebGPU device.
//
// Compiled pipelines are cached by shader name; the cache is shared by
// concurrent callers.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	info     wgpu.AdapterInfo

	mu        sync.RWMutex
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline

	bufferPool *BufferPool
	mem        memoryTracker
}

// New opens the high-performance adapter and its default device. Every
// failure, including a missing wgpu_native library, is reported as
// bilateral.ErrGPUUnavailable.
func New() (backend *Backend, err error) {
	var cleanup []func()
	defer func() {
		if r := recover(); r != nil {
			backend, err = nil, fmt.Errorf("%w: native library not available: %v", bilateral.ErrGPUUnavailable, r)
		}
		if err != nil {
			for i := len(cleanup) - 1; i >= 0; i-- {
				cleanup[i]()
			}
		}
	}()

	instance := wgpu.CreateInstance(nil)
	cleanup = append(cleanup, instance.Release)

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to request adapter: %v", bilateral.ErrGPUUnavailable, err)
	}
	cleanup = append(cleanup, adapter.Release)

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to request device: %v", bilateral.ErrGPUUnavailable, err)
	}
	cleanup = append(cleanup, device.Release)

	queue := device.GetQueue()
	if queue == nil {
		return nil, fmt.Errorf("%w: failed to get queue", bilateral.ErrGPUUnavailable)
	}

	return &Backend{
		instance:   instance,
		adapter:    adapter,
		device:     device,
		queue:      queue,
		info:       adapter.GetInfo(),
		shaders:    make(map[string]*wgpu.ShaderModule),
		pipelines:  make(map[string]*wgpu.ComputePipeline),
		bufferPool: NewBufferPool(device),
	}, nil
}

// Release frees the cached pipelines, pooled buffers and the device.
// The backend is unusable afterwards.
func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bufferPool != nil {
		b.bufferPool.Clear()
		b.bufferPool = nil
	}
	for _, p := range b.pipelines {
		p.Release()
	}
	for _, s := range b.shaders {
		s.Release()
	}
	b.pipelines, b.shaders = nil, nil

	if b.queue != nil {
		b.queue.Release()
	}
	if b.device != nil {
		b.device.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}
	b.queue, b.device, b.adapter, b.instance = nil, nil, nil, nil
}

// Name returns "WebGPU".
func (b *Backend) Name() string { return "WebGPU" }

// AdapterName describes the GPU in use.
func (b *Backend) AdapterName() string {
	return fmt.Sprintf("%s %s", b.info.Name, b.info.VendorName)
}

// Device returns tensor.WebGPU.
func (b *Backend) Device() tensor.Device { return tensor.WebGPU }

// Available reports whether the device is still open.
func (b *Backend) Available() bool { return b != nil && b.device != nil }

// Limits returns the capacity compiled into the shaders.
func (b *Backend) Limits() bilateral.Limits { return Limits() }

// IsAvailable probes for an adapter without opening a device.
func IsAvailable() (available bool) {
	defer func() {
		if recover() != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// MemoryStats returns the bytes held by live buffers and the pool counters.
func (b *Backend) MemoryStats() MemoryStats {
	stats := b.mem.snapshot()
	if b.bufferPool != nil {
		stats.Pool = b.bufferPool.Stats()
	}
	return stats
}
