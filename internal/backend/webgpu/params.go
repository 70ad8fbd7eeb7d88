// Package webgpu implements the WebGPU backend: element-wise tensor operations
// and the bilateral filter kernels as WGSL compute shaders.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// The device-backed implementation is built on windows only. Other platforms
// get a stub whose constructor fails and which reports Compiled == false.
package webgpu

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/born-ml/bilateral/internal/bilateral"
)

// MaxChannels is the size of the per-voxel channel arrays in the shaders.
const MaxChannels = 16

// workgroupSize is the number of threads per workgroup in every shader.
const workgroupSize = 256

// maxWorkgroupsPerDim is the WebGPU limit on a single dispatch dimension.
const maxWorkgroupsPerDim = 65535

// Limits returns the capacity compiled into the shaders.
func Limits() bilateral.Limits {
	return bilateral.Limits{MaxChannels: MaxChannels, MaxSpatialDims: bilateral.MaxSpatialDims}
}

// workgroupGrid spreads threads over a 2D grid of workgroups so that large
// volumes stay below the per-dimension dispatch limit. Shaders recover the
// flat index as gid.x + gid.y * num_workgroups.x * workgroupSize.
func workgroupGrid(threads int) (x, y uint32) {
	groups := max((threads+workgroupSize-1)/workgroupSize, 1)
	if groups <= maxWorkgroupsPerDim {
		return uint32(groups), 1 //nolint:gosec // bounded above
	}
	rows := (groups + maxWorkgroupsPerDim - 1) / maxWorkgroupsPerDim
	return maxWorkgroupsPerDim, uint32(rows) //nolint:gosec // rows <= groups
}

// bilateralParamsSize is the byte size of the Params uniform in the
// bilateral shaders (16 words, 16-byte aligned).
const bilateralParamsSize = 64

// bilateralParams packs the layout and sigmas into the uniform buffer:
//
//	batch, channels, voxels, _pad
//	size0, size1, size2, _pad
//	radius0, radius1, radius2, _pad
//	sigma_x, sigma_y, sigma_z, sigma_r
func bilateralParams(l bilateral.Layout, s bilateral.Sigmas) []byte {
	buf := make([]byte, bilateralParamsSize)
	put := func(word int, v uint32) {
		binary.LittleEndian.PutUint32(buf[word*4:], v)
	}

	put(0, uint32(l.Batch))    //nolint:gosec // shapes are validated
	put(1, uint32(l.Channels)) //nolint:gosec // shapes are validated
	put(2, uint32(l.Voxels))   //nolint:gosec // shapes are validated
	for i := 0; i < bilateral.MaxSpatialDims; i++ {
		put(4+i, uint32(l.Sizes[i])) //nolint:gosec // shapes are validated
		put(8+i, uint32(l.Half[i]))  //nolint:gosec // window radius
	}
	for i, sigma := range []float64{s.X, s.Y, s.Z, s.Color} {
		put(12+i, math.Float32bits(float32(sigma)))
	}
	return buf
}

// elementParams packs the element count and an optional f32 scalar.
func elementParams(n int, scalar float32) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(n)) //nolint:gosec // tensor sizes fit u32 on GPU
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(scalar))
	return buf
}

// MemoryStats represents GPU memory usage statistics.
type MemoryStats struct {
	// Total bytes currently held by live buffers
	TotalAllocatedBytes uint64
	// Peak memory usage in bytes
	PeakMemoryBytes uint64
	// Number of currently active buffers
	ActiveBuffers int64
	// Buffer pool statistics
	Pool PoolStats
}

// PoolStats reports buffer pool reuse.
type PoolStats struct {
	Allocated uint64
	Released  uint64
	Hits      uint64
	Misses    uint64
	Pooled    int
}

// memoryTracker counts bytes held by live device buffers.
type memoryTracker struct {
	mu      sync.Mutex
	current uint64
	peak    uint64
	buffers int64
}

func (m *memoryTracker) alloc(size uint64) {
	m.mu.Lock()
	m.current += size
	m.peak = max(m.peak, m.current)
	m.buffers++
	m.mu.Unlock()
}

func (m *memoryTracker) release(size uint64) {
	m.mu.Lock()
	m.current -= min(size, m.current)
	m.buffers--
	m.mu.Unlock()
}

func (m *memoryTracker) snapshot() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MemoryStats{TotalAllocatedBytes: m.current, PeakMemoryBytes: m.peak, ActiveBuffers: m.buffers}
}
