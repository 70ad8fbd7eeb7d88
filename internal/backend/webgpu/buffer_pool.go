//go:build windows

package webgpu

import (
	"math/bits"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

const (
	minBucketSize = 256 // bytes
	maxPoolSize   = 32  // buffers kept per bucket
)

// bucketSize rounds size up to a power of two, at least minBucketSize.
// Buffers are created at bucket size, so any request falling into a bucket
// fits any buffer pooled there.
func bucketSize(size uint64) uint64 {
	if size <= minBucketSize {
		return minBucketSize
	}
	return 1 << bits.Len64(size-1)
}

type poolKey struct {
	size  uint64
	usage wgpu.BufferUsage
}

// BufferPool recycles the result buffers of the compute kernels. Training
// filters the same volume shape every step, so after the first step every
// request is a hit.
type BufferPool struct {
	device *wgpu.Device

	mu    sync.Mutex
	free  map[poolKey][]*wgpu.Buffer
	stats PoolStats
}

// NewBufferPool creates an empty pool for device.
func NewBufferPool(device *wgpu.Device) *BufferPool {
	return &BufferPool{device: device, free: make(map[poolKey][]*wgpu.Buffer)}
}

// Acquire returns a buffer of at least size bytes with exactly usage.
func (p *BufferPool) Acquire(size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	key := poolKey{bucketSize(size), usage}

	p.mu.Lock()
	defer p.mu.Unlock()

	if list := p.free[key]; len(list) > 0 {
		buf := list[len(list)-1]
		p.free[key] = list[:len(list)-1]
		p.stats.Hits++
		return buf
	}
	p.stats.Misses++
	p.stats.Allocated++
	return p.device.CreateBuffer(&wgpu.BufferDescriptor{Usage: usage, Size: key.size})
}

// Release hands back a buffer obtained from Acquire with the same size and
// usage. Buffers beyond maxPoolSize per bucket are destroyed.
func (p *BufferPool) Release(buffer *wgpu.Buffer, size uint64, usage wgpu.BufferUsage) {
	key := poolKey{bucketSize(size), usage}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Released++
	if len(p.free[key]) >= maxPoolSize {
		buffer.Release()
		return
	}
	p.free[key] = append(p.free[key], buffer)
}

// Clear destroys all pooled buffers.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, list := range p.free {
		for _, buf := range list {
			buf.Release()
		}
		delete(p.free, key)
	}
}

// Stats returns the pool counters.
func (p *BufferPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.stats
	for _, list := range p.free {
		stats.Pooled += len(list)
	}
	return stats
}
