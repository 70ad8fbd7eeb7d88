// Package parallel splits index ranges across goroutines for the CPU kernels.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how the CPU kernels fan out. Ranges shorter than
// MinChunkSize run on the calling goroutine.
type Config struct {
	Enabled      bool `yaml:"enabled"`
	NumWorkers   int  `yaml:"num_workers"`
	MinChunkSize int  `yaml:"min_chunk_size"`
}

// DefaultConfig uses one worker per CPU.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// For calls f(i) for every i in [0, n).
func For(n int, f func(i int), cfg Config) {
	ForRange(n, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	}, cfg)
}

// ForRange calls f once per contiguous chunk [start, end) of [0, n).
// Kernels that need per-worker scratch space allocate it once per chunk.
func ForRange(n int, f func(start, end int), cfg Config) {
	if n <= 0 {
		return
	}
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < cfg.MinChunkSize {
		f(0, n)
		return
	}

	var wg sync.WaitGroup
	chunk := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)
	for start := 0; start < n; start += chunk {
		wg.Go(func() { f(start, min(start+chunk, n)) })
	}
	wg.Wait()
}
