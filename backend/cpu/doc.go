// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go backend.
//
// Besides the element-wise tensor operations it carries the reference
// bilateral kernels, which run for every dtype, channel count and 1 to 3
// spatial dimensions, and are what the dispatcher falls back to whenever
// the GPU cannot be used.
//
// Example:
//
//	backend := cpu.New()
//	d := bilateral.New(backend)
//	res, err := d.Forward(volume.Raw(), bilateral.Sigmas{X: 2, Y: 2, Z: 2, Color: 0.1})
package cpu
