// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimisers that fit the filter sigmas.
//
// Available optimisers:
//   - SGD with optional momentum
//   - Adam with bias correction
//
// Example:
//
//	optimizer, err := optim.New("adam", filter.Parameters(), 0.05, backend)
//	optimizer.Step(autodiff.Backward(loss, backend))
//	optimizer.ZeroGrad()
package optim
