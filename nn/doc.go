// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the trainable bilateral filter layer, its loss and
// checkpoints.
//
// The filter holds its four sigmas as parameters, so any optimiser from the
// optim package can fit them to data.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	filter := nn.NewBilateralFilter(bilateral.New(cpu.New()), bilateral.Sigmas{X: 2, Y: 2, Z: 2, Color: 0.5}, backend)
//	optimizer := optim.NewAdam(filter.Parameters(), optim.AdamConfig{LR: 0.05}, backend)
//	mse := nn.NewMSELoss(backend)
//
//	backend.Tape().StartRecording()
//	for epoch := 0; epoch < 100; epoch++ {
//	    backend.Tape().Clear()
//	    out, _ := filter.Forward(noisy)
//	    loss := mse.Forward(out, clean)
//	    optimizer.Step(autodiff.Backward(loss, backend))
//	    optimizer.ZeroGrad()
//	    filter.ClampSigmas(0.01)
//	}
package nn
