// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim applies gradients to sparse convolution parameters.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum and weight decay
//   - Optimizer interface for custom optimizers
//
// Gradients are computed elsewhere and passed in keyed by parameter name
// ("weight", "bias"). Weight decay only touches the parts the layer lists in
// WeightDecayPartIDs.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/sparseconv/nn"
//	    "github.com/born-ml/sparseconv/optim"
//	)
//
//	func main() {
//	    conv, _ := nn.NewSparseConvolution(cfg)
//	    data, _ := conv.Randomize(nn.NewGenerator(1))
//
//	    optimizer, err := optim.NewSGD(conv, data, optim.SGDConfig{
//	        LR:          0.01,
//	        Momentum:    0.9,
//	        WeightDecay: 5e-4,
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    err = optimizer.Step(grads)
//	}
package optim
