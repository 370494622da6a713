// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/sparseconv/internal/nn"
	"github.com/born-ml/sparseconv/internal/optim"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Config represents the base configuration for optimizers.
type Config = optim.Config

// SGD implements Stochastic Gradient Descent with momentum and weight decay.
type SGD = optim.SGD

// SGDConfig represents configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer for the parameters of one sparse convolution.
//
// Example:
//
//	optimizer, err := optim.NewSGD(conv, data, optim.SGDConfig{LR: 0.01, Momentum: 0.9})
func NewSGD(layer *nn.SparseConvolution, data *nn.SparseConvolutionData, config SGDConfig) (*SGD, error) {
	return optim.NewSGD(layer, data, config)
}
