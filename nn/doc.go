// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the sparse convolution layer and its supporting algorithms.
//
// # Overview
//
// This package contains:
//   - Layer: SparseConvolution, configured by SparseConvolutionConfig or a LayerRecord
//   - Shape algebra: OutputConfiguration, InputConfiguration
//   - Connectivity: FillConnectivity, ConnectivityMatrix, SparseLayout
//   - Initialization: fan-in scaled normal weights, zero bias
//   - Persistence: Save and Load of .born layer files
//
// # Basic Usage
//
//	import "github.com/born-ml/sparseconv/nn"
//
//	func main() {
//	    conv, err := nn.NewSparseConvolution(nn.SparseConvolutionConfig{
//	        WindowSizes:           []int{3, 3},
//	        InputFeatureMapCount:  64,
//	        OutputFeatureMapCount: 64,
//	        Target:                nn.SparsityRatio(0.25),
//	        Bias:                  true,
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    data, err := conv.Randomize(nn.NewGenerator(42))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    err = nn.Save(conv, data, "conv.born", nil)
//	}
//
// # Connectivity
//
// Each output feature map reads from a subset of the input feature maps.
// The number of connected pairs is given either directly:
//
//	nn.ConnectionCount(1024)
//
// or as a fraction of the dense pair count:
//
//	nn.SparsityRatio(0.25)
//
// Degrees are balanced on both sides: every output and every input feature map
// takes part in about the same number of connections.
//
// # Shape Inference
//
// Per spatial dimension:
//
//	out = (in + left_pad + right_pad - window) / stride + 1
//
// InputConfiguration inverts this as far as strides allow.
package nn
