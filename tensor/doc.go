// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the typed buffers that hold sparse convolution
// parameters and their connectivity layout.
//
// # Overview
//
// This package provides:
//   - Shape and its "d0xd1x..." notation
//   - DataType: float32 weights, int32 layout indices
//   - RawTensor: a contiguous little-endian buffer with a shape
//
// # Basic Usage
//
//	import "github.com/born-ml/sparseconv/tensor"
//
//	func main() {
//	    weights, _ := tensor.FromFloat32(values, tensor.Shape{8, 3, 3})
//	    columns, _ := tensor.FromInt32(indices, tensor.Shape{8})
//	    _ = weights.AsFloat32()
//	}
//
// RawTensor buffers are what the .born container stores, one per state
// dictionary entry.
package tensor
