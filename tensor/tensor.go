// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/sparseconv/internal/tensor"
)

// Shape represents the dimensions of a tensor.
//
// Example:
//
//	shape := tensor.Shape{8, 3, 3}  // 8 windows of 3x3
type Shape = tensor.Shape

// DataType identifies the element type of a tensor buffer.
type DataType = tensor.DataType

// Supported data types.
const (
	Float32 = tensor.Float32
	Int32   = tensor.Int32
)

// RawTensor is a contiguous, typed buffer with a shape.
//
// Example:
//
//	raw, _ := tensor.FromFloat32([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
//	data := raw.AsFloat32()  // Type-safe access
//	clone := raw.Clone()     // Independent copy
type RawTensor = tensor.RawTensor

// NewRaw allocates a zero-filled tensor of the given shape and type.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype)
}

// FromFloat32 creates a float32 tensor holding a copy of data.
func FromFloat32(data []float32, shape Shape) (*RawTensor, error) {
	return tensor.FromFloat32(data, shape)
}

// FromInt32 creates an int32 tensor holding a copy of data.
func FromInt32(data []int32, shape Shape) (*RawTensor, error) {
	return tensor.FromInt32(data, shape)
}

// ParseShape parses the "28x28" notation.
func ParseShape(text string) (Shape, error) {
	return tensor.ParseShape(text)
}

// ParseDataType parses a data type name such as "float32".
func ParseDataType(name string) (DataType, bool) {
	return tensor.ParseDataType(name)
}
