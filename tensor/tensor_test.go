// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/born-ml/sparseconv/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacade_RawTensor(t *testing.T) {
	raw, err := tensor.FromFloat32([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, raw.DType())
	assert.Equal(t, 6, raw.NumElements())

	indices, err := tensor.FromInt32([]int32{0, 2}, tensor.Shape{2})
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 2}, indices.AsInt32())

	zeros, err := tensor.NewRaw(tensor.Shape{4}, tensor.Int32)
	require.NoError(t, err)
	assert.Equal(t, 16, zeros.ByteSize())
}

func TestFacade_Parse(t *testing.T) {
	shape, err := tensor.ParseShape("28x28")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{28, 28}, shape)

	dtype, ok := tensor.ParseDataType("int32")
	assert.True(t, ok)
	assert.Equal(t, tensor.Int32, dtype)
}
