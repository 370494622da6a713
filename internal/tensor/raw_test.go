package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawTensor_AsFloat32ZeroCopy(t *testing.T) {
	raw, err := NewRaw(Shape{3, 2}, Float32)
	require.NoError(t, err)

	data := raw.AsFloat32()
	require.Len(t, data, 6)

	data[0] = 42
	assert.Equal(t, float32(42), raw.AsFloat32()[0], "AsFloat32 should return zero-copy slice")
	assert.Equal(t, 24, raw.ByteSize())
}

func TestRawTensor_AsInt32(t *testing.T) {
	raw, err := FromInt32([]int32{0, 2, 4, 6, 8}, Shape{5})
	require.NoError(t, err)

	assert.Equal(t, []int32{0, 2, 4, 6, 8}, raw.AsInt32())
	assert.Equal(t, Int32, raw.DType())
	assert.Panics(t, func() { raw.AsFloat32() })
}

func TestRawTensor_FromFloat32LengthMismatch(t *testing.T) {
	_, err := FromFloat32([]float32{1, 2, 3}, Shape{2, 2})
	assert.Error(t, err)
}

func TestRawTensor_InvalidShape(t *testing.T) {
	_, err := NewRaw(Shape{3, 0}, Float32)
	assert.Error(t, err)
}

func TestRawTensor_CloneIsDeep(t *testing.T) {
	raw, err := FromFloat32([]float32{1, 2}, Shape{2})
	require.NoError(t, err)

	clone := raw.Clone()
	clone.AsFloat32()[0] = 7

	assert.Equal(t, float32(1), raw.AsFloat32()[0])
	assert.True(t, clone.Shape().Equal(raw.Shape()))
}

func TestShape_StringAndParse(t *testing.T) {
	tests := []struct {
		text  string
		shape Shape
	}{
		{"28x28", Shape{28, 28}},
		{"5", Shape{5}},
		{"4x3x2", Shape{4, 3, 2}},
		{"", Shape{}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			parsed, err := ParseShape(tt.text)
			require.NoError(t, err)
			assert.True(t, parsed.Equal(tt.shape), "got %v", parsed)
			assert.Equal(t, tt.text, tt.shape.String())
		})
	}
}

func TestShape_ParseRejectsInvalid(t *testing.T) {
	for _, text := range []string{"3xa", "0x4", "-1"} {
		_, err := ParseShape(text)
		assert.Error(t, err, text)
	}
}

func TestShape_NumElements(t *testing.T) {
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, 24, Shape{2, 3, 4}.NumElements())
}

func TestDataType_ParseRoundTrip(t *testing.T) {
	for _, dt := range []DataType{Float32, Int32} {
		parsed, ok := ParseDataType(dt.String())
		require.True(t, ok)
		assert.Equal(t, dt, parsed)
	}
	_, ok := ParseDataType("complex64")
	assert.False(t, ok)
}
