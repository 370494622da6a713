package serialization

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validHeader() Header {
	return Header{
		FormatVersion: FormatVersion,
		LayerType:     "SparseConvolution",
		Tensors: []TensorMeta{
			{Name: "bias", DType: "float32", Shape: []int{4}, Offset: 0, Size: 16},
			{Name: "column_indices", DType: "int32", Shape: []int{8}, Offset: 16, Size: 32},
			{Name: "row_offsets", DType: "int32", Shape: []int{5}, Offset: 48, Size: 20},
			{Name: "weight", DType: "float32", Shape: []int{8, 3, 3}, Offset: 68, Size: 288},
		},
	}
}

func TestValidateHeader_Valid(t *testing.T) {
	h := validHeader()
	assert.NoError(t, ValidateHeader(&h, 356, ValidationStrict))
}

func TestValidateHeader_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(h *Header)
		dataSize int64
		errType  string
	}{
		{"version", func(h *Header) { h.FormatVersion = 1 }, 356, "version_mismatch"},
		{"duplicate name", func(h *Header) { h.Tensors[1].Name = "bias" }, 356, "duplicate_name"},
		{"unknown dtype", func(h *Header) { h.Tensors[0].DType = "float16" }, 356, "unsupported_dtype"},
		{"zero dimension", func(h *Header) { h.Tensors[3].Shape = []int{8, 0, 3} }, 356, "invalid_shape"},
		{"size mismatch", func(h *Header) { h.Tensors[2].Size = 24 }, 356, "size_mismatch"},
		{"path name", func(h *Header) { h.Tensors[0].Name = "a/b" }, 356, "invalid_name"},
		{"out of bounds", func(h *Header) {}, 300, "out_of_bounds"},
		{"overlap", func(h *Header) { h.Tensors[1].Offset = 8 }, 356, "offset_overlap"},
		{"negative offset", func(h *Header) { h.Tensors[0].Offset = -16 }, 356, "negative_offset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := validHeader()
			tt.modify(&h)

			err := ValidateHeader(&h, tt.dataSize, ValidationStrict)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidHeader)

			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tt.errType, validationErr.Type)
		})
	}
}

func TestValidateHeader_Levels(t *testing.T) {
	h := validHeader()
	h.Tensors[1].Offset = 8 // overlap, only checked in strict mode

	assert.Error(t, ValidateHeader(&h, 356, ValidationStrict))
	assert.NoError(t, ValidateHeader(&h, 356, ValidationNormal))

	h.Tensors[0].DType = "complex64"
	assert.Error(t, ValidateHeader(&h, 356, ValidationNormal))
	assert.NoError(t, ValidateHeader(&h, 356, ValidationNone))
}

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		wantErr  bool
	}{
		{"adjacent", []TensorMeta{{Name: "a", Offset: 0, Size: 100}, {Name: "b", Offset: 100, Size: 100}}, 200, false},
		{"unordered", []TensorMeta{{Name: "b", Offset: 100, Size: 100}, {Name: "a", Offset: 0, Size: 100}}, 200, false},
		{"overlap by one", []TensorMeta{{Name: "a", Offset: 0, Size: 100}, {Name: "b", Offset: 99, Size: 100}}, 200, true},
		{"fits exactly", []TensorMeta{{Name: "a", Offset: 0, Size: 500}}, 500, false},
		{"past end", []TensorMeta{{Name: "a", Offset: 1000, Size: 100}}, 500, true},
		{"negative size", []TensorMeta{{Name: "a", Offset: 0, Size: -1}}, 500, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	many := make([]TensorMeta, MaxTensorCount+1)
	assert.Error(t, ValidateTensorOffsets(many, 0))
}

func TestValidateTensorName(t *testing.T) {
	for _, name := range []string{"weight", "bias", "column_indices", "row_offsets", "layer.0.weight"} {
		assert.NoError(t, ValidateTensorName(name), name)
	}
	for _, name := range []string{"", "../weight", "a/b", `a\b`, "a\x00b", strings.Repeat("w", MaxTensorNameLen+1)} {
		assert.Error(t, ValidateTensorName(name), "%q", name)
	}
}

func TestValidationError_Messages(t *testing.T) {
	err := &ValidationError{Type: "offset_overlap", Tensor: "a", Tensor2: "b", Details: "regions overlap"}
	assert.Equal(t, `offset_overlap: tensors "a" and "b": regions overlap`, err.Error())

	err = &ValidationError{Type: "invalid_name", Tensor: "a/b", Details: "contains path separator"}
	assert.Equal(t, `invalid_name: tensor "a/b": contains path separator`, err.Error())

	err = &ValidationError{Type: "truncated", Details: "short"}
	assert.Equal(t, "truncated: short", err.Error())
}

func FuzzValidateTensorName(f *testing.F) {
	f.Add("weight")
	f.Add("../etc/passwd")
	f.Add("a\x00b")
	f.Fuzz(func(t *testing.T, name string) {
		err := ValidateTensorName(name)
		if err == nil && (strings.Contains(name, "..") || strings.ContainsAny(name, "/\\\x00")) {
			t.Errorf("accepted unsafe name %q", name)
		}
	})
}
