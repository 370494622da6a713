package nn

import (
	"encoding/json"
	"fmt"
)

// LayerRecord is the serialized form of a layer.
//
// Exactly one parameter block matching Type is expected.
type LayerRecord struct {
	Type              string                  `json:"type"`
	Name              string                  `json:"name,omitempty"`
	SparseConvolution *SparseConvolutionParam `json:"sparse_convolution_param,omitempty"`
}

// SparseConvolutionParam holds the serialized parameters of a SparseConvolution.
//
// Omitted fields take defaults: zero padding, unit stride, bias enabled.
// Exactly one of FeatureMapConnectionCount and FeatureMapConnectionSparsityRatio must be set.
type SparseConvolutionParam struct {
	InputFeatureMapCount              int              `json:"input_feature_map_count"`
	OutputFeatureMapCount             int              `json:"output_feature_map_count"`
	Bias                              *bool            `json:"bias,omitempty"`
	FeatureMapConnectionCount         *int             `json:"feature_map_connection_count,omitempty"`
	FeatureMapConnectionSparsityRatio *float32         `json:"feature_map_connection_sparsity_ratio,omitempty"`
	Dimensions                        []DimensionParam `json:"dimension_param"`
}

// DimensionParam holds the per-dimension window geometry.
type DimensionParam struct {
	KernelSize   int  `json:"kernel_size"`
	LeftPadding  int  `json:"left_padding,omitempty"`
	RightPadding int  `json:"right_padding,omitempty"`
	Stride       *int `json:"stride,omitempty"`
}

// ParseLayerRecord decodes a JSON layer record.
func ParseLayerRecord(data []byte) (LayerRecord, error) {
	var rec LayerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return LayerRecord{}, fmt.Errorf("failed to parse layer record: %w", err)
	}
	return rec, nil
}

// Marshal encodes the record as indented JSON.
func (r LayerRecord) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal layer record: %w", err)
	}
	return data, nil
}

// Record returns the serializable form of the layer. Default values are omitted,
// and the connectivity target is written in the form it was configured with.
func (l *SparseConvolution) Record() LayerRecord {
	param := &SparseConvolutionParam{
		InputFeatureMapCount:  l.inputFeatureMapCount,
		OutputFeatureMapCount: l.outputFeatureMapCount,
		Dimensions:            make([]DimensionParam, len(l.windowSizes)),
	}
	if !l.bias {
		noBias := false
		param.Bias = &noBias
	}
	if ratio, ok := l.target.Ratio(); ok {
		param.FeatureMapConnectionSparsityRatio = &ratio
	} else {
		count := l.connectionCount
		param.FeatureMapConnectionCount = &count
	}

	for i, w := range l.windowSizes {
		dim := DimensionParam{
			KernelSize:   w,
			LeftPadding:  l.leftPadding[i],
			RightPadding: l.rightPadding[i],
		}
		if l.strides[i] > 1 {
			stride := l.strides[i]
			dim.Stride = &stride
		}
		param.Dimensions[i] = dim
	}

	return LayerRecord{
		Type:              SparseConvolutionTypeName,
		Name:              l.name,
		SparseConvolution: param,
	}
}

// decodeSparseConvolution builds a SparseConvolution from its record, validating it
// exactly as NewSparseConvolution does.
func decodeSparseConvolution(rec LayerRecord) (Layer, error) {
	param := rec.SparseConvolution
	if param == nil {
		return nil, configErrorf("sparse_convolution_param", "missing", "a parameter block",
			"no sparse_convolution_param specified for layer %s of type %s", rec.Name, rec.Type)
	}

	cfg := SparseConvolutionConfig{
		Name:                  rec.Name,
		WindowSizes:           make([]int, len(param.Dimensions)),
		LeftPadding:           make([]int, len(param.Dimensions)),
		RightPadding:          make([]int, len(param.Dimensions)),
		Strides:               make([]int, len(param.Dimensions)),
		InputFeatureMapCount:  param.InputFeatureMapCount,
		OutputFeatureMapCount: param.OutputFeatureMapCount,
		Bias:                  param.Bias == nil || *param.Bias,
	}
	for i, dim := range param.Dimensions {
		cfg.WindowSizes[i] = dim.KernelSize
		cfg.LeftPadding[i] = dim.LeftPadding
		cfg.RightPadding[i] = dim.RightPadding
		cfg.Strides[i] = 1
		if dim.Stride != nil {
			cfg.Strides[i] = *dim.Stride
		}
	}

	switch {
	case param.FeatureMapConnectionCount != nil && param.FeatureMapConnectionSparsityRatio != nil:
		return nil, configErrorf("sparsity pattern", "count and ratio", "exactly one of feature_map_connection_count and feature_map_connection_sparsity_ratio",
			"conflicting sparsity pattern in sparse_convolution_param specified for layer %s of type %s", rec.Name, rec.Type)
	case param.FeatureMapConnectionCount != nil:
		cfg.Target = ConnectionCount(*param.FeatureMapConnectionCount)
	case param.FeatureMapConnectionSparsityRatio != nil:
		cfg.Target = SparsityRatio(*param.FeatureMapConnectionSparsityRatio)
	default:
		return nil, configErrorf("sparsity pattern", "missing", "feature_map_connection_count or feature_map_connection_sparsity_ratio",
			"no sparsity pattern defined in sparse_convolution_param specified for layer %s of type %s", rec.Name, rec.Type)
	}

	return NewSparseConvolution(cfg)
}
