package nn

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/sparseconv/internal/tensor"
	"github.com/google/uuid"
)

// SparseConvolutionTypeName is the registered type name of SparseConvolution.
const SparseConvolutionTypeName = "SparseConvolution"

// SparseConvolutionConfig holds the constructor arguments of a SparseConvolution.
//
// LeftPadding, RightPadding and Strides may be left empty, meaning zero padding
// and unit stride in every dimension.
type SparseConvolutionConfig struct {
	Name                  string // Instance name; a random one is assigned when empty
	WindowSizes           []int
	LeftPadding           []int
	RightPadding          []int
	Strides               []int
	InputFeatureMapCount  int
	OutputFeatureMapCount int
	Target                ConnectivityTarget
	Bias                  bool
}

// SparseConvolution is a convolutional layer in which each output feature map
// is connected to a subset of the input feature maps.
//
// Weights are stored per connection: one window of weights for every connected
// (output, input) feature map pair, addressed through a SparseLayout.
//
// Output spatial size per dimension:
//
//	out = (in + left_pad + right_pad - window) / stride + 1
//
// Example:
//
//	conv, err := nn.NewSparseConvolution(nn.SparseConvolutionConfig{
//	    WindowSizes:           []int{3, 3},
//	    InputFeatureMapCount:  64,
//	    OutputFeatureMapCount: 64,
//	    Target:                nn.SparsityRatio(0.25),
//	    Bias:                  true,
//	})
//	data, err := conv.Randomize(rng)
type SparseConvolution struct {
	name                  string
	windowSizes           []int
	leftPadding           []int
	rightPadding          []int
	strides               []int
	inputFeatureMapCount  int
	outputFeatureMapCount int
	target                ConnectivityTarget
	connectionCount       int
	bias                  bool
}

// NewSparseConvolution validates cfg and creates the layer.
//
// All configuration problems are reported as *ConfigError.
func NewSparseConvolution(cfg SparseConvolutionConfig) (*SparseConvolution, error) {
	dimensionCount := len(cfg.WindowSizes)
	if len(cfg.LeftPadding) != 0 && len(cfg.LeftPadding) != dimensionCount {
		return nil, configErrorf("left_zero_padding", len(cfg.LeftPadding), strconv.Itoa(dimensionCount), "invalid dimension count for left zero padding")
	}
	if len(cfg.RightPadding) != 0 && len(cfg.RightPadding) != dimensionCount {
		return nil, configErrorf("right_zero_padding", len(cfg.RightPadding), strconv.Itoa(dimensionCount), "invalid dimension count for right zero padding")
	}
	if len(cfg.Strides) != 0 && len(cfg.Strides) != dimensionCount {
		return nil, configErrorf("strides", len(cfg.Strides), strconv.Itoa(dimensionCount), "invalid dimension count for strides")
	}

	l := &SparseConvolution{
		name:                  cfg.Name,
		windowSizes:           append([]int(nil), cfg.WindowSizes...),
		leftPadding:           fillDefault(cfg.LeftPadding, dimensionCount, 0),
		rightPadding:          fillDefault(cfg.RightPadding, dimensionCount, 0),
		strides:               fillDefault(cfg.Strides, dimensionCount, 1),
		inputFeatureMapCount:  cfg.InputFeatureMapCount,
		outputFeatureMapCount: cfg.OutputFeatureMapCount,
		target:                cfg.Target,
		connectionCount:       cfg.Target.Resolve(cfg.InputFeatureMapCount, cfg.OutputFeatureMapCount),
		bias:                  cfg.Bias,
	}
	if l.name == "" {
		l.name = uuid.NewString()
	}

	if err := l.check(); err != nil {
		return nil, err
	}
	return l, nil
}

func fillDefault(values []int, n, def int) []int {
	res := make([]int, n)
	if len(values) == 0 {
		for i := range res {
			res[i] = def
		}
		return res
	}
	copy(res, values)
	return res
}

// check enforces the invariants every SparseConvolution holds after construction.
func (l *SparseConvolution) check() error {
	for i, w := range l.windowSizes {
		if w <= 0 {
			return configErrorf(fmt.Sprintf("window_sizes[%d]", i), w, ">= 1", "window dimension may not be zero")
		}
	}

	if l.inputFeatureMapCount <= 0 {
		return configErrorf("input_feature_map_count", l.inputFeatureMapCount, ">= 1", "")
	}
	if l.outputFeatureMapCount <= 0 {
		return configErrorf("output_feature_map_count", l.outputFeatureMapCount, ">= 1", "")
	}

	if err := l.target.validate(); err != nil {
		return err
	}

	dense := l.inputFeatureMapCount * l.outputFeatureMapCount
	if l.connectionCount < l.inputFeatureMapCount {
		return configErrorf("feature_map_connection_count", l.connectionCount, fmt.Sprintf(">= %d", l.inputFeatureMapCount),
			"may not be smaller than input_feature_map_count")
	}
	if l.connectionCount < l.outputFeatureMapCount {
		return configErrorf("feature_map_connection_count", l.connectionCount, fmt.Sprintf(">= %d", l.outputFeatureMapCount),
			"may not be smaller than output_feature_map_count")
	}
	if l.connectionCount > dense {
		return configErrorf("feature_map_connection_count", l.connectionCount, fmt.Sprintf("<= %d", dense),
			"may not be larger than in dense case")
	}

	for i := range l.windowSizes {
		if l.leftPadding[i] < 0 || l.leftPadding[i] >= l.windowSizes[i] {
			return configErrorf(fmt.Sprintf("left_zero_padding[%d]", i), l.leftPadding[i], fmt.Sprintf("< %d", l.windowSizes[i]),
				"left zero padding must be non-negative and smaller than layer window size")
		}
	}
	for i := range l.windowSizes {
		if l.rightPadding[i] < 0 || l.rightPadding[i] >= l.windowSizes[i] {
			return configErrorf(fmt.Sprintf("right_zero_padding[%d]", i), l.rightPadding[i], fmt.Sprintf("< %d", l.windowSizes[i]),
				"right zero padding must be non-negative and smaller than layer window size")
		}
	}
	for i, s := range l.strides {
		if s <= 0 {
			return configErrorf(fmt.Sprintf("strides[%d]", i), s, ">= 1", "stride dimension is 0")
		}
	}

	return nil
}

// TypeName returns "SparseConvolution".
func (l *SparseConvolution) TypeName() string {
	return SparseConvolutionTypeName
}

// InstanceName returns the layer instance name.
func (l *SparseConvolution) InstanceName() string {
	return l.name
}

// WindowSizes returns a copy of the window size per dimension.
func (l *SparseConvolution) WindowSizes() []int {
	return append([]int(nil), l.windowSizes...)
}

// LeftPadding returns a copy of the left zero padding per dimension.
func (l *SparseConvolution) LeftPadding() []int {
	return append([]int(nil), l.leftPadding...)
}

// RightPadding returns a copy of the right zero padding per dimension.
func (l *SparseConvolution) RightPadding() []int {
	return append([]int(nil), l.rightPadding...)
}

// Strides returns a copy of the stride per dimension.
func (l *SparseConvolution) Strides() []int {
	return append([]int(nil), l.strides...)
}

// InputFeatureMapCount returns the number of input feature maps.
func (l *SparseConvolution) InputFeatureMapCount() int {
	return l.inputFeatureMapCount
}

// OutputFeatureMapCount returns the number of output feature maps.
func (l *SparseConvolution) OutputFeatureMapCount() int {
	return l.outputFeatureMapCount
}

// Target returns the connectivity target the layer was configured with.
func (l *SparseConvolution) Target() ConnectivityTarget {
	return l.target
}

// ConnectionCount returns the effective number of connected feature map pairs.
func (l *SparseConvolution) ConnectionCount() int {
	return l.connectionCount
}

// HasBias reports whether the layer has a bias per output feature map.
func (l *SparseConvolution) HasBias() bool {
	return l.bias
}

// WindowVolume returns the number of spatial taps per connection.
func (l *SparseConvolution) WindowVolume() int {
	return tensor.Shape(l.windowSizes).NumElements()
}

// OutputConfiguration computes the output configuration for the given input.
//
// For each dimension i, with T = size[i] + left[i] + right[i]:
//
//	out[i] = (T - window[i]) / stride[i] + 1
//
// It fails when the feature map count or dimension count does not match the
// layer, or when T is smaller than the window.
func (l *SparseConvolution) OutputConfiguration(input LayerConfiguration) (LayerConfiguration, error) {
	if input.FeatureMapCount != l.inputFeatureMapCount {
		return LayerConfiguration{}, configErrorf("input feature_map_count", input.FeatureMapCount, strconv.Itoa(l.inputFeatureMapCount),
			"feature map count in layer and input configuration don't match")
	}
	if input.DimensionCount() != len(l.windowSizes) {
		return LayerConfiguration{}, configErrorf("input dimension count", input.DimensionCount(), strconv.Itoa(len(l.windowSizes)),
			"dimension count in layer and input configuration don't match")
	}

	res := LayerConfiguration{
		FeatureMapCount: l.outputFeatureMapCount,
		DimensionSizes:  make(tensor.Shape, len(l.windowSizes)),
	}
	for i, w := range l.windowSizes {
		if input.DimensionSizes[i] < 1 {
			return LayerConfiguration{}, configErrorf(fmt.Sprintf("input size of dimension %d", i), input.DimensionSizes[i], ">= 1", "")
		}
		total := input.DimensionSizes[i] + l.leftPadding[i] + l.rightPadding[i]
		if total < w {
			return LayerConfiguration{}, configErrorf(fmt.Sprintf("total input size (with padding) of dimension %d", i), total, fmt.Sprintf(">= %d", w),
				"too small for layer window size")
		}
		res.DimensionSizes[i] = (total-w)/l.strides[i] + 1
	}

	return res, nil
}

// InputConfiguration reconstructs the input configuration for the given output:
//
//	in[i] = (out[i] - 1) * stride[i] + window[i] - left[i] - right[i]
//
// The result is exact only when the forward division was exact. With stride > 1
// it is the smallest input size that maps to the given output size.
func (l *SparseConvolution) InputConfiguration(output LayerConfiguration) (LayerConfiguration, error) {
	if output.FeatureMapCount != l.outputFeatureMapCount {
		return LayerConfiguration{}, configErrorf("output feature_map_count", output.FeatureMapCount, strconv.Itoa(l.outputFeatureMapCount),
			"feature map count in layer and output configuration don't match")
	}
	if output.DimensionCount() != len(l.windowSizes) {
		return LayerConfiguration{}, configErrorf("output dimension count", output.DimensionCount(), strconv.Itoa(len(l.windowSizes)),
			"dimension count in layer and output configuration don't match")
	}

	res := LayerConfiguration{
		FeatureMapCount: l.inputFeatureMapCount,
		DimensionSizes:  make(tensor.Shape, len(l.windowSizes)),
	}
	for i, w := range l.windowSizes {
		if output.DimensionSizes[i] < 1 {
			return LayerConfiguration{}, configErrorf(fmt.Sprintf("output size of dimension %d", i), output.DimensionSizes[i], ">= 1", "")
		}
		size := (output.DimensionSizes[i]-1)*l.strides[i] + w - l.leftPadding[i] - l.rightPadding[i]
		if size < 1 {
			return LayerConfiguration{}, configErrorf(fmt.Sprintf("input size of dimension %d", i), size, ">= 1",
				"padding leaves no input for output size %d", output.DimensionSizes[i])
		}
		res.DimensionSizes[i] = size
	}

	return res, nil
}

// FlopsPerEntry estimates floating point operations per input entry:
//
//	neurons_per_feature_map(output) * (connections * window_volume * 2 - (bias ? 0 : 1))
//
// The same estimate applies to forward, backward-data and backward-weights;
// any other action costs nothing.
func (l *SparseConvolution) FlopsPerEntry(input LayerConfiguration, action Action) (float64, error) {
	switch action {
	case ActionForward, ActionBackwardData, ActionBackwardWeights:
		output, err := l.OutputConfiguration(input)
		if err != nil {
			return 0, err
		}
		perItem := l.connectionCount * 2 * l.WindowVolume()
		if !l.bias {
			perItem--
		}
		return float64(output.NeuronCountPerFeatureMap()) * float64(perItem), nil
	default:
		return 0, nil
	}
}

// DataConfig returns the weight count followed by the bias count if the layer has bias.
func (l *SparseConvolution) DataConfig() []int {
	res := []int{l.connectionCount * l.WindowVolume()}
	if l.bias {
		res = append(res, l.outputFeatureMapCount)
	}
	return res
}

// CustomDataConfig returns the sizes of the column index and row offset buffers.
func (l *SparseConvolution) CustomDataConfig() []int {
	return []int{
		l.connectionCount,           // column indices
		l.outputFeatureMapCount + 1, // row offsets
	}
}

// DataConfiguration describes the logical shape of one parameter part.
type DataConfiguration struct {
	InputFeatureMapCount  int
	OutputFeatureMapCount int
	Dimensions            tensor.Shape
}

// DataConfigurations describes the weight part (one window per connection) and,
// with bias, the bias part (one value per output feature map).
func (l *SparseConvolution) DataConfigurations() []DataConfiguration {
	res := []DataConfiguration{{
		InputFeatureMapCount:  1,
		OutputFeatureMapCount: l.connectionCount,
		Dimensions:            tensor.Shape(l.windowSizes).Clone(),
	}}
	if l.bias {
		res = append(res, DataConfiguration{
			InputFeatureMapCount:  1,
			OutputFeatureMapCount: l.outputFeatureMapCount,
			Dimensions:            tensor.Shape{},
		})
	}
	return res
}

// WeightDecayPartIDs returns the parameter parts subject to weight decay: weights only.
func (l *SparseConvolution) WeightDecayPartIDs() []int {
	return []int{0}
}

// ParameterStrings describes the geometry (window, feature maps, padding, stride, bias)
// and the sparsity specification.
//
// Example: ["3x3, fm 4x4, pad 1x1, stride 2x2, w/out bias", "connections 8"].
func (l *SparseConvolution) ParameterStrings() []string {
	var sb strings.Builder

	if len(l.windowSizes) == 0 {
		sb.WriteString("fc")
	} else {
		sb.WriteString(tensor.Shape(l.windowSizes).String())
	}
	fmt.Fprintf(&sb, ", fm %dx%d", l.inputFeatureMapCount, l.outputFeatureMapCount)

	emptyPadding := true
	for i := range l.leftPadding {
		if l.leftPadding[i] != 0 || l.rightPadding[i] != 0 {
			emptyPadding = false
			break
		}
	}
	if !emptyPadding {
		sb.WriteString(", pad ")
		for i := range l.leftPadding {
			if i != 0 {
				sb.WriteString("x")
			}
			if l.leftPadding[i] == l.rightPadding[i] {
				sb.WriteString(strconv.Itoa(l.leftPadding[i]))
			} else {
				fmt.Fprintf(&sb, "%d_%d", l.leftPadding[i], l.rightPadding[i])
			}
		}
	}

	emptyStride := true
	for _, s := range l.strides {
		if s != 1 {
			emptyStride = false
			break
		}
	}
	if !emptyStride {
		sb.WriteString(", stride ")
		sb.WriteString(tensor.Shape(l.strides).String())
	}

	if !l.bias {
		sb.WriteString(", w/out bias")
	}

	return []string{sb.String(), l.target.String()}
}

// String returns a string representation of the layer.
func (l *SparseConvolution) String() string {
	return fmt.Sprintf("%s(%s)", SparseConvolutionTypeName, strings.Join(l.ParameterStrings(), ", "))
}

// Clone returns an independent copy of the layer description.
func (l *SparseConvolution) Clone() Layer {
	c := *l
	c.windowSizes = l.WindowSizes()
	c.leftPadding = l.LeftPadding()
	c.rightPadding = l.RightPadding()
	c.strides = l.Strides()
	return &c
}
