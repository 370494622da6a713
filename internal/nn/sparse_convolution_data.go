package nn

import (
	"fmt"

	"github.com/born-ml/sparseconv/internal/tensor"
	"golang.org/x/exp/rand"
)

// State dictionary keys of SparseConvolutionData.
const (
	StateWeight        = "weight"
	StateBias          = "bias"
	StateColumnIndices = "column_indices"
	StateRowOffsets    = "row_offsets"
)

// SparseConvolutionData is the parameter storage of one SparseConvolution instance:
// weights and optional bias, plus the sparse topology they are addressed through.
type SparseConvolutionData struct {
	Weight *Parameter    // [connections, window...]
	Bias   *Parameter    // [output feature maps], nil without bias
	Layout *SparseLayout // Column indices and row offsets
}

// Randomize draws a fresh connectivity pattern and initializes weights for it,
// using default connectivity options.
func (l *SparseConvolution) Randomize(rng *rand.Rand) (*SparseConvolutionData, error) {
	data, _, err := l.RandomizeWithOptions(rng, ConnectivityOptions{})
	return data, err
}

// RandomizeWithOptions is Randomize with explicit connectivity options.
// It also returns how the connectivity pattern was reached.
func (l *SparseConvolution) RandomizeWithOptions(rng *rand.Rand, opts ConnectivityOptions) (*SparseConvolutionData, ConnectivityReport, error) {
	layout, report, err := l.RandomizeCustomData(rng, opts)
	if err != nil {
		return nil, report, err
	}

	data, err := l.RandomizeWeights(layout, rng)
	if err != nil {
		return nil, report, err
	}
	return data, report, nil
}

// RandomizeCustomData generates a connectivity pattern and encodes it as a SparseLayout.
func (l *SparseConvolution) RandomizeCustomData(rng *rand.Rand, opts ConnectivityOptions) (*SparseLayout, ConnectivityReport, error) {
	m, report, err := FillConnectivity(
		NewConnectivityMatrix(l.outputFeatureMapCount, l.inputFeatureMapCount),
		l.connectionCount,
		rng,
		opts,
	)
	if err != nil {
		return nil, report, fmt.Errorf("layer %s: %w", l.name, err)
	}
	return EncodeLayout(m), report, nil
}

// RandomizeWeights allocates weights (and zero bias) and initializes them for layout.
func (l *SparseConvolution) RandomizeWeights(layout *SparseLayout, rng *rand.Rand) (*SparseConvolutionData, error) {
	if err := layout.Validate(l.outputFeatureMapCount, l.inputFeatureMapCount, l.connectionCount); err != nil {
		return nil, err
	}

	weight, err := tensor.NewRaw(l.weightShape(), tensor.Float32)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate weights: %w", err)
	}
	if _, err := InitSparseWeights(weight.AsFloat32(), layout, l.WindowVolume(), rng); err != nil {
		return nil, err
	}

	data := &SparseConvolutionData{
		Weight: NewParameter(StateWeight, weight),
		Layout: layout,
	}

	if l.bias {
		bias, err := tensor.NewRaw(tensor.Shape{l.outputFeatureMapCount}, tensor.Float32)
		if err != nil {
			return nil, fmt.Errorf("failed to allocate bias: %w", err)
		}
		Zeros(bias.AsFloat32())
		data.Bias = NewParameter(StateBias, bias)
	}

	return data, nil
}

func (l *SparseConvolution) weightShape() tensor.Shape {
	return append(tensor.Shape{l.connectionCount}, l.windowSizes...)
}

// Parameters returns the weight and, if present, the bias.
func (d *SparseConvolutionData) Parameters() []*Parameter {
	if d.Bias != nil {
		return []*Parameter{d.Weight, d.Bias}
	}
	return []*Parameter{d.Weight}
}

// StateDict returns all buffers keyed by their storage names.
func (d *SparseConvolutionData) StateDict() (map[string]*tensor.RawTensor, error) {
	columns, err := tensor.FromInt32(d.Layout.ColumnIndices, tensor.Shape{len(d.Layout.ColumnIndices)})
	if err != nil {
		return nil, fmt.Errorf("failed to store column indices: %w", err)
	}
	rows, err := tensor.FromInt32(d.Layout.RowOffsets, tensor.Shape{len(d.Layout.RowOffsets)})
	if err != nil {
		return nil, fmt.Errorf("failed to store row offsets: %w", err)
	}

	stateDict := map[string]*tensor.RawTensor{
		StateWeight:        d.Weight.Tensor(),
		StateColumnIndices: columns,
		StateRowOffsets:    rows,
	}
	if d.Bias != nil {
		stateDict[StateBias] = d.Bias.Tensor()
	}
	return stateDict, nil
}

// LoadSparseConvolutionData rebuilds layer data from a state dictionary,
// checking every buffer against the layer's storage layout.
func LoadSparseConvolutionData(l *SparseConvolution, stateDict map[string]*tensor.RawTensor) (*SparseConvolutionData, error) {
	weight, err := lookupState(stateDict, StateWeight, tensor.Float32, l.connectionCount*l.WindowVolume())
	if err != nil {
		return nil, err
	}
	columns, err := lookupState(stateDict, StateColumnIndices, tensor.Int32, l.connectionCount)
	if err != nil {
		return nil, err
	}
	rows, err := lookupState(stateDict, StateRowOffsets, tensor.Int32, l.outputFeatureMapCount+1)
	if err != nil {
		return nil, err
	}

	layout := &SparseLayout{
		ColumnIndices: append([]int32(nil), columns.AsInt32()...),
		RowOffsets:    append([]int32(nil), rows.AsInt32()...),
	}
	if err := layout.Validate(l.outputFeatureMapCount, l.inputFeatureMapCount, l.connectionCount); err != nil {
		return nil, err
	}

	data := &SparseConvolutionData{
		Weight: NewParameter(StateWeight, weight.Clone()),
		Layout: layout,
	}

	if l.bias {
		bias, err := lookupState(stateDict, StateBias, tensor.Float32, l.outputFeatureMapCount)
		if err != nil {
			return nil, err
		}
		data.Bias = NewParameter(StateBias, bias.Clone())
	} else if _, ok := stateDict[StateBias]; ok {
		return nil, fmt.Errorf("%w: bias present for layer %s without bias", ErrInvalidLayerData, l.name)
	}

	return data, nil
}

func lookupState(stateDict map[string]*tensor.RawTensor, name string, dtype tensor.DataType, count int) (*tensor.RawTensor, error) {
	raw, ok := stateDict[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidLayerData, name)
	}
	if raw.DType() != dtype {
		return nil, fmt.Errorf("%w: %s has dtype %s, expected %s", ErrInvalidLayerData, name, raw.DType(), dtype)
	}
	if raw.NumElements() != count {
		return nil, fmt.Errorf("%w: %s has %d elements, expected %d", ErrInvalidLayerData, name, raw.NumElements(), count)
	}
	return raw, nil
}
