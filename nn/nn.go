// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/sparseconv/internal/nn"
	"github.com/born-ml/sparseconv/internal/tensor"
	"golang.org/x/exp/rand"
)

// Layer is the base interface for all layer descriptions.
type Layer = nn.Layer

// Action identifies the computation a cost estimate refers to.
type Action = nn.Action

// Supported actions.
const (
	ActionForward         = nn.ActionForward
	ActionBackwardData    = nn.ActionBackwardData
	ActionBackwardWeights = nn.ActionBackwardWeights
)

// LayerConfiguration describes the feature maps flowing into or out of a layer.
type LayerConfiguration = nn.LayerConfiguration

// NewLayerConfiguration creates a configuration with featureMapCount feature maps of the given spatial size.
//
// Example:
//
//	input := nn.NewLayerConfiguration(3, 28, 28)  // 3 feature maps of 28x28
func NewLayerConfiguration(featureMapCount int, dimensionSizes ...int) LayerConfiguration {
	return nn.NewLayerConfiguration(featureMapCount, dimensionSizes...)
}

// Sparse convolution

// SparseConvolutionTypeName is the registered type name of SparseConvolution.
const SparseConvolutionTypeName = nn.SparseConvolutionTypeName

// SparseConvolution is a convolutional layer in which each output feature map
// is connected to a subset of the input feature maps.
type SparseConvolution = nn.SparseConvolution

// SparseConvolutionConfig holds the constructor arguments of a SparseConvolution.
type SparseConvolutionConfig = nn.SparseConvolutionConfig

// SparseConvolutionData holds the weights, bias and sparse layout of one layer instance.
type SparseConvolutionData = nn.SparseConvolutionData

// DataConfiguration describes the logical shape of one parameter part.
type DataConfiguration = nn.DataConfiguration

// Parameter is a named float32 parameter buffer.
type Parameter = nn.Parameter

// NewSparseConvolution validates cfg and creates the layer.
//
// Example:
//
//	conv, err := nn.NewSparseConvolution(nn.SparseConvolutionConfig{
//	    WindowSizes:           []int{5},
//	    InputFeatureMapCount:  16,
//	    OutputFeatureMapCount: 32,
//	    Target:                nn.ConnectionCount(128),
//	})
func NewSparseConvolution(cfg SparseConvolutionConfig) (*SparseConvolution, error) {
	return nn.NewSparseConvolution(cfg)
}

// LoadSparseConvolutionData rebuilds layer data from a state dictionary,
// checking every buffer against the layer's storage layout.
func LoadSparseConvolutionData(layer *SparseConvolution, stateDict map[string]*tensor.RawTensor) (*SparseConvolutionData, error) {
	return nn.LoadSparseConvolutionData(layer, stateDict)
}

// Connectivity

// ConnectivityTarget is either a connection count or a sparsity ratio.
type ConnectivityTarget = nn.ConnectivityTarget

// ConnectionCount targets exactly n connected feature map pairs.
func ConnectionCount(n int) ConnectivityTarget {
	return nn.ConnectionCount(n)
}

// SparsityRatio targets a fraction of the dense pair count.
func SparsityRatio(r float32) ConnectivityTarget {
	return nn.SparsityRatio(r)
}

// ConnectivityMatrix records which (output, input) feature map pairs are connected.
type ConnectivityMatrix = nn.ConnectivityMatrix

// ConnectivityOptions tunes FillConnectivity.
type ConnectivityOptions = nn.ConnectivityOptions

// ConnectivityReport describes how FillConnectivity reached its result.
type ConnectivityReport = nn.ConnectivityReport

// SparseLayout is the compressed row encoding of a connectivity matrix.
type SparseLayout = nn.SparseLayout

// NewConnectivityMatrix creates an empty matrix.
func NewConnectivityMatrix(outputCount, inputCount int) *ConnectivityMatrix {
	return nn.NewConnectivityMatrix(outputCount, inputCount)
}

// FillConnectivity adds degree-balanced random edges to a copy of base until it
// holds connectionCount connections.
func FillConnectivity(base *ConnectivityMatrix, connectionCount int, rng *rand.Rand, opts ConnectivityOptions) (*ConnectivityMatrix, ConnectivityReport, error) {
	return nn.FillConnectivity(base, connectionCount, rng, opts)
}

// EncodeLayout converts a connectivity matrix to its sparse layout.
func EncodeLayout(m *ConnectivityMatrix) *SparseLayout {
	return nn.EncodeLayout(m)
}

// NewGenerator returns a seeded random generator. A negative seed draws a random one.
func NewGenerator(seed int64) *rand.Rand {
	return nn.NewGenerator(seed)
}

// Records and registry

// LayerRecord is the serialized form of a layer.
type LayerRecord = nn.LayerRecord

// SparseConvolutionParam holds the serialized parameters of a SparseConvolution.
type SparseConvolutionParam = nn.SparseConvolutionParam

// DimensionParam holds the per-dimension window geometry of a record.
type DimensionParam = nn.DimensionParam

// LayerDecoder builds a layer from its record.
type LayerDecoder = nn.LayerDecoder

// ParseLayerRecord decodes a JSON layer record.
func ParseLayerRecord(data []byte) (LayerRecord, error) {
	return nn.ParseLayerRecord(data)
}

// RegisterLayer adds a decoder for typeName. It reports false if the name is taken.
func RegisterLayer(typeName string, decode LayerDecoder) bool {
	return nn.RegisterLayer(typeName, decode)
}

// DecodeLayer builds a layer from its record using the registered decoder.
func DecodeLayer(rec LayerRecord) (Layer, error) {
	return nn.DecodeLayer(rec)
}

// Errors

// Sentinel errors.
var (
	ErrInvalidConfiguration   = nn.ErrInvalidConfiguration
	ErrConnectivityInfeasible = nn.ErrConnectivityInfeasible
	ErrUnknownLayerType       = nn.ErrUnknownLayerType
	ErrInvalidLayerData       = nn.ErrInvalidLayerData
)

// ConfigError describes a configuration value that failed validation.
type ConfigError = nn.ConfigError
