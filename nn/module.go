// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"fmt"

	"github.com/born-ml/sparseconv/internal/nn"
	"github.com/born-ml/sparseconv/internal/serialization"
)

// Header is the JSON header of a .born file.
type Header = serialization.Header

// Save writes a sparse convolution and its data to a .born file.
//
// The layer record is stored in the file metadata under "layer_record", so
// Load needs nothing but the path. Extra metadata entries are kept as given.
//
// Example:
//
//	data, _ := conv.Randomize(nn.NewGenerator(42))
//	err := nn.Save(conv, data, "conv.born", map[string]string{"seed": "42"})
func Save(layer *SparseConvolution, data *SparseConvolutionData, path string, metadata map[string]string) error {
	record, err := layer.Record().Marshal()
	if err != nil {
		return err
	}
	stateDict, err := data.StateDict()
	if err != nil {
		return err
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[serialization.MetadataLayerRecord] = string(record)

	writer, err := serialization.NewBornWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = writer.Close()
	}()

	return writer.WriteStateDict(stateDict, layer.TypeName(), meta)
}

// Load reads a layer written by Save and validates its data against the layer.
//
// Example:
//
//	conv, data, header, err := nn.Load("conv.born")
func Load(path string) (*SparseConvolution, *SparseConvolutionData, Header, error) {
	reader, err := serialization.NewBornReader(path)
	if err != nil {
		return nil, nil, Header{}, err
	}
	defer func() {
		_ = reader.Close()
	}()

	recordJSON, ok := reader.Metadata()[serialization.MetadataLayerRecord]
	if !ok {
		return nil, nil, Header{}, fmt.Errorf("%w: %s has no layer record", ErrInvalidLayerData, path)
	}
	rec, err := nn.ParseLayerRecord([]byte(recordJSON))
	if err != nil {
		return nil, nil, Header{}, err
	}
	layer, err := nn.DecodeLayer(rec)
	if err != nil {
		return nil, nil, Header{}, err
	}
	conv, ok := layer.(*SparseConvolution)
	if !ok {
		return nil, nil, Header{}, fmt.Errorf("%w: %s holds a %s layer", ErrInvalidLayerData, path, layer.TypeName())
	}

	stateDict, err := reader.ReadStateDict()
	if err != nil {
		return nil, nil, Header{}, err
	}
	data, err := nn.LoadSparseConvolutionData(conv, stateDict)
	if err != nil {
		return nil, nil, Header{}, err
	}

	return conv, data, reader.Header(), nil
}
