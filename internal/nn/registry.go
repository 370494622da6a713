package nn

import (
	"fmt"
	"sort"
	"sync"
)

// LayerDecoder builds a layer from its serialized record.
type LayerDecoder func(rec LayerRecord) (Layer, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]LayerDecoder{
		SparseConvolutionTypeName: decodeSparseConvolution,
	}
)

// RegisterLayer makes a layer type decodable by DecodeLayer.
// It returns false if the type name is already registered.
func RegisterLayer(typeName string, decode LayerDecoder) bool {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := registry[typeName]; ok {
		return false
	}
	registry[typeName] = decode
	return true
}

// UnregisterLayer removes a layer type. It returns false if it was not registered.
func UnregisterLayer(typeName string) bool {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := registry[typeName]; !ok {
		return false
	}
	delete(registry, typeName)
	return true
}

// RegisteredLayerTypes returns the registered type names in sorted order.
func RegisteredLayerTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecodeLayer builds the layer described by rec using the decoder registered for rec.Type.
func DecodeLayer(rec LayerRecord) (Layer, error) {
	registryMu.RLock()
	decode, ok := registry[rec.Type]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayerType, rec.Type)
	}
	return decode(rec)
}
