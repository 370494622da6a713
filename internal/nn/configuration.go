package nn

import (
	"fmt"

	"github.com/born-ml/sparseconv/internal/tensor"
)

// LayerConfiguration describes the data flowing into or out of a layer:
// a number of feature maps, each with the same spatial extent.
//
// A configuration with no dimension sizes describes plain vectors (one neuron per feature map).
type LayerConfiguration struct {
	FeatureMapCount int
	DimensionSizes  tensor.Shape
}

// NewLayerConfiguration creates a configuration with featureMapCount feature maps of the given spatial size.
func NewLayerConfiguration(featureMapCount int, dimensionSizes ...int) LayerConfiguration {
	return LayerConfiguration{
		FeatureMapCount: featureMapCount,
		DimensionSizes:  tensor.Shape(dimensionSizes).Clone(),
	}
}

// DimensionCount returns the number of spatial dimensions.
func (c LayerConfiguration) DimensionCount() int {
	return len(c.DimensionSizes)
}

// NeuronCountPerFeatureMap returns the number of spatial positions in one feature map.
func (c LayerConfiguration) NeuronCountPerFeatureMap() int {
	return c.DimensionSizes.NumElements()
}

// NeuronCount returns the total number of neurons across all feature maps.
func (c LayerConfiguration) NeuronCount() int {
	return c.FeatureMapCount * c.NeuronCountPerFeatureMap()
}

// Equal reports whether both configurations have the same feature map count and spatial extent.
func (c LayerConfiguration) Equal(other LayerConfiguration) bool {
	return c.FeatureMapCount == other.FeatureMapCount && c.DimensionSizes.Equal(other.DimensionSizes)
}

// String returns e.g. "4 fm, 28x28".
func (c LayerConfiguration) String() string {
	if len(c.DimensionSizes) == 0 {
		return fmt.Sprintf("%d fm", c.FeatureMapCount)
	}
	return fmt.Sprintf("%d fm, %s", c.FeatureMapCount, c.DimensionSizes)
}
