package nn

import (
	"github.com/born-ml/sparseconv/internal/tensor"
)

// Parameter is a named float32 buffer owned by a layer (e.g., weights, bias).
//
// Example:
//
//	weight := nn.NewParameter("weight", raw)
//	values := weight.Data()
type Parameter struct {
	name   string            // Parameter name (e.g., "weight", "bias")
	tensor *tensor.RawTensor // Float32 storage
}

// NewParameter creates a new parameter over an initialized float32 tensor.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.tensor
}

// Data returns the parameter values. Writes go directly to the tensor.
func (p *Parameter) Data() []float32 {
	return p.tensor.AsFloat32()
}
