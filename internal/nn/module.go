// Package nn implements the sparse convolution layer and its supporting algorithms:
// shape inference, randomized degree-balanced connectivity generation, CSR-style
// sparse layout encoding and fan-in scaled weight initialization.
//
// Layers describe shape algebra, persisted parameters and execution cost.
// Execution kernels are provided by backends and are not part of this package.
package nn

// Layer is the base interface for all layer descriptions.
//
// Every layer must implement:
//   - Shape algebra: OutputConfiguration and InputConfiguration
//   - Storage layout: DataConfig and CustomDataConfig
//   - Cost estimation: FlopsPerEntry
//   - Description and persistence: ParameterStrings and Record
type Layer interface {
	// TypeName returns the registered layer type name (e.g., "SparseConvolution").
	TypeName() string

	// InstanceName returns the name of this layer within a network.
	InstanceName() string

	// OutputConfiguration computes the output configuration for the given input.
	OutputConfiguration(input LayerConfiguration) (LayerConfiguration, error)

	// InputConfiguration reconstructs the input configuration that produces the given output.
	//
	// The reconstruction is best effort for strided layers.
	InputConfiguration(output LayerConfiguration) (LayerConfiguration, error)

	// FlopsPerEntry estimates floating point operations per input entry for the action.
	FlopsPerEntry(input LayerConfiguration, action Action) (float64, error)

	// DataConfig returns the element count of each parameter buffer.
	DataConfig() []int

	// CustomDataConfig returns the element count of each custom (integer) buffer.
	CustomDataConfig() []int

	// ParameterStrings returns human-readable descriptions of the layer parameters.
	ParameterStrings() []string

	// Record returns the serializable form of the layer.
	Record() LayerRecord

	// Clone returns an independent copy of the layer description.
	Clone() Layer
}

// Action identifies the computation a cost estimate refers to.
type Action int

// Supported actions.
const (
	ActionForward Action = iota + 1
	ActionBackwardData
	ActionBackwardWeights
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionForward:
		return "forward"
	case ActionBackwardData:
		return "backward_data"
	case ActionBackwardWeights:
		return "backward_weights"
	default:
		return "unknown"
	}
}
