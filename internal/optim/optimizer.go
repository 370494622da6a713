// Package optim applies externally computed gradients to sparse convolution
// parameters.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum and weight decay
//
// Weight decay is applied only to the parameter parts a layer lists in
// WeightDecayPartIDs; for SparseConvolution that is the weight, never the bias.
//
// Example usage:
//
//	optimizer, err := optim.NewSGD(conv, data, optim.SGDConfig{
//	    LR:          0.01,
//	    Momentum:    0.9,
//	    WeightDecay: 5e-4,
//	})
//
//	for step := range steps {
//	    grads := computeGradients(data)  // keyed "weight", "bias"
//	    if err := optimizer.Step(grads); err != nil {
//	        return err
//	    }
//	}
package optim

import (
	"fmt"

	"github.com/born-ml/sparseconv/internal/nn"
	"github.com/born-ml/sparseconv/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters.
	//
	// Gradients are keyed by parameter name and must match the parameter
	// size. Parameters without a gradient are left unchanged.
	Step(grads map[string]*tensor.RawTensor) error

	// LR returns the current learning rate.
	LR() float32
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float32 // Learning rate
}

// paramState pairs a parameter with its weight decay setting.
type paramState struct {
	param *nn.Parameter
	decay bool
}

// layerParams lists the parameters of data in part order and marks the
// parts the layer subjects to weight decay.
func layerParams(layer *nn.SparseConvolution, data *nn.SparseConvolutionData) []paramState {
	decayed := make(map[int]bool)
	for _, id := range layer.WeightDecayPartIDs() {
		decayed[id] = true
	}

	params := data.Parameters()
	res := make([]paramState, len(params))
	for i, p := range params {
		res[i] = paramState{param: p, decay: decayed[i]}
	}
	return res
}

// getGradient retrieves and checks the gradient for a parameter.
//
// Returns nil if no gradient is given for it.
func getGradient(param *nn.Parameter, grads map[string]*tensor.RawTensor) ([]float32, error) {
	grad, ok := grads[param.Name()]
	if !ok {
		return nil, nil
	}
	if grad.DType() != tensor.Float32 {
		return nil, fmt.Errorf("gradient for %s has dtype %s, expected float32", param.Name(), grad.DType())
	}
	if grad.NumElements() != len(param.Data()) {
		return nil, fmt.Errorf("gradient for %s has %d elements, expected %d", param.Name(), grad.NumElements(), len(param.Data()))
	}
	return grad.AsFloat32(), nil
}
