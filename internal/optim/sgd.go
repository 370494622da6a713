package optim

import (
	"fmt"

	"github.com/born-ml/sparseconv/internal/nn"
	"github.com/born-ml/sparseconv/internal/tensor"
)

// SGD implements Stochastic Gradient Descent with optional momentum and weight decay.
//
// Update rule, with wd applied to decayed parts only:
//
//	g = gradient + wd * param
//	velocity = momentum * velocity + g
//	param = param - lr * velocity
//
// Without momentum the velocity is g itself.
type SGD struct {
	params      []paramState
	lr          float32
	momentum    float32
	weightDecay float32
	velocities  map[string][]float32
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR          float32 // Learning rate (default: 0.01)
	Momentum    float32 // Momentum factor (default: 0.0, range: [0, 1))
	WeightDecay float32 // L2 penalty on decayed parts (default: 0.0)
}

// NewSGD creates an SGD optimizer for the parameters of one sparse convolution.
func NewSGD(layer *nn.SparseConvolution, data *nn.SparseConvolutionData, config SGDConfig) (*SGD, error) {
	if config.LR == 0 {
		config.LR = 0.01
	}
	if config.LR < 0 || config.Momentum < 0 || config.Momentum >= 1 || config.WeightDecay < 0 {
		return nil, fmt.Errorf("invalid SGD config: lr %g, momentum %g, weight decay %g",
			config.LR, config.Momentum, config.WeightDecay)
	}

	return &SGD{
		params:      layerParams(layer, data),
		lr:          config.LR,
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
		velocities:  make(map[string][]float32),
	}, nil
}

// Step performs a single optimization step.
//
// All gradients are checked before any parameter changes.
func (s *SGD) Step(grads map[string]*tensor.RawTensor) error {
	checked := make([][]float32, len(s.params))
	for i, p := range s.params {
		grad, err := getGradient(p.param, grads)
		if err != nil {
			return err
		}
		checked[i] = grad
	}

	for i, p := range s.params {
		if checked[i] == nil {
			continue
		}
		s.update(p, checked[i])
	}
	return nil
}

func (s *SGD) update(p paramState, grad []float32) {
	values := p.param.Data()

	var velocity []float32
	if s.momentum != 0 {
		velocity = s.velocities[p.param.Name()]
		if velocity == nil {
			velocity = make([]float32, len(values))
			s.velocities[p.param.Name()] = velocity
		}
	}

	for j, g := range grad {
		if p.decay {
			g += s.weightDecay * values[j]
		}
		if velocity != nil {
			velocity[j] = s.momentum*velocity[j] + g
			g = velocity[j]
		}
		values[j] -= s.lr * g
	}
}

// LR returns the current learning rate.
func (s *SGD) LR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float32) {
	s.lr = lr
}

// StateDict returns the momentum buffers, keyed "velocity.<parameter name>".
//
// Without momentum, returns an empty map.
func (s *SGD) StateDict() (map[string]*tensor.RawTensor, error) {
	stateDict := make(map[string]*tensor.RawTensor)
	if s.momentum == 0 {
		return stateDict, nil
	}

	for _, p := range s.params {
		velocity, ok := s.velocities[p.param.Name()]
		if !ok {
			continue // Not stepped yet
		}
		raw, err := tensor.FromFloat32(velocity, p.param.Tensor().Shape())
		if err != nil {
			return nil, err
		}
		stateDict["velocity."+p.param.Name()] = raw
	}
	return stateDict, nil
}

// LoadStateDict restores momentum buffers saved by StateDict.
//
// Returns an error if a buffer does not match its parameter's shape.
func (s *SGD) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if s.momentum == 0 {
		return nil
	}

	velocities := make(map[string][]float32)
	for _, p := range s.params {
		raw, ok := stateDict["velocity."+p.param.Name()]
		if !ok {
			continue
		}
		if raw.DType() != tensor.Float32 || !raw.Shape().Equal(p.param.Tensor().Shape()) {
			return fmt.Errorf("velocity mismatch for %s: expected float32 %v, got %s %v",
				p.param.Name(), p.param.Tensor().Shape(), raw.DType(), raw.Shape())
		}
		velocities[p.param.Name()] = append([]float32(nil), raw.AsFloat32()...)
	}

	s.velocities = velocities
	return nil
}
