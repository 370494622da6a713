// Package stats accumulates per feature map statistics of layer data streamed in
// from concurrent producers.
package stats

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/born-ml/sparseconv/internal/nn"
	"github.com/born-ml/sparseconv/internal/parallel"
	"gonum.org/v1/gonum/floats"
)

// FeatureMapStats summarizes all values written for one feature map.
type FeatureMapStats struct {
	Average float32
	StdDev  float32
	Min     float32
	Max     float32
}

// String returns e.g. "avg 0.0012, std 0.1983, min -0.6120, max 0.5870".
func (s FeatureMapStats) String() string {
	return fmt.Sprintf("avg %.4f, std %.4f, min %.4f, max %.4f", s.Average, s.StdDev, s.Min, s.Max)
}

// Aggregator collects running sums per feature map for a fixed set of named layers.
//
// Write may be called from multiple goroutines. Per feature map reductions run
// outside the lock; only the merge is serialized.
type Aggregator struct {
	cfg parallel.Config

	mu     sync.Mutex
	layers map[string]*accumulator
}

type accumulator struct {
	config     nn.LayerConfiguration
	entryCount int
	sum        []float64
	sumSq      []float64
	min        []float64
	max        []float64
}

// partial holds the reductions of one write for one layer.
type partial struct {
	entries int
	sum     []float64
	sumSq   []float64
	min     []float64
	max     []float64
}

// NewAggregator creates an aggregator for the given layer configurations.
func NewAggregator(layers map[string]nn.LayerConfiguration) *Aggregator {
	a := &Aggregator{
		cfg:    parallel.DefaultConfig(),
		layers: make(map[string]*accumulator, len(layers)),
	}
	for name, config := range layers {
		n := config.FeatureMapCount
		acc := &accumulator{
			config: config,
			sum:    make([]float64, n),
			sumSq:  make([]float64, n),
			min:    make([]float64, n),
			max:    make([]float64, n),
		}
		for m := 0; m < n; m++ {
			acc.min[m] = math.Inf(1)
			acc.max[m] = math.Inf(-1)
		}
		a.layers[name] = acc
	}
	return a
}

// SetParallelConfig overrides the parallel execution settings used by Write.
// Writes already in progress keep the settings they started with.
func (a *Aggregator) SetParallelConfig(cfg parallel.Config) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
}

// Write adds one or more entries per layer. Each value slice holds whole entries
// laid out as [entry][feature map][neuron].
//
// Nothing is merged if any layer name is unknown or any slice length is not a
// positive multiple of the layer's neuron count.
func (a *Aggregator) Write(data map[string][]float32) error {
	for name, values := range data {
		acc, ok := a.layers[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownLayer, name)
		}
		neurons := acc.config.NeuronCount()
		if len(values) == 0 || neurons == 0 || len(values)%neurons != 0 {
			return &SizeError{Layer: name, Got: len(values), EntrySize: neurons}
		}
	}

	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()

	partials := make(map[string]*partial, len(data))
	for name, values := range data {
		partials[name] = reduce(a.layers[name].config, values, cfg)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for name, p := range partials {
		acc := a.layers[name]
		for m := range acc.sum {
			acc.sum[m] += p.sum[m]
			acc.sumSq[m] += p.sumSq[m]
			acc.min[m] = math.Min(acc.min[m], p.min[m])
			acc.max[m] = math.Max(acc.max[m], p.max[m])
		}
		acc.entryCount += p.entries
	}

	return nil
}

// reduce scans every (entry, feature map) block in parallel and folds the
// block results per feature map.
func reduce(config nn.LayerConfiguration, values []float32, cfg parallel.Config) *partial {
	fmCount := config.FeatureMapCount
	perFM := config.NeuronCountPerFeatureMap()
	entries := len(values) / config.NeuronCount()

	blocks := entries * fmCount
	sum := make([]float64, blocks)
	sumSq := make([]float64, blocks)
	mins := make([]float64, blocks)
	maxs := make([]float64, blocks)

	parallel.ForBatch(entries, fmCount, func(e, m int) {
		k := e*fmCount + m
		block := make([]float64, perFM)
		for i, v := range values[k*perFM : (k+1)*perFM] {
			block[i] = float64(v)
		}
		sum[k] = floats.Sum(block)
		sumSq[k] = floats.Dot(block, block)
		mins[k] = floats.Min(block)
		maxs[k] = floats.Max(block)
	}, cfg)

	p := &partial{
		entries: entries,
		sum:     make([]float64, fmCount),
		sumSq:   make([]float64, fmCount),
		min:     make([]float64, fmCount),
		max:     make([]float64, fmCount),
	}
	for m := 0; m < fmCount; m++ {
		p.min[m] = math.Inf(1)
		p.max[m] = math.Inf(-1)
	}
	for e := 0; e < entries; e++ {
		for m := 0; m < fmCount; m++ {
			k := e*fmCount + m
			p.sum[m] += sum[k]
			p.sumSq[m] += sumSq[k]
			p.min[m] = math.Min(p.min[m], mins[k])
			p.max[m] = math.Max(p.max[m], maxs[k])
		}
	}
	return p
}

// EntryCount returns the number of entries written for the layer.
func (a *Aggregator) EntryCount(name string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	acc, ok := a.layers[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLayer, name)
	}
	return acc.entryCount, nil
}

// LayerNames returns the tracked layer names in sorted order.
func (a *Aggregator) LayerNames() []string {
	names := make([]string, 0, len(a.layers))
	for name := range a.layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns per layer, per feature map statistics:
//
//	avg = sum / (entries * neurons)
//	std = sqrt(max(0, sum_sq / (entries * neurons) - avg^2))
//
// Layers without entries report zeros.
func (a *Aggregator) Stats() map[string][]FeatureMapStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	res := make(map[string][]FeatureMapStats, len(a.layers))
	for name, acc := range a.layers {
		fmStats := make([]FeatureMapStats, acc.config.FeatureMapCount)
		if acc.entryCount > 0 {
			count := float64(acc.entryCount * acc.config.NeuronCountPerFeatureMap())
			for m := range fmStats {
				avg := acc.sum[m] / count
				avgSq := acc.sumSq[m] / count
				fmStats[m] = FeatureMapStats{
					Average: float32(avg),
					StdDev:  float32(math.Sqrt(math.Max(0, avgSq-avg*avg))),
					Min:     float32(acc.min[m]),
					Max:     float32(acc.max[m]),
				}
			}
		}
		res[name] = fmStats
	}
	return res
}
