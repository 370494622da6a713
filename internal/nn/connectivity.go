package nn

import (
	"fmt"
	"log/slog"

	"golang.org/x/exp/rand"
)

// ConnectivityMatrix is a boolean relation between output and input feature maps.
//
// Cell (o, i) is true when output feature map o reads input feature map i.
// Cells are stored row-major by output id.
type ConnectivityMatrix struct {
	outputCount int
	inputCount  int
	cells       []bool
}

// NewConnectivityMatrix creates an empty matrix for the given feature map counts.
func NewConnectivityMatrix(outputCount, inputCount int) *ConnectivityMatrix {
	return &ConnectivityMatrix{
		outputCount: outputCount,
		inputCount:  inputCount,
		cells:       make([]bool, outputCount*inputCount),
	}
}

// OutputCount returns the number of output feature maps (rows).
func (m *ConnectivityMatrix) OutputCount() int {
	return m.outputCount
}

// InputCount returns the number of input feature maps (columns).
func (m *ConnectivityMatrix) InputCount() int {
	return m.inputCount
}

// Connected reports whether output o is connected to input i.
func (m *ConnectivityMatrix) Connected(o, i int) bool {
	return m.cells[o*m.inputCount+i]
}

// Connect marks output o as connected to input i.
func (m *ConnectivityMatrix) Connect(o, i int) {
	m.cells[o*m.inputCount+i] = true
}

func (m *ConnectivityMatrix) disconnect(o, i int) {
	m.cells[o*m.inputCount+i] = false
}

// Clone returns an independent copy of the matrix.
func (m *ConnectivityMatrix) Clone() *ConnectivityMatrix {
	cells := make([]bool, len(m.cells))
	copy(cells, m.cells)
	return &ConnectivityMatrix{
		outputCount: m.outputCount,
		inputCount:  m.inputCount,
		cells:       cells,
	}
}

// ConnectionCount returns the number of connected pairs.
func (m *ConnectivityMatrix) ConnectionCount() int {
	n := 0
	for _, c := range m.cells {
		if c {
			n++
		}
	}
	return n
}

// OutputDegrees returns, for every output feature map, the number of inputs it reads.
func (m *ConnectivityMatrix) OutputDegrees() []int {
	res := make([]int, m.outputCount)
	for o := 0; o < m.outputCount; o++ {
		for i := 0; i < m.inputCount; i++ {
			if m.Connected(o, i) {
				res[o]++
			}
		}
	}
	return res
}

// InputDegrees returns, for every input feature map, the number of outputs reading it.
func (m *ConnectivityMatrix) InputDegrees() []int {
	res := make([]int, m.inputCount)
	for o := 0; o < m.outputCount; o++ {
		for i := 0; i < m.inputCount; i++ {
			if m.Connected(o, i) {
				res[i]++
			}
		}
	}
	return res
}

// Attempt budgets per edge, per tier.
const (
	cyclicAttempts   = 20
	randomAttempts   = 100
	overflowAttempts = 100
)

// DefaultStrictPasses is the number of passes per margin that refuse to exceed the soft caps.
const DefaultStrictPasses = 8

// ConnectivityOptions tunes FillConnectivity.
type ConnectivityOptions struct {
	// MaxMargin is the largest relaxation tried before giving up.
	// Zero means max(outputCount, inputCount), at which every free pair is reachable.
	MaxMargin int

	// StrictPasses is the number of passes per margin that may not use the overflow caps.
	// Zero means DefaultStrictPasses; a negative value disables strict passes.
	StrictPasses int

	// Logger receives margin escalations at debug level. Nil disables logging.
	Logger *slog.Logger
}

// DegreeCaps are the per-side degree limits in effect for one margin.
type DegreeCaps struct {
	Output         int // Soft cap on the inputs read by one output feature map
	Input          int // Soft cap on the outputs reading one input feature map
	OutputOverflow int // Hard cap on output degree for overflow placements
	InputOverflow  int // Hard cap on input degree for overflow placements
}

// CapsForMargin computes the degree caps for connectionCount edges at the given margin:
//
//	cap = ceil(connectionCount / count) + margin
//	overflow = max(cap + 1, int(cap * 1.01))
func CapsForMargin(connectionCount, outputCount, inputCount, margin int) DegreeCaps {
	out := (connectionCount+outputCount-1)/outputCount + margin
	in := (connectionCount+inputCount-1)/inputCount + margin
	return DegreeCaps{
		Output:         out,
		Input:          in,
		OutputOverflow: max(out+1, int(float32(out)*1.01)),
		InputOverflow:  max(in+1, int(float32(in)*1.01)),
	}
}

// ConnectivityReport describes how FillConnectivity reached its result.
type ConnectivityReport struct {
	Margin       int        // Margin of the successful pass
	Caps         DegreeCaps // Caps of the successful pass
	Passes       int        // Total passes run, including the successful one
	UsedOverflow bool       // Whether the successful pass was allowed to exceed the soft caps
	Reassigned   int        // Edges moved onto feature maps the pass left unconnected
}

// FillConnectivity adds edges to a copy of base until it holds connectionCount
// connected pairs with degrees as uniform as possible on both sides.
//
// Each pass places the missing edges greedily under the current caps:
//  1. cycle through outputs below their cap, pairing each with a random input below its cap
//  2. pick both endpoints at random among the ids below their caps
//  3. pick both endpoints at random among the ids below their overflow caps
//
// Every tier ends with a uniform pick among its remaining free pairs before
// giving up. Feature maps a completed pass leaves without any connection take
// over a randomly chosen edge from a feature map on the same side that has more
// than one; edges already present in base are never moved.
//
// A pass that cannot place an edge is discarded and the next pass starts again
// from base; after the strict passes and one overflow pass fail at a margin,
// the margin grows by one. base is never modified.
//
// It returns ErrConnectivityInfeasible once the margin exceeds opts.MaxMargin.
func FillConnectivity(
	base *ConnectivityMatrix,
	connectionCount int,
	rng *rand.Rand,
	opts ConnectivityOptions,
) (*ConnectivityMatrix, ConnectivityReport, error) {
	dense := base.outputCount * base.inputCount
	if base.outputCount <= 0 || base.inputCount <= 0 {
		return nil, ConnectivityReport{}, configErrorf("connectivity matrix", fmt.Sprintf("%dx%d", base.outputCount, base.inputCount),
			"at least 1x1", "")
	}
	if connectionCount > dense {
		return nil, ConnectivityReport{}, configErrorf("feature_map_connection_count", connectionCount, fmt.Sprintf("<= %d", dense),
			"may not be larger than in dense case")
	}

	maxMargin := opts.MaxMargin
	if maxMargin <= 0 {
		maxMargin = max(base.outputCount, base.inputCount)
	}
	strictPasses := opts.StrictPasses
	if strictPasses == 0 {
		strictPasses = DefaultStrictPasses
	}

	var report ConnectivityReport
	for margin := 0; margin <= maxMargin; margin++ {
		caps := CapsForMargin(connectionCount, base.outputCount, base.inputCount, margin)

		for p := 0; p < strictPasses; p++ {
			report.Passes++
			if m, ok := fillPass(base, connectionCount, caps, false, rng); ok {
				report.Margin, report.Caps = margin, caps
				report.Reassigned = coverIsolated(base, m, rng)
				return m, report, nil
			}
		}

		report.Passes++
		if m, ok := fillPass(base, connectionCount, caps, true, rng); ok {
			report.Margin, report.Caps, report.UsedOverflow = margin, caps, true
			report.Reassigned = coverIsolated(base, m, rng)
			return m, report, nil
		}

		if opts.Logger != nil {
			opts.Logger.Debug("relaxing connectivity degree caps",
				"margin", margin+1,
				"connections", connectionCount,
				"outputs", base.outputCount,
				"inputs", base.inputCount,
				"passes", report.Passes)
		}
	}

	return nil, report, fmt.Errorf("%w: %d connections between %d outputs and %d inputs after margin %d",
		ErrConnectivityInfeasible, connectionCount, base.outputCount, base.inputCount, maxMargin)
}

// fillPass runs one greedy placement pass on a copy of base.
//
//nolint:gocognit,gocyclo,cyclop // Tiered placement is clearer as one loop
func fillPass(base *ConnectivityMatrix, connectionCount int, caps DegreeCaps, allowOverflow bool, rng *rand.Rand) (*ConnectivityMatrix, bool) {
	m := base.Clone()

	outDegrees := m.OutputDegrees()
	inDegrees := m.InputDegrees()
	outAvailable := idsBelow(outDegrees, caps.Output)
	outOverflow := idsBelow(outDegrees, caps.OutputOverflow)
	inAvailable := idsBelow(inDegrees, caps.Input)
	inOverflow := idsBelow(inDegrees, caps.InputOverflow)

	strict := len(outAvailable) > 0 && len(inAvailable) > 0
	cursor := 0

	for placed := m.ConnectionCount(); placed < connectionCount; placed++ {
		o, i, found := 0, 0, false

		if strict {
			for attempt := 0; attempt < cyclicAttempts && !found; attempt++ {
				o = outAvailable[cursor]
				i = inAvailable[rng.Intn(len(inAvailable))]
				found = !m.Connected(o, i)
			}
			for attempt := 0; attempt < randomAttempts && !found; attempt++ {
				o = outAvailable[rng.Intn(len(outAvailable))]
				i = inAvailable[rng.Intn(len(inAvailable))]
				found = !m.Connected(o, i)
			}
			if !found {
				o, i, found = pickFreePair(m, outAvailable, inAvailable, rng)
			}
			strict = found
		}

		if !found && allowOverflow && len(outOverflow) > 0 && len(inOverflow) > 0 {
			for attempt := 0; attempt < overflowAttempts && !found; attempt++ {
				o = outOverflow[rng.Intn(len(outOverflow))]
				i = inOverflow[rng.Intn(len(inOverflow))]
				found = !m.Connected(o, i)
			}
			if !found {
				o, i, found = pickFreePair(m, outOverflow, inOverflow, rng)
			}
		}

		if !found {
			return nil, false
		}

		m.Connect(o, i)

		outDegrees[o]++
		if outDegrees[o] == caps.Output {
			outAvailable = removeID(outAvailable, o)
		} else {
			cursor++
			if outDegrees[o] == caps.OutputOverflow {
				outOverflow = removeID(outOverflow, o)
			}
		}

		inDegrees[i]++
		if inDegrees[i] == caps.Input {
			inAvailable = removeID(inAvailable, i)
		} else if inDegrees[i] == caps.InputOverflow {
			inOverflow = removeID(inOverflow, i)
		}

		if len(outAvailable) > 0 {
			cursor %= len(outAvailable)
		}
		if strict {
			strict = len(outAvailable) > 0 && len(inAvailable) > 0
		}
	}

	return m, true
}

// coverIsolated gives every unconnected feature map of m one edge taken from a
// same-side feature map with degree > 1, keeping the other endpoint. Degrees on
// the opposite side are unchanged. It returns the number of moved edges.
func coverIsolated(base, m *ConnectivityMatrix, rng *rand.Rand) int {
	type edge struct{ o, i int }
	moved := 0

	inDegrees := m.InputDegrees()
	for i, d := range inDegrees {
		if d != 0 {
			continue
		}
		var donors []edge
		for o := 0; o < m.outputCount; o++ {
			for j := 0; j < m.inputCount; j++ {
				if inDegrees[j] > 1 && m.Connected(o, j) && !base.Connected(o, j) {
					donors = append(donors, edge{o, j})
				}
			}
		}
		if len(donors) == 0 {
			continue
		}
		e := donors[rng.Intn(len(donors))]
		m.disconnect(e.o, e.i)
		m.Connect(e.o, i)
		inDegrees[e.i]--
		inDegrees[i]++
		moved++
	}

	outDegrees := m.OutputDegrees()
	for o, d := range outDegrees {
		if d != 0 {
			continue
		}
		var donors []edge
		for p := 0; p < m.outputCount; p++ {
			if outDegrees[p] <= 1 {
				continue
			}
			for i := 0; i < m.inputCount; i++ {
				if m.Connected(p, i) && !base.Connected(p, i) {
					donors = append(donors, edge{p, i})
				}
			}
		}
		if len(donors) == 0 {
			continue
		}
		e := donors[rng.Intn(len(donors))]
		m.disconnect(e.o, e.i)
		m.Connect(o, e.i)
		outDegrees[e.o]--
		outDegrees[o]++
		moved++
	}

	return moved
}

// pickFreePair picks uniformly among the unconnected pairs in outs x ins.
func pickFreePair(m *ConnectivityMatrix, outs, ins []int, rng *rand.Rand) (int, int, bool) {
	free := 0
	for _, o := range outs {
		for _, i := range ins {
			if !m.Connected(o, i) {
				free++
			}
		}
	}
	if free == 0 {
		return 0, 0, false
	}

	k := rng.Intn(free)
	for _, o := range outs {
		for _, i := range ins {
			if m.Connected(o, i) {
				continue
			}
			if k == 0 {
				return o, i, true
			}
			k--
		}
	}
	return 0, 0, false
}

func idsBelow(degrees []int, limit int) []int {
	res := make([]int, 0, len(degrees))
	for id, d := range degrees {
		if d < limit {
			res = append(res, id)
		}
	}
	return res
}

// removeID deletes id from ids preserving order; ids without it are returned unchanged.
func removeID(ids []int, id int) []int {
	for k, v := range ids {
		if v == id {
			return append(ids[:k], ids[k+1:]...)
		}
	}
	return ids
}
