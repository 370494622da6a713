package nn

import (
	"fmt"
)

// SparseLayout is the CSR-style encoding of a ConnectivityMatrix.
//
// ColumnIndices lists the connected input ids of output 0, then output 1, and so
// on, ascending within each output. RowOffsets[o] is the position of output o's
// first entry in ColumnIndices; RowOffsets[outputCount] equals len(ColumnIndices).
//
// Weights of output o occupy window-sized blocks RowOffsets[o]..RowOffsets[o+1]
// of the weight buffer, in the same order as its column indices.
type SparseLayout struct {
	ColumnIndices []int32
	RowOffsets    []int32
}

// EncodeLayout linearizes m into a SparseLayout.
func EncodeLayout(m *ConnectivityMatrix) *SparseLayout {
	layout := &SparseLayout{
		ColumnIndices: make([]int32, 0, m.ConnectionCount()),
		RowOffsets:    make([]int32, m.outputCount+1),
	}

	cursor := 0
	for o := 0; o < m.outputCount; o++ {
		layout.RowOffsets[o] = int32(cursor) //nolint:gosec // G115: bounded by outputCount*inputCount
		for i := 0; i < m.inputCount; i++ {
			if m.Connected(o, i) {
				layout.ColumnIndices = append(layout.ColumnIndices, int32(i)) //nolint:gosec // G115: i < inputCount
				cursor++
			}
		}
	}
	layout.RowOffsets[m.outputCount] = int32(cursor) //nolint:gosec // G115: bounded by outputCount*inputCount

	return layout
}

// OutputCount returns the number of rows.
func (s *SparseLayout) OutputCount() int {
	return len(s.RowOffsets) - 1
}

// ConnectionCount returns the number of encoded connections.
func (s *SparseLayout) ConnectionCount() int {
	return len(s.ColumnIndices)
}

// Degree returns the number of inputs connected to output o.
func (s *SparseLayout) Degree(o int) int {
	return int(s.RowOffsets[o+1] - s.RowOffsets[o])
}

// Row returns the input ids connected to output o.
func (s *SparseLayout) Row(o int) []int32 {
	return s.ColumnIndices[s.RowOffsets[o]:s.RowOffsets[o+1]]
}

// Matrix decodes the layout back into a ConnectivityMatrix with inputCount columns.
func (s *SparseLayout) Matrix(inputCount int) (*ConnectivityMatrix, error) {
	if err := s.Validate(s.OutputCount(), inputCount, s.ConnectionCount()); err != nil {
		return nil, err
	}
	m := NewConnectivityMatrix(s.OutputCount(), inputCount)
	for o := 0; o < s.OutputCount(); o++ {
		for _, i := range s.Row(o) {
			m.Connect(o, int(i))
		}
	}
	return m, nil
}

// Validate checks the layout against the expected dimensions:
// offsets start at 0, never decrease and end at connectionCount; column indices
// are in range and strictly ascending within each row.
func (s *SparseLayout) Validate(outputCount, inputCount, connectionCount int) error {
	if outputCount < 1 {
		return fmt.Errorf("%w: output count %d, expected >= 1", ErrInvalidLayerData, outputCount)
	}
	if len(s.RowOffsets) != outputCount+1 {
		return fmt.Errorf("%w: %d row offsets, expected %d", ErrInvalidLayerData, len(s.RowOffsets), outputCount+1)
	}
	if len(s.ColumnIndices) != connectionCount {
		return fmt.Errorf("%w: %d column indices, expected %d", ErrInvalidLayerData, len(s.ColumnIndices), connectionCount)
	}
	if s.RowOffsets[0] != 0 {
		return fmt.Errorf("%w: first row offset is %d, expected 0", ErrInvalidLayerData, s.RowOffsets[0])
	}
	if int(s.RowOffsets[outputCount]) != connectionCount {
		return fmt.Errorf("%w: last row offset is %d, expected %d", ErrInvalidLayerData, s.RowOffsets[outputCount], connectionCount)
	}

	for o := 0; o < outputCount; o++ {
		if s.RowOffsets[o+1] < s.RowOffsets[o] {
			return fmt.Errorf("%w: row offset %d (%d) is smaller than row offset %d (%d)",
				ErrInvalidLayerData, o+1, s.RowOffsets[o+1], o, s.RowOffsets[o])
		}
		if int(s.RowOffsets[o+1]) > connectionCount {
			return fmt.Errorf("%w: row offset %d (%d) exceeds connection count %d", ErrInvalidLayerData, o+1, s.RowOffsets[o+1], connectionCount)
		}
		row := s.Row(o)
		for k, i := range row {
			if i < 0 || int(i) >= inputCount {
				return fmt.Errorf("%w: column index %d of output %d out of range [0, %d)", ErrInvalidLayerData, i, o, inputCount)
			}
			if k > 0 && row[k-1] >= i {
				return fmt.Errorf("%w: column indices of output %d are not strictly ascending", ErrInvalidLayerData, o)
			}
		}
	}

	return nil
}
