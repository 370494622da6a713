package stats

import (
	"errors"
	"fmt"
)

// ErrUnknownLayer is returned for data addressed to a layer the aggregator does not track.
var ErrUnknownLayer = errors.New("unknown layer")

// ErrSizeMismatch is matched by SizeError.
var ErrSizeMismatch = errors.New("data size mismatch")

// SizeError reports a value slice that does not hold whole entries.
type SizeError struct {
	Layer     string
	Got       int // Values written
	EntrySize int // Values per entry
}

// Error implements the error interface.
func (e *SizeError) Error() string {
	return fmt.Sprintf("%s for layer %s: got %d values, expected a positive multiple of %d",
		ErrSizeMismatch, e.Layer, e.Got, e.EntrySize)
}

// Unwrap lets errors.Is match ErrSizeMismatch.
func (e *SizeError) Unwrap() error {
	return ErrSizeMismatch
}
