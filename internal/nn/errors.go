package nn

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrInvalidConfiguration   = errors.New("invalid layer configuration")
	ErrConnectivityInfeasible = errors.New("connectivity pattern cannot be placed")
	ErrUnknownLayerType       = errors.New("unknown layer type")
	ErrInvalidLayerData       = errors.New("invalid layer data")
)

// ConfigError describes a configuration value that failed validation.
//
// It always unwraps to ErrInvalidConfiguration.
type ConfigError struct {
	Field    string // Offending parameter (e.g., "window_sizes[1]")
	Value    any    // Actual value
	Expected string // Expected value or constraint, if any
	Details  string // Additional details
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("%s: %s = %v", ErrInvalidConfiguration, e.Field, e.Value)
	if e.Expected != "" {
		msg += fmt.Sprintf(", expected %s", e.Expected)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

// Unwrap lets errors.Is match ErrInvalidConfiguration.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}

func configErrorf(field string, value any, expected, format string, args ...any) *ConfigError {
	return &ConfigError{
		Field:    field,
		Value:    value,
		Expected: expected,
		Details:  fmt.Sprintf(format, args...),
	}
}
