package arenacache

import (
	"errors"
	"fmt"
)

// Error types for specific failure scenarios
var (
	// ErrInvalidConfig indicates invalid configuration options
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrAlreadyStarted indicates Start was called twice
	ErrAlreadyStarted = errors.New("cache already started")

	// ErrClosed indicates the cache has been closed
	ErrClosed = errors.New("cache is closed")
)

// ConfigError reports which option was rejected
type ConfigError struct {
	Field string
	Err   error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

// Unwrap returns the wrapped error
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func invalid(field, format string, args ...interface{}) error {
	return &ConfigError{
		Field: field,
		Err:   fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfig}, args...)...),
	}
}
