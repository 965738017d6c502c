package config

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigNotFound indicates the configuration file was not found.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidYAML indicates YAML parsing failed.
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// ErrValidationFailed indicates configuration validation failed.
	ErrValidationFailed = errors.New("configuration validation failed")

	// ErrMissingRequiredField indicates a required field is missing.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrInvalidValue indicates a field has an invalid value.
	ErrInvalidValue = errors.New("invalid field value")
)

// ValidationError wraps a single configuration field failure with enough
// context (component + field) to report a precise message without the
// caller needing to re-derive it from a bare error string.
type ValidationError struct {
	Component string
	Field     string
	Err       error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field '%s': %v", e.Component, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Component, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError constructs a ValidationError.
func NewValidationError(component, field string, err error) *ValidationError {
	return &ValidationError{Component: component, Field: field, Err: err}
}

// LoadError wraps a configuration-loading failure with the file that
// caused it.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("failed to load %s: %v", e.File, e.Err) }

func (e *LoadError) Unwrap() error { return e.Err }

// NewLoadError constructs a LoadError.
func NewLoadError(file string, err error) *LoadError {
	return &LoadError{File: file, Err: err}
}
