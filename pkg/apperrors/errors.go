// Package apperrors defines the error kinds shared across the analysis
// pipeline. Errors are kinds, not types: callers branch on sentinel values
// with errors.Is and on the wrapper types below with errors.As, the same
// discipline the rest of this codebase uses for config and session errors.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a session or resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrSandboxUnavailable is returned when the container daemon cannot be reached.
	ErrSandboxUnavailable = errors.New("sandbox runtime unavailable")

	// ErrImageMissing is returned when the sandbox image is absent and build-on-init is disabled.
	ErrImageMissing = errors.New("sandbox image missing")

	// ErrTimeout is returned when an execution exceeds its deadline.
	ErrTimeout = errors.New("execution timed out")

	// ErrCancelled is returned when the caller aborts an in-flight execution.
	ErrCancelled = errors.New("execution cancelled")
)

// Kind categorizes a failure for logging and HTTP status mapping, matching
// the taxonomy named in the error handling design: ValidationFailure,
// GenerationFailure, SandboxInfraError, ProgramRuntimeError,
// Timeout/Cancellation, TransportError.
type Kind string

const (
	KindValidation     Kind = "validation_failure"
	KindGeneration     Kind = "generation_failure"
	KindSandboxInfra   Kind = "sandbox_infra_error"
	KindProgramRuntime Kind = "program_runtime_error"
	KindTimeout        Kind = "timeout"
	KindCancelled      Kind = "cancelled"
	KindTransport      Kind = "transport_error"
)

// PipelineError wraps a failure with the kind it belongs to and the
// execution id it occurred under, so logs can correlate without leaking
// the raw error to the client.
type PipelineError struct {
	Kind        Kind
	ExecutionID string
	Err         error
}

func (e *PipelineError) Error() string {
	if e.ExecutionID != "" {
		return fmt.Sprintf("%s [execution=%s]: %v", e.Kind, e.ExecutionID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// New constructs a PipelineError of the given kind.
func New(kind Kind, executionID string, err error) *PipelineError {
	return &PipelineError{Kind: kind, ExecutionID: executionID, Err: err}
}

// As reports whether err is a *PipelineError, populating kind when it is.
func KindOf(err error) (Kind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}
