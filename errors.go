package stagecraft

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error type constants for classification and matching
const (
	// ErrorTypeNotFound indicates an unknown session or checkpoint.
	ErrorTypeNotFound = "not_found"

	// ErrorTypeConflict indicates a command issued while the session is not
	// awaiting feedback, or while a stage-group is already in flight.
	ErrorTypeConflict = "conflict"

	// ErrorTypeGenerationFailed indicates the generation adapter failed for a
	// whole stage-group, including its sequential fallback.
	ErrorTypeGenerationFailed = "generation_failed"

	// ErrorTypeTimeout matches a deadline or cancellation error from a
	// generation call.
	ErrorTypeTimeout = "timeout"

	// ErrorTypeInvariant indicates an internal logic fault: a stage was
	// scheduled whose dependencies are not satisfied. Never expected in
	// correct operation.
	ErrorTypeInvariant = "invariant_violation"
)

// EngineError represents a structured error with classification.
// It supports Go's error wrapping patterns with Unwrap() method.
type EngineError struct {
	Type    string `json:"type"`
	Cause   string `json:"cause"`
	Stage   string `json:"stage,omitempty"`
	Wrapped error  `json:"-"`
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: stage %q: %s", e.Type, e.Stage, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Cause)
}

// Unwrap implements the error unwrapping interface for Go's errors.Is and errors.As
func (e *EngineError) Unwrap() error {
	return e.Wrapped
}

// NewEngineError creates a new EngineError with the specified type and cause.
func NewEngineError(errorType, cause string) *EngineError {
	return &EngineError{Type: errorType, Cause: cause}
}

// NewStageError creates a new EngineError attributed to a stage.
func NewStageError(errorType, stage, cause string) *EngineError {
	return &EngineError{Type: errorType, Stage: stage, Cause: cause}
}

// ClassifyError attempts to classify a regular error into an EngineError
func ClassifyError(err error) *EngineError {
	// If the error is already an EngineError, return it
	var engineError *EngineError
	if errors.As(err, &engineError) {
		return engineError
	}
	// Check for timeout patterns
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return &EngineError{
			Type:    ErrorTypeTimeout,
			Cause:   err.Error(),
			Wrapped: err,
		}
	}
	// Default to a generation failure
	return &EngineError{
		Type:    ErrorTypeGenerationFailed,
		Cause:   err.Error(),
		Wrapped: err,
	}
}

// IsErrorType reports whether err classifies to the given error type.
func IsErrorType(err error, errorType string) bool {
	if err == nil {
		return false
	}
	return ClassifyError(err).Type == errorType
}

// IsNotFound reports whether err is an unknown-session or unknown-checkpoint error.
func IsNotFound(err error) bool {
	return IsErrorType(err, ErrorTypeNotFound)
}

// IsConflict reports whether err is a command-ordering conflict.
func IsConflict(err error) bool {
	return IsErrorType(err, ErrorTypeConflict)
}

// IsGenerationFailure reports whether err is a generation failure or timeout.
func IsGenerationFailure(err error) bool {
	return IsErrorType(err, ErrorTypeGenerationFailed) || IsErrorType(err, ErrorTypeTimeout)
}
