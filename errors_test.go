package stagecraft

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEngineErrorWrapping(t *testing.T) {
	// Test basic error creation
	err := NewEngineError(ErrorTypeConflict, "session is not awaiting feedback")
	require.Equal(t, "conflict: session is not awaiting feedback", err.Error())
	require.Nil(t, err.Unwrap())

	// Stage attribution appears in the message
	stageErr := NewStageError(ErrorTypeGenerationFailed, "factions", "call failed")
	require.Equal(t, `generation_failed: stage "factions": call failed`, stageErr.Error())

	// Test error wrapping
	originalErr := errors.New("network connection failed")
	wrappedErr := &EngineError{
		Type:    ErrorTypeGenerationFailed,
		Cause:   originalErr.Error(),
		Wrapped: originalErr,
	}
	require.True(t, errors.Is(wrappedErr, originalErr))

	var engineErr *EngineError
	require.True(t, errors.As(wrappedErr, &engineErr))
	require.Equal(t, ErrorTypeGenerationFailed, engineErr.Type)
}

func TestErrorClassification(t *testing.T) {
	// Test timeout classification
	classified := ClassifyError(context.DeadlineExceeded)
	require.Equal(t, ErrorTypeTimeout, classified.Type)
	require.True(t, errors.Is(classified, context.DeadlineExceeded))

	// Test default classification
	genericErr := errors.New("something went wrong")
	classified = ClassifyError(genericErr)
	require.Equal(t, ErrorTypeGenerationFailed, classified.Type)
	require.True(t, errors.Is(classified, genericErr))

	// Test EngineError passthrough
	original := NewEngineError(ErrorTypeNotFound, "session missing")
	require.Equal(t, original, ClassifyError(original))
}

func TestErrorPredicates(t *testing.T) {
	require.True(t, IsNotFound(NewEngineError(ErrorTypeNotFound, "missing")))
	require.False(t, IsNotFound(NewEngineError(ErrorTypeConflict, "busy")))
	require.False(t, IsNotFound(nil))

	require.True(t, IsConflict(NewEngineError(ErrorTypeConflict, "busy")))
	require.False(t, IsConflict(errors.New("other")))

	// Timeouts count as generation failures
	require.True(t, IsGenerationFailure(context.DeadlineExceeded))
	require.True(t, IsGenerationFailure(NewEngineError(ErrorTypeGenerationFailed, "failed")))
	require.False(t, IsGenerationFailure(NewEngineError(ErrorTypeConflict, "busy")))
}
