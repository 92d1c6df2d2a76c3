package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_SentinelMatching(t *testing.T) {
	err := ErrValidation.WithMessage("payload missing field %q", "id")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.True(t, IsValidation(err))
	assert.False(t, IsCircuitOpen(err))
}

func TestError_WrappedSentinelMatching(t *testing.T) {
	inner := ErrTimeout.WithDetail("handler_id", "h1")
	wrapped := fmt.Errorf("invoking handler: %w", inner)
	assert.True(t, IsTimeout(wrapped))
	assert.True(t, errors.Is(wrapped, ErrTimeout))
}

func TestError_RetryableClassification(t *testing.T) {
	assert.False(t, ErrValidation.IsRetryable())
	assert.False(t, ErrCircuitOpen.IsRetryable())
	assert.False(t, ErrCancelled.IsRetryable())
	assert.False(t, ErrConfiguration.IsRetryable())
	assert.True(t, ErrProcessing.IsRetryable())
	assert.True(t, ErrTimeout.IsRetryable())
}

func TestError_ExplicitMarkingWins(t *testing.T) {
	err := ErrProcessing.AsFatal()
	assert.False(t, err.IsRetryable())
	assert.True(t, err.IsFatal())

	// Marking produces a copy; the sentinel is untouched.
	assert.True(t, ErrProcessing.IsRetryable())
}

func TestError_CauseClassification(t *testing.T) {
	cause := ErrValidation.WithMessage("bad payload")
	err := ErrProcessing.WithCause(cause)
	assert.False(t, err.IsRetryable())

	require.ErrorIs(t, err, ErrValidation)
}

func TestIsRetryable_UnknownErrorsDefaultRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("downstream hiccup")))
	assert.False(t, IsRetryable(nil))
}

func TestError_WithDetailDoesNotMutateOriginal(t *testing.T) {
	base := ErrProcessing.WithDetail("a", 1)
	derived := base.WithDetail("b", 2)

	assert.Len(t, base.Details, 1)
	assert.Len(t, derived.Details, 2)
}
