package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatchingByCode(t *testing.T) {
	err := Validation("amount must be positive")
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrInsufficientBalance)

	// Matching survives wrapping.
	wrapped := fmt.Errorf("posting ledger entry: %w", err)
	assert.ErrorIs(t, wrapped, ErrValidation)
}

func TestTransientWrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transient(cause)

	assert.ErrorIs(t, err, ErrTransientExternal)
	assert.ErrorIs(t, err, cause)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeMissingReference, CodeOf(MissingReference("subscription", "sub_1")))
	assert.Equal(t, CodeValidation, CodeOf(fmt.Errorf("outer: %w", Validation("bad"))))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestMessageFormat(t *testing.T) {
	err := MissingReference("plan", "enterprise")
	assert.Contains(t, err.Error(), "missing_reference")
	assert.Contains(t, err.Error(), "plan enterprise not found")
}
