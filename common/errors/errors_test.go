package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	err := New(ErrCodeValidation, "amount must be positive")
	assert.Equal(t, "[VALIDATION_ERROR] amount must be positive", err.Error())

	cause := stderrors.New("connection refused")
	wrapped := Wrap(ErrCodeDatabaseError, "failed to save payment", cause)
	assert.Equal(t, "[DATABASE_ERROR] failed to save payment: connection refused", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		validation bool
		conflict   bool
		retryable  bool
		business   bool
	}{
		{name: "validation", err: New(ErrCodeValidation, "bad"), validation: true, business: true},
		{name: "conflict wrapped with %w", err: fmt.Errorf("save: %w", New(ErrCodeConflict, "dup")), conflict: true, business: true},
		{name: "database", err: Wrap(ErrCodeDatabaseError, "down", stderrors.New("x")), retryable: true},
		{name: "timeout", err: New(ErrCodeTimeoutError, "slow"), retryable: true},
		{name: "plain error", err: stderrors.New("plain")},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.validation, IsValidation(tt.err))
			assert.Equal(t, tt.conflict, IsConflict(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
			assert.Equal(t, tt.business, IsBusinessError(tt.err))
		})
	}
}

func TestCodeOf_NestedDomainError(t *testing.T) {
	inner := New(ErrCodeNotFound, "payment not found")
	outer := fmt.Errorf("lookup: %w", inner)

	code, ok := CodeOf(outer)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeNotFound, code)
	assert.True(t, IsNotFound(outer))
	assert.False(t, IsInvalidStateTransition(outer))
}
