package repository

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/kyungseok/payment-risk-go/common/errors"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "unique violation", err: &pq.Error{Code: "23505"}, expected: true},
		{name: "wrapped unique violation", err: fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), expected: true},
		{name: "foreign key violation", err: &pq.Error{Code: "23503"}},
		{name: "plain error", err: stderrors.New("connection refused")},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isUniqueViolation(tt.err))
		})
	}
}

func TestIsCheckViolation(t *testing.T) {
	assert.True(t, isCheckViolation(&pq.Error{Code: "23514"}))
	assert.True(t, isCheckViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23514"})))
	assert.False(t, isCheckViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isCheckViolation(stderrors.New("connection refused")))
}

func TestWrapCommitError(t *testing.T) {
	assert.True(t, errors.IsConflict(wrapCommitError(&pq.Error{Code: "23505"})))

	err := wrapCommitError(stderrors.New("connection reset"))
	assert.True(t, errors.IsRetryable(err))
	assert.False(t, errors.IsConflict(err))
}

func TestNullString(t *testing.T) {
	assert.False(t, nullString("").Valid)
	assert.True(t, nullString("txn-1").Valid)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir(migrationsDir)
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
}
