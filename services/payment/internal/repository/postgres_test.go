package repository

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyungseok/payment-risk-go/common/errors"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/domain"
)

// openPostgres DB_DSN 이 없으면 건너뜀. 테스트마다 별도 스키마에 마이그레이션 적용
func openPostgres(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		t.Skip("DB_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	// search_path 는 커넥션 단위라서 하나만 사용
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	schema := "payment_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = db.ExecContext(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		_ = db.Close()
	})

	_, err = db.ExecContext(ctx, "SET search_path TO "+schema)
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, db, "up"))

	return NewPostgresStore(db)
}

func declinedPayment(t *testing.T, key, amount string) *domain.Payment {
	t.Helper()
	p, err := domain.NewPendingPayment(key, "p1", "q1", decimal.RequireFromString(amount), "USD", "")
	require.NoError(t, err)
	declined, err := p.Decline("Amount below minimum")
	require.NoError(t, err)
	return declined
}

func TestPostgresStore_DuplicateIdempotencyKeyConflicts(t *testing.T) {
	store := openPostgres(t)
	ctx := context.Background()

	_, err := store.Payments().Save(ctx, pending(t, "k1"))
	require.NoError(t, err)

	err = store.Do(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.Payments().Save(ctx, pending(t, "k1"))
		return err
	})
	assert.True(t, errors.IsConflict(err))
	assert.False(t, errors.IsRetryable(err))
}

func TestPostgresStore_SubCentAmountStoredExactly(t *testing.T) {
	store := openPostgres(t)
	ctx := context.Background()

	for _, amount := range []string{"0.001", "0.005", "100000.01"} {
		t.Run(amount, func(t *testing.T) {
			key := "k-" + amount
			err := store.Do(ctx, func(ctx context.Context, tx Tx) error {
				_, err := tx.Payments().Save(ctx, declinedPayment(t, key, amount))
				return err
			})
			require.NoError(t, err)

			got, err := store.Payments().FindByIdempotencyKey(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, domain.PaymentStatusDeclined, got.Status)
			assert.True(t, got.Amount.Equal(decimal.RequireFromString(amount)), "stored %s", got.Amount)
		})
	}
}

func TestPostgresStore_CheckViolationIsValidation(t *testing.T) {
	store := openPostgres(t)

	p := pending(t, "k1")
	p.Amount = decimal.Zero

	_, err := store.Payments().Save(context.Background(), p)
	assert.True(t, errors.IsValidation(err))
	assert.False(t, errors.IsRetryable(err))
}

func TestPostgresStore_RollbackOnError(t *testing.T) {
	store := openPostgres(t)
	ctx := context.Background()

	err := store.Do(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Payments().Save(ctx, pending(t, "k1")); err != nil {
			return err
		}
		return errors.New(errors.ErrCodeValidation, "abort")
	})
	require.Error(t, err)

	_, err = store.Payments().FindByIdempotencyKey(ctx, "k1")
	assert.True(t, errors.IsNotFound(err))
}

func TestPostgresStore_Outbox(t *testing.T) {
	store := openPostgres(t)
	ctx := context.Background()

	event := &OutboxEvent{
		AggregateType: "payment",
		AggregateID:   1,
		EventType:     "payment.declined.v1",
		EventKey:      "k1",
		Payload:       []byte(`{"reason":"x"}`),
	}
	require.NoError(t, store.Outbox().Insert(ctx, event))

	events, err := store.Outbox().FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "k1", events[0].EventKey)
	assert.JSONEq(t, `{"reason":"x"}`, string(events[0].Payload))

	require.NoError(t, store.Outbox().MarkSent(ctx, event.ID))
	events, err = store.Outbox().FindPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	assert.True(t, errors.IsNotFound(store.Outbox().MarkSent(ctx, event.ID+100)))
}
