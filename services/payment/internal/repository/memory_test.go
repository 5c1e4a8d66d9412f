package repository

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyungseok/payment-risk-go/common/errors"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/domain"
)

func pending(t *testing.T, key string) *domain.Payment {
	t.Helper()
	p, err := domain.NewPendingPayment(key, "p1", "q1", decimal.NewFromInt(100), "USD", "")
	require.NoError(t, err)
	return p
}

func TestMemoryStore_SaveAssignsIdentity(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	saved, err := store.Payments().Save(ctx, pending(t, "k1"))
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	found, err := store.Payments().FindByIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, found.ID)
	assert.Equal(t, 1, store.Writes())
}

func TestMemoryStore_FindMissingReturnsNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Payments().FindByIdempotencyKey(context.Background(), "missing")
	assert.True(t, errors.IsNotFound(err))

	_, err = store.Payments().FindByTransactionID(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DuplicateIdempotencyKeyConflicts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Payments().Save(ctx, pending(t, "k1"))
	require.NoError(t, err)

	_, err = store.Payments().Save(ctx, pending(t, "k1"))
	assert.True(t, errors.IsConflict(err))
	assert.Equal(t, 1, store.Writes())
}

func TestMemoryStore_DuplicateTransactionIDConflicts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a, err := pending(t, "k1").Approve("txn-1")
	require.NoError(t, err)
	b, err := pending(t, "k2").Approve("txn-1")
	require.NoError(t, err)

	_, err = store.Payments().Save(ctx, a)
	require.NoError(t, err)
	_, err = store.Payments().Save(ctx, b)
	assert.True(t, errors.IsConflict(err))
}

func TestMemoryStore_RollbackOnError(t *testing.T) {
	store := NewMemoryStore()
	boom := stderrors.New("boom")

	err := store.Do(context.Background(), func(ctx context.Context, tx Tx) error {
		if _, err := tx.Payments().Save(ctx, pending(t, "k1")); err != nil {
			return err
		}
		require.NoError(t, tx.Outbox().Insert(ctx, &OutboxEvent{EventType: "x", Payload: []byte(`{}`)}))

		// 같은 트랜잭션 안에서는 staged 결제가 보인다
		_, err := tx.Payments().FindByIdempotencyKey(ctx, "k1")
		require.NoError(t, err)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Zero(t, store.Writes())
	assert.Zero(t, store.PendingOutbox())

	_, err = store.Payments().FindByIdempotencyKey(context.Background(), "k1")
	assert.True(t, errors.IsNotFound(err))
}

func TestMemoryStore_CanceledContextDoesNotCommit(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	err := store.Do(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.Payments().Save(ctx, pending(t, "k1"))
		cancel()
		return err
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.Writes())
}

func TestMemoryStore_ConcurrentCommitsRecheckUniqueness(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// 두 트랜잭션 모두 staging 까지는 성공하고 커밋에서 하나만 남는다
	first := &memoryTx{store: store}
	second := &memoryTx{store: store}

	_, err := first.Payments().Save(ctx, pending(t, "k1"))
	require.NoError(t, err)
	_, err = second.Payments().Save(ctx, pending(t, "k1"))
	require.NoError(t, err)

	require.NoError(t, first.commit())
	err = second.commit()

	assert.True(t, errors.IsConflict(err))
	assert.Equal(t, 1, store.Writes())
}

func TestMemoryStore_HistoryQueries(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	seed := []struct {
		key   string
		payee string
		age   time.Duration
	}{
		{key: "old", payee: "q1", age: 40 * 24 * time.Hour},
		{key: "month", payee: "q2", age: 10 * 24 * time.Hour},
		{key: "week", payee: "q1", age: 2 * 24 * time.Hour},
		{key: "hour", payee: "q1", age: time.Hour},
	}
	for _, s := range seed {
		p, err := domain.NewPendingPayment(s.key, "p1", s.payee, decimal.NewFromInt(10), "USD", "")
		require.NoError(t, err)
		p.CreatedAt = now.Add(-s.age)
		p.UpdatedAt = p.CreatedAt
		_, err = store.Payments().Save(ctx, p)
		require.NoError(t, err)
	}

	recent, err := store.Payments().FindByPayerCreatedAfter(ctx, "p1", now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "month", recent[0].IdempotencyKey)

	toPayee, err := store.Payments().FindByPayerAndPayeeCreatedAfter(ctx, "p1", "q1", now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, toPayee, 2)
	assert.Equal(t, "hour", toPayee[1].IdempotencyKey)

	none, err := store.Payments().FindByPayerCreatedAfter(ctx, "someone-else", now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_Outbox(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Outbox().Insert(ctx, &OutboxEvent{EventType: "payment.approved.v1", Payload: []byte(`{}`)}))
	}

	events, err := store.Outbox().FindPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, OutboxStatusPending, events[0].Status)

	require.NoError(t, store.Outbox().MarkSent(ctx, events[0].ID))
	assert.Equal(t, 2, store.PendingOutbox())

	err = store.Outbox().MarkSent(ctx, 999)
	assert.True(t, errors.IsNotFound(err))
}
