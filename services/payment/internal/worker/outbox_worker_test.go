package worker

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kyungseok/payment-risk-go/common/messaging"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/repository"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	args := m.Called(ctx, topic, key, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

func seedOutbox(t *testing.T, store *repository.MemoryStore, keys ...string) {
	t.Helper()
	for _, key := range keys {
		require.NoError(t, store.Outbox().Insert(context.Background(), &repository.OutboxEvent{
			AggregateType: "payment",
			EventType:     "payment.approved.v1",
			EventKey:      key,
			Payload:       []byte(`{"idempotencyKey":"` + key + `"}`),
		}))
	}
}

func TestOutboxWorker_PublishesAndMarksSent(t *testing.T) {
	store := repository.NewMemoryStore()
	seedOutbox(t, store, "k1", "k2")

	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, "payment.approved.v1", mock.Anything, mock.Anything).Return(nil)

	w := NewOutboxWorker(store.Outbox(), publisher, zap.NewNop(), time.Second)
	sent, err := w.ProcessOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Zero(t, store.PendingOutbox())
	publisher.AssertCalled(t, "Publish", mock.Anything, "payment.approved.v1", "k1", mock.Anything)
	publisher.AssertCalled(t, "Publish", mock.Anything, "payment.approved.v1", "k2", mock.Anything)
}

func TestOutboxWorker_FailedPublishStaysPending(t *testing.T) {
	store := repository.NewMemoryStore()
	seedOutbox(t, store, "k1", "k2")

	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything, "k1", mock.Anything).Return(stderrors.New("broker down"))
	publisher.On("Publish", mock.Anything, mock.Anything, "k2", mock.Anything).Return(nil)

	w := NewOutboxWorker(store.Outbox(), publisher, zap.NewNop(), time.Second)
	sent, err := w.ProcessOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, store.PendingOutbox())
}

func TestOutboxWorker_WithSaramaProducer(t *testing.T) {
	store := repository.NewMemoryStore()
	seedOutbox(t, store, "k1")

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"idempotencyKey":"k1"}` {
			return stderrors.New("unexpected payload: " + string(val))
		}
		return nil
	})

	publisher := messaging.NewKafkaPublisherWithProducer(producer, zap.NewNop())
	defer publisher.Close()

	sent, err := NewOutboxWorker(store.Outbox(), publisher, zap.NewNop(), time.Second).ProcessOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Zero(t, store.PendingOutbox())
}

func TestOutboxWorker_SaramaFailureKeepsEvent(t *testing.T) {
	store := repository.NewMemoryStore()
	seedOutbox(t, store, "k1")

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := messaging.NewKafkaPublisherWithProducer(producer, zap.NewNop())
	defer publisher.Close()

	sent, err := NewOutboxWorker(store.Outbox(), publisher, zap.NewNop(), time.Second).ProcessOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Equal(t, 1, store.PendingOutbox())
}

func TestOutboxWorker_StartStopsOnCancel(t *testing.T) {
	store := repository.NewMemoryStore()
	seedOutbox(t, store, "k1")

	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewOutboxWorker(store.Outbox(), publisher, zap.NewNop(), 10*time.Millisecond).Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.PendingOutbox() == 0 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
