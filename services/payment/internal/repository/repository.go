package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kyungseok/payment-risk-go/common/errors"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/domain"
)

// ErrNotFound 조회 결과 없음
var ErrNotFound = errors.New(errors.ErrCodeNotFound, "payment not found")

// PaymentRepository 결제 레포지토리 인터페이스
type PaymentRepository interface {
	// Save ID 가 없으면 삽입, 있으면 상태 갱신. 유니크 제약 위반 시 CONFLICT 에러
	Save(ctx context.Context, payment *domain.Payment) (*domain.Payment, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error)
	FindByPayerCreatedAfter(ctx context.Context, payerID string, after time.Time) ([]*domain.Payment, error)
	FindByPayerAndPayeeCreatedAfter(ctx context.Context, payerID, payeeID string, after time.Time) ([]*domain.Payment, error)
}

// OutboxStatus Outbox 이벤트 상태
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "PENDING"
	OutboxStatusSent    OutboxStatus = "SENT"
)

// OutboxEvent Outbox 이벤트
type OutboxEvent struct {
	ID            int64
	AggregateType string
	AggregateID   int64
	EventType     string
	// EventKey Kafka 파티션 키 (멱등성 키)
	EventKey  string
	Payload   json.RawMessage
	Status    OutboxStatus
	CreatedAt time.Time
	SentAt    *time.Time
}

// OutboxRepository Outbox 레포지토리 인터페이스
type OutboxRepository interface {
	Insert(ctx context.Context, event *OutboxEvent) error
	FindPending(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkSent(ctx context.Context, id int64) error
}

// Tx 하나의 트랜잭션에 묶인 레포지토리 묶음
type Tx interface {
	Payments() PaymentRepository
	Outbox() OutboxRepository
}

// UnitOfWork fn 이 에러 없이 끝나면 커밋, 아니면 전부 롤백
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Store 트랜잭션 밖 조회(Tx)와 UnitOfWork 를 함께 제공
type Store interface {
	Tx
	UnitOfWork
}

func conflictError(cause error) error {
	return errors.Wrap(errors.ErrCodeConflict, "payment already exists", cause)
}
