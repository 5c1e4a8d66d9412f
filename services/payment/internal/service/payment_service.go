package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kyungseok/payment-risk-go/common/errors"
	"github.com/kyungseok/payment-risk-go/common/events"
	"github.com/kyungseok/payment-risk-go/common/idempotency"
	"github.com/kyungseok/payment-risk-go/common/retry"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/domain"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/repository"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/risk"
)

// ProcessPaymentCommand 결제 처리 요청
type ProcessPaymentCommand struct {
	IdempotencyKey string
	PayerID        string
	PayeeID        string
	Amount         decimal.Decimal
	Currency       string
	Description    string
}

// PaymentService 결제 서비스 인터페이스
type PaymentService interface {
	// ProcessPayment 멱등성 키당 한 번만 판정/저장. 이미 처리된 키는 저장된 결제를 그대로 반환
	ProcessPayment(ctx context.Context, cmd ProcessPaymentCommand) (*domain.Payment, error)
	GetPayment(ctx context.Context, transactionID string) (*domain.Payment, error)
}

// Option 서비스 옵션
type Option func(*paymentService)

// WithLocker 처리 중 잠금 사용 (중복 평가 감소용, 정합성은 저장소 유니크 제약이 보장)
func WithLocker(locker idempotency.Locker, ttl time.Duration) Option {
	return func(s *paymentService) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

// WithMetrics 지표 기록기 지정
func WithMetrics(metrics Metrics) Option {
	return func(s *paymentService) {
		s.metrics = metrics
	}
}

// WithWaitConfig 잠금을 얻지 못했을 때 선행 요청 결과를 기다리는 설정
func WithWaitConfig(config retry.Config) Option {
	return func(s *paymentService) {
		s.waitConfig = config
	}
}

type paymentService struct {
	store      repository.Store
	chain      risk.Policy
	builder    *risk.ContextBuilder
	logger     *zap.Logger
	metrics    Metrics
	locker     idempotency.Locker
	lockTTL    time.Duration
	waitConfig retry.Config
}

// NewPaymentService 결제 서비스 생성
func NewPaymentService(
	store repository.Store,
	chain risk.Policy,
	builder *risk.ContextBuilder,
	logger *zap.Logger,
	opts ...Option,
) PaymentService {
	s := &paymentService{
		store:   store,
		chain:   chain,
		builder: builder,
		logger:  logger,
		metrics: NoopMetrics{},
		lockTTL: 30 * time.Second,
		waitConfig: retry.Config{
			MaxAttempts:        8,
			InitialInterval:    50 * time.Millisecond,
			MaxInterval:        time.Second,
			BackoffCoefficient: 2.0,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.waitConfig.ShouldRetry = errors.IsNotFound
	return s
}

// ProcessPayment 결제 처리
func (s *paymentService) ProcessPayment(ctx context.Context, cmd ProcessPaymentCommand) (*domain.Payment, error) {
	start := time.Now()
	key := strings.TrimSpace(cmd.IdempotencyKey)
	if key == "" {
		return nil, errors.New(errors.ErrCodeValidation, "idempotency key is required")
	}
	cmd.IdempotencyKey = key

	if s.locker != nil {
		token, acquired, err := s.locker.Reserve(ctx, key, s.lockTTL)
		switch {
		case err != nil:
			s.logger.Warn("idempotency lock unavailable, relying on storage constraint",
				zap.String("idempotencyKey", key),
				zap.Error(err))
		case acquired:
			defer s.release(ctx, key, token)
		default:
			existing, err := s.awaitExisting(ctx, key)
			if err == nil {
				s.logger.Info("payment replayed after waiting for in-flight request",
					zap.String("idempotencyKey", key),
					zap.Int64("paymentId", existing.ID))
				s.metrics.PaymentProcessed(existing.Status, OutcomeReplayed, time.Since(start))
				return existing, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logger.Warn("in-flight request did not finish, processing anyway",
				zap.String("idempotencyKey", key),
				zap.Error(err))
		}
	}

	payment, outcome, err := s.decide(ctx, cmd)
	if errors.IsConflict(err) {
		s.logger.Warn("concurrent duplicate detected, returning stored payment",
			zap.String("idempotencyKey", key),
			zap.Error(err))

		existing, findErr := s.findByIdempotencyKey(ctx, key)
		if findErr != nil {
			return nil, findErr
		}
		s.metrics.PaymentProcessed(existing.Status, OutcomeConflictReplayed, time.Since(start))
		return existing, nil
	}
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentProcessed(payment.Status, outcome, time.Since(start))
	return payment, nil
}

// decide 하나의 트랜잭션에서 조회 -> 판정 -> 저장 -> outbox 기록
func (s *paymentService) decide(ctx context.Context, cmd ProcessPaymentCommand) (*domain.Payment, Outcome, error) {
	var (
		result   *domain.Payment
		outcome  Outcome
		decision domain.Decision
	)

	err := s.store.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		existing, err := tx.Payments().FindByIdempotencyKey(ctx, cmd.IdempotencyKey)
		if err == nil {
			s.logger.Info("payment already processed",
				zap.String("idempotencyKey", cmd.IdempotencyKey),
				zap.Int64("paymentId", existing.ID),
				zap.String("status", string(existing.Status)))
			result, outcome = existing, OutcomeReplayed
			return nil
		}
		if !errors.IsNotFound(err) {
			return err
		}

		pending, err := domain.NewPendingPayment(
			cmd.IdempotencyKey,
			cmd.PayerID,
			cmd.PayeeID,
			cmd.Amount,
			cmd.Currency,
			cmd.Description,
		)
		if err != nil {
			return err
		}

		rc, err := s.builder.Build(ctx, tx.Payments(), pending)
		if err != nil {
			return err
		}

		decision = s.chain.Evaluate(rc)
		decided, err := applyDecision(pending, decision)
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		saved, err := tx.Payments().Save(ctx, decided)
		if err != nil {
			return err
		}

		if err := s.appendOutbox(ctx, tx, saved, decision); err != nil {
			return err
		}

		result, outcome = saved, OutcomeDecided
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	if outcome == OutcomeDecided {
		s.logDecision(result, decision)
	}

	return result, outcome, nil
}

// applyDecision 판정 결과를 결제 상태 전이로 적용
func applyDecision(payment *domain.Payment, decision domain.Decision) (*domain.Payment, error) {
	switch d := decision.(type) {
	case domain.Approved:
		return payment.Approve(d.TransactionID)
	case domain.Declined:
		return payment.Decline(d.Reason)
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownError, "unsupported decision type %T", decision)
	}
}

func (s *paymentService) appendOutbox(ctx context.Context, tx repository.Tx, payment *domain.Payment, decision domain.Decision) error {
	base := events.BaseEvent{
		EventID:       uuid.New().String(),
		SchemaVersion: 1,
		OccurredAt:    payment.UpdatedAt,
		CorrelationID: payment.IdempotencyKey,
	}

	var evt interface{}
	switch d := decision.(type) {
	case domain.Approved:
		base.EventType = events.EventPaymentApproved
		evt = events.PaymentApprovedEvent{
			BaseEvent:      base,
			PaymentID:      payment.ID,
			IdempotencyKey: payment.IdempotencyKey,
			TransactionID:  payment.TransactionID,
			PayerID:        payment.PayerID,
			PayeeID:        payment.PayeeID,
			Amount:         payment.Amount,
			Currency:       payment.Currency,
		}
	case domain.Declined:
		base.EventType = events.EventPaymentDeclined
		evt = events.PaymentDeclinedEvent{
			BaseEvent:      base,
			PaymentID:      payment.ID,
			IdempotencyKey: payment.IdempotencyKey,
			PayerID:        payment.PayerID,
			PayeeID:        payment.PayeeID,
			Amount:         payment.Amount,
			Currency:       payment.Currency,
			Reason:         d.Reason,
			RiskScore:      d.RiskScore,
			Policy:         d.Policy,
		}
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(errors.ErrCodeSerializationError, "failed to marshal event", err)
	}

	return tx.Outbox().Insert(ctx, &repository.OutboxEvent{
		AggregateType: "payment",
		AggregateID:   payment.ID,
		EventType:     string(base.EventType),
		EventKey:      payment.IdempotencyKey,
		Payload:       payload,
		Status:        repository.OutboxStatusPending,
		CreatedAt:     payment.UpdatedAt,
	})
}

// GetPayment 거래 ID로 결제 조회
func (s *paymentService) GetPayment(ctx context.Context, transactionID string) (*domain.Payment, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "transaction id is required")
	}
	return s.store.Payments().FindByTransactionID(ctx, transactionID)
}

func (s *paymentService) findByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.store.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := tx.Payments().FindByIdempotencyKey(ctx, key)
		if err != nil {
			return err
		}
		payment = p
		return nil
	})
	return payment, err
}

// awaitExisting 잠금을 가진 요청이 결과를 저장할 때까지 대기
func (s *paymentService) awaitExisting(ctx context.Context, key string) (*domain.Payment, error) {
	return retry.DoWithResult(ctx, s.waitConfig, s.logger, func() (*domain.Payment, error) {
		return s.store.Payments().FindByIdempotencyKey(ctx, key)
	})
}

func (s *paymentService) release(ctx context.Context, key, token string) {
	if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
		s.logger.Warn("failed to release idempotency lock",
			zap.String("idempotencyKey", key),
			zap.Error(err))
	}
}

func (s *paymentService) logDecision(payment *domain.Payment, decision domain.Decision) {
	switch d := decision.(type) {
	case domain.Approved:
		s.logger.Info("payment approved",
			zap.Int64("paymentId", payment.ID),
			zap.String("idempotencyKey", payment.IdempotencyKey),
			zap.String("transactionId", payment.TransactionID),
			zap.String("amount", payment.Amount.String()))
	case domain.Declined:
		s.metrics.PaymentDeclined(d.Policy)
		s.logger.Warn("payment declined",
			zap.Int64("paymentId", payment.ID),
			zap.String("idempotencyKey", payment.IdempotencyKey),
			zap.String("reason", d.Reason),
			zap.Int("riskScore", d.RiskScore),
			zap.String("policy", d.Policy),
			zap.String("amount", payment.Amount.String()))
	}
}
