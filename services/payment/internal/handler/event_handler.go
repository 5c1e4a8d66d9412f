package handler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/kyungseok/payment-risk-go/common/errors"
	"github.com/kyungseok/payment-risk-go/common/events"
	"github.com/kyungseok/payment-risk-go/common/messaging"
	"github.com/kyungseok/payment-risk-go/common/retry"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/domain"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/service"
)

// EventHandler 이벤트 핸들러 (payment.requested.v1 소비)
type EventHandler struct {
	paymentService service.PaymentService
	retryConfig    retry.Config
	logger         *zap.Logger
}

// NewEventHandler 이벤트 핸들러 생성
func NewEventHandler(paymentService service.PaymentService, retryConfig retry.Config, logger *zap.Logger) *EventHandler {
	retryConfig.ShouldRetry = errors.IsRetryable
	return &EventHandler{
		paymentService: paymentService,
		retryConfig:    retryConfig,
		logger:         logger,
	}
}

// HandleMessage 메시지 처리
func (h *EventHandler) HandleMessage(ctx context.Context, msg *messaging.Message) error {
	h.logger.Debug("received message",
		zap.String("topic", msg.Topic),
		zap.Int64("offset", msg.Offset))

	// 이벤트 타입에 따라 분기
	switch events.EventType(msg.Topic) {
	case events.EventPaymentRequested:
		return h.handlePaymentRequested(ctx, msg)
	default:
		h.logger.Warn("unknown event type", zap.String("topic", msg.Topic))
		return nil
	}
}

func (h *EventHandler) handlePaymentRequested(ctx context.Context, msg *messaging.Message) error {
	var evt events.PaymentRequestedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		// 재전송해도 결과가 같으므로 버린다
		h.logger.Error("malformed payment request dropped",
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(errors.Wrap(errors.ErrCodeSerializationError, "failed to unmarshal payment request", err)))
		return nil
	}

	cmd := service.ProcessPaymentCommand{
		IdempotencyKey: evt.IdempotencyKey,
		PayerID:        evt.PayerID,
		PayeeID:        evt.PayeeID,
		Amount:         evt.Amount,
		Currency:       evt.Currency,
		Description:    evt.Description,
	}
	if cmd.IdempotencyKey == "" {
		cmd.IdempotencyKey = evt.CorrelationID
	}

	// 멱등성 키 덕분에 전체 호출을 재시도해도 안전
	payment, err := retry.DoWithResult(ctx, h.retryConfig, h.logger, func() (*domain.Payment, error) {
		return h.paymentService.ProcessPayment(ctx, cmd)
	})
	if err != nil {
		return err
	}

	h.logger.Info("payment request processed",
		zap.String("idempotencyKey", cmd.IdempotencyKey),
		zap.String("status", string(payment.Status)),
		zap.String("transactionId", payment.TransactionID))
	return nil
}
