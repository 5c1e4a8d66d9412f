package risk

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kyungseok/payment-risk-go/services/payment/internal/domain"
)

const (
	ApprovedHistoryWindow = 30 * 24 * time.Hour
	SamePayeeWindow       = 7 * 24 * time.Hour
)

// HistoryReader 리스크 컨텍스트 계산에 필요한 결제 이력 조회
type HistoryReader interface {
	FindByPayerCreatedAfter(ctx context.Context, payerID string, after time.Time) ([]*domain.Payment, error)
	FindByPayerAndPayeeCreatedAfter(ctx context.Context, payerID, payeeID string, after time.Time) ([]*domain.Payment, error)
}

// ContextBuilder 결제 이력으로 RiskContext 생성
//
// 이력은 요청마다 바뀌므로 결과를 캐시하지 않는다.
type ContextBuilder struct {
	now    func() time.Time
	logger *zap.Logger
}

// NewContextBuilder 컨텍스트 빌더 생성
func NewContextBuilder(logger *zap.Logger, now func() time.Time) *ContextBuilder {
	if now == nil {
		now = time.Now
	}
	return &ContextBuilder{
		now:    now,
		logger: logger,
	}
}

// Build 결제 이력 조회 후 RiskContext 계산
func (b *ContextBuilder) Build(ctx context.Context, history HistoryReader, payment *domain.Payment) (RiskContext, error) {
	now := b.now().UTC()

	recent, err := history.FindByPayerCreatedAfter(ctx, payment.PayerID, now.Add(-ApprovedHistoryWindow))
	if err != nil {
		return RiskContext{}, err
	}

	if err := ctx.Err(); err != nil {
		return RiskContext{}, err
	}

	toPayee, err := history.FindByPayerAndPayeeCreatedAfter(ctx, payment.PayerID, payment.PayeeID, now.Add(-SamePayeeWindow))
	if err != nil {
		return RiskContext{}, err
	}

	rc := Aggregate(payment, recent, toPayee)
	rc.EvaluatedAt = now

	b.logger.Debug("risk context built",
		zap.String("payerId", payment.PayerID),
		zap.Int("approvedCount30d", rc.ApprovedCountLast30Days),
		zap.String("approvedTotal30d", rc.ApprovedTotalLast30Days.String()),
		zap.Int("toPayeeCount7d", rc.PaymentsToPayeeLast7Days),
		zap.Bool("firstTransaction", rc.FirstTransaction))

	return rc, nil
}

// Aggregate 조회된 이력으로 RiskContext 집계 (EvaluatedAt 제외)
func Aggregate(payment *domain.Payment, recent, toPayee []*domain.Payment) RiskContext {
	approvedCount := 0
	approvedTotal := decimal.Zero
	for _, p := range recent {
		if p.Status != domain.PaymentStatusApproved {
			continue
		}
		approvedCount++
		approvedTotal = approvedTotal.Add(p.Amount)
	}

	// 빈도 제한은 결과와 무관하게 모든 상태를 센다
	var last time.Time
	for _, p := range toPayee {
		if p.CreatedAt.After(last) {
			last = p.CreatedAt
		}
	}

	return RiskContext{
		PayerID:                  payment.PayerID,
		PayeeID:                  payment.PayeeID,
		Amount:                   payment.Amount,
		Currency:                 payment.Currency,
		ApprovedCountLast30Days:  approvedCount,
		ApprovedTotalLast30Days:  approvedTotal,
		PaymentsToPayeeLast7Days: len(toPayee),
		LastPaymentToPayee:       last,
		FirstTransaction:         len(recent) == 0,
	}
}
