package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kyungseok/payment-risk-go/services/payment/internal/domain"
)

// Risk scores
const (
	ScoreAboveMaximum      = 100
	ScoreBelowMinimum      = 50
	ScoreAboveHistoryLimit = 70
	ScoreTooManyToPayee    = 90
	ScoreTooSoonToPayee    = 60
)

// AmountLimitPolicy 절대 금액 상/하한
type AmountLimitPolicy struct {
	Max decimal.Decimal
	Min decimal.Decimal
}

// NewAmountLimitPolicy 기본 한도 (0.01 ~ 100000)
func NewAmountLimitPolicy() *AmountLimitPolicy {
	return &AmountLimitPolicy{
		Max: decimal.NewFromInt(100000),
		Min: decimal.RequireFromString("0.01"),
	}
}

func (p *AmountLimitPolicy) Name() string { return "AmountLimitPolicy" }

func (p *AmountLimitPolicy) Evaluate(rc RiskContext) domain.Decision {
	if rc.Amount.GreaterThan(p.Max) {
		return domain.Decline(
			fmt.Sprintf("Amount %s exceeds maximum allowed %s", rc.Amount.StringFixed(2), p.Max.StringFixed(2)),
			ScoreAboveMaximum,
		)
	}

	if rc.Amount.LessThan(p.Min) {
		return domain.Decline(
			fmt.Sprintf("Amount %s below minimum %s", rc.Amount.StringFixed(2), p.Min.StringFixed(2)),
			ScoreBelowMinimum,
		)
	}

	return domain.Approve("Amount within acceptable range")
}

// HistoryTier 이력 기반 한도 구간
type HistoryTier struct {
	MinApprovedCount int
	// MinApprovedTotal 보다 합계가 커야 함 (zero 이면 조건 없음)
	MinApprovedTotal decimal.Decimal
	Limit            decimal.Decimal
}

// HistoryBasedPolicy 최근 30일 승인 이력에 따른 한도
type HistoryBasedPolicy struct {
	NewUserLimit decimal.Decimal
	// Tiers 높은 구간부터 순서대로 검사
	Tiers []HistoryTier
}

// NewHistoryBasedPolicy 기본 구간: VIP 50000, TRUSTED 10000, BASIC 5000, NEW 1000
func NewHistoryBasedPolicy() *HistoryBasedPolicy {
	return &HistoryBasedPolicy{
		NewUserLimit: decimal.NewFromInt(1000),
		Tiers: []HistoryTier{
			{MinApprovedCount: 20, MinApprovedTotal: decimal.NewFromInt(20000), Limit: decimal.NewFromInt(50000)},
			{MinApprovedCount: 10, Limit: decimal.NewFromInt(10000)},
			{MinApprovedCount: 3, Limit: decimal.NewFromInt(5000)},
		},
	}
}

func (p *HistoryBasedPolicy) Name() string { return "HistoryBasedPolicy" }

func (p *HistoryBasedPolicy) Evaluate(rc RiskContext) domain.Decision {
	limit := p.Limit(rc)

	if rc.Amount.GreaterThan(limit) {
		return domain.Decline(
			fmt.Sprintf("Amount %s exceeds history-based limit %s", rc.Amount.StringFixed(2), limit.StringFixed(2)),
			ScoreAboveHistoryLimit,
		)
	}

	return domain.Approve(fmt.Sprintf("Amount within history-based limit %s", limit.StringFixed(2)))
}

// Limit 컨텍스트에 해당하는 한도 계산
func (p *HistoryBasedPolicy) Limit(rc RiskContext) decimal.Decimal {
	if rc.FirstTransaction {
		return p.NewUserLimit
	}

	for _, tier := range p.Tiers {
		if rc.ApprovedCountLast30Days < tier.MinApprovedCount {
			continue
		}
		if !tier.MinApprovedTotal.IsZero() && !rc.ApprovedTotalLast30Days.GreaterThan(tier.MinApprovedTotal) {
			continue
		}
		return tier.Limit
	}

	return p.NewUserLimit
}

// FrequencyPolicy 동일 수취인 결제 빈도 제한
type FrequencyPolicy struct {
	MaxPaymentsToPayeePerWeek int
	MinIntervalToPayee        time.Duration
}

// NewFrequencyPolicy 기본값: 주 5회, 최소 2시간 간격
func NewFrequencyPolicy() *FrequencyPolicy {
	return &FrequencyPolicy{
		MaxPaymentsToPayeePerWeek: 5,
		MinIntervalToPayee:        2 * time.Hour,
	}
}

func (p *FrequencyPolicy) Name() string { return "FrequencyPolicy" }

func (p *FrequencyPolicy) Evaluate(rc RiskContext) domain.Decision {
	if rc.PaymentsToPayeeLast7Days >= p.MaxPaymentsToPayeePerWeek {
		return domain.Decline(
			fmt.Sprintf("Too many payments to same recipient (%d in last 7 days)", rc.PaymentsToPayeeLast7Days),
			ScoreTooManyToPayee,
		)
	}

	if rc.HasPaidPayeeBefore() && rc.EvaluatedAt.Sub(rc.LastPaymentToPayee) < p.MinIntervalToPayee {
		return domain.Decline(
			fmt.Sprintf("Please wait at least %d hours between payments to same recipient",
				int(p.MinIntervalToPayee/time.Hour)),
			ScoreTooSoonToPayee,
		)
	}

	return domain.Approve("Frequency checks passed")
}
