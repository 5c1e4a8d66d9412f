// Package risk 결제 리스크 평가: 정책 체인과 정책 입력이 되는 RiskContext.
package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// HighValueThreshold 고액 결제 기준
var HighValueThreshold = decimal.NewFromInt(10000)

// RiskContext 결제자 최근 이력의 불변 스냅샷 (정책 입력 전용, 저장하지 않음)
type RiskContext struct {
	PayerID  string
	PayeeID  string
	Amount   decimal.Decimal
	Currency string

	// 최근 30일 승인 건수/합계 (승인된 결제만 포함)
	ApprovedCountLast30Days int
	ApprovedTotalLast30Days decimal.Decimal

	// 최근 7일 동일 수취인 결제 건수 (상태 무관)
	PaymentsToPayeeLast7Days int
	// 동일 수취인 마지막 결제 시각, 없으면 zero
	LastPaymentToPayee time.Time

	FirstTransaction bool

	// EvaluatedAt 컨텍스트 생성 시각. 정책은 벽시계 대신 이 값을 기준으로 판단한다.
	EvaluatedAt time.Time
}

// HasHistory 이전 결제 이력 존재 여부
func (c RiskContext) HasHistory() bool {
	return !c.FirstTransaction
}

// IsHighValue 고액 결제 여부
func (c RiskContext) IsHighValue() bool {
	return c.Amount.GreaterThan(HighValueThreshold)
}

// HasPaidPayeeBefore 최근 7일 내 동일 수취인 결제 존재 여부
func (c RiskContext) HasPaidPayeeBefore() bool {
	return !c.LastPaymentToPayee.IsZero()
}
