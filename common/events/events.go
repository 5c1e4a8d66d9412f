package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType 이벤트 타입 정의
type EventType string

const (
	// Inbound
	EventPaymentRequested EventType = "payment.requested.v1"

	// Payment Decision Events
	EventPaymentApproved EventType = "payment.approved.v1"
	EventPaymentDeclined EventType = "payment.declined.v1"
)

// BaseEvent 모든 이벤트의 기본 구조
type BaseEvent struct {
	EventID       string    `json:"eventId"`
	EventType     EventType `json:"eventType"`
	SchemaVersion int       `json:"schemaVersion"`
	OccurredAt    time.Time `json:"occurredAt"`
	CorrelationID string    `json:"correlationId"` // 멱등성 키를 그대로 사용
}

// PaymentRequestedEvent 결제 요청 이벤트 (Kafka 인바운드)
type PaymentRequestedEvent struct {
	BaseEvent
	IdempotencyKey string          `json:"idempotencyKey"`
	PayerID        string          `json:"payerId"`
	PayeeID        string          `json:"payeeId"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Description    string          `json:"description,omitempty"`
}

// PaymentApprovedEvent 결제 승인 이벤트
type PaymentApprovedEvent struct {
	BaseEvent
	PaymentID      int64           `json:"paymentId"`
	IdempotencyKey string          `json:"idempotencyKey"`
	TransactionID  string          `json:"transactionId"`
	PayerID        string          `json:"payerId"`
	PayeeID        string          `json:"payeeId"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
}

// PaymentDeclinedEvent 결제 거절 이벤트
type PaymentDeclinedEvent struct {
	BaseEvent
	PaymentID      int64           `json:"paymentId"`
	IdempotencyKey string          `json:"idempotencyKey"`
	PayerID        string          `json:"payerId"`
	PayeeID        string          `json:"payeeId"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Reason         string          `json:"reason"`
	RiskScore      int             `json:"riskScore"`
	Policy         string          `json:"policy,omitempty"`
}
