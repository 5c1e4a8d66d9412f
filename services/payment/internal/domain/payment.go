package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/kyungseok/payment-risk-go/common/errors"
)

// PaymentStatus 결제 상태
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusApproved PaymentStatus = "APPROVED"
	PaymentStatusDeclined PaymentStatus = "DECLINED"
)

const (
	// MessageApproved 승인 시 고정 메시지
	MessageApproved = "Payment processed successfully"

	MaxDescriptionLength = 500
	CurrencyCodeLength   = 3
)

// Payment 결제 도메인 모델
//
// 상태 변경은 Approve/Decline 이 새 값을 반환하는 방식으로만 일어나며
// 원본은 수정하지 않는다.
type Payment struct {
	ID             int64
	IdempotencyKey string
	TransactionID  string
	PayerID        string
	PayeeID        string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	Status         PaymentStatus
	Message        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewPendingPayment PENDING 상태의 결제 생성
func NewPendingPayment(
	idempotencyKey string,
	payerID string,
	payeeID string,
	amount decimal.Decimal,
	currency string,
	description string,
) (*Payment, error) {
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	payerID = strings.TrimSpace(payerID)
	payeeID = strings.TrimSpace(payeeID)
	currency = strings.ToUpper(strings.TrimSpace(currency))

	switch {
	case idempotencyKey == "":
		return nil, errors.New(errors.ErrCodeValidation, "idempotency key is required")
	case payerID == "":
		return nil, errors.New(errors.ErrCodeValidation, "payer id is required")
	case payeeID == "":
		return nil, errors.New(errors.ErrCodeValidation, "payee id is required")
	case !amount.IsPositive():
		return nil, errors.Newf(errors.ErrCodeValidation, "amount must be positive, got %s", amount.String())
	case !isCurrencyCode(currency):
		return nil, errors.Newf(errors.ErrCodeValidation, "currency must be a 3-letter code, got %q", currency)
	case utf8.RuneCountInString(description) > MaxDescriptionLength:
		return nil, errors.Newf(errors.ErrCodeValidation, "description must be at most %d characters", MaxDescriptionLength)
	}

	now := time.Now().UTC()
	return &Payment{
		IdempotencyKey: idempotencyKey,
		PayerID:        payerID,
		PayeeID:        payeeID,
		Amount:         amount,
		Currency:       currency,
		Description:    description,
		Status:         PaymentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func isCurrencyCode(s string) bool {
	if len(s) != CurrencyCodeLength {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// CanTransitionTo 상태 전이 가능 여부 확인
func (p *Payment) CanTransitionTo(newStatus PaymentStatus) bool {
	transitions := map[PaymentStatus][]PaymentStatus{
		PaymentStatusPending: {
			PaymentStatusApproved,
			PaymentStatusDeclined,
		},
	}

	for _, allowed := range transitions[p.Status] {
		if allowed == newStatus {
			return true
		}
	}
	return false
}

// IsTerminal 더 이상 전이가 없는 상태인지 확인
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusApproved || p.Status == PaymentStatusDeclined
}

// Approve 승인된 새 결제 값 반환
func (p *Payment) Approve(transactionID string) (*Payment, error) {
	if !p.CanTransitionTo(PaymentStatusApproved) {
		return nil, errors.Newf(errors.ErrCodeInvalidStateTransition,
			"only pending payments can be approved (current: %s)", p.Status)
	}
	if transactionID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "transaction id is required for approval")
	}

	next := *p
	next.Status = PaymentStatusApproved
	next.TransactionID = transactionID
	next.Message = MessageApproved
	next.UpdatedAt = time.Now().UTC()
	return &next, nil
}

// Decline 거절된 새 결제 값 반환
func (p *Payment) Decline(reason string) (*Payment, error) {
	if !p.CanTransitionTo(PaymentStatusDeclined) {
		return nil, errors.Newf(errors.ErrCodeInvalidStateTransition,
			"only pending payments can be declined (current: %s)", p.Status)
	}

	next := *p
	next.Status = PaymentStatusDeclined
	next.TransactionID = ""
	next.Message = reason
	next.UpdatedAt = time.Now().UTC()
	return &next, nil
}
