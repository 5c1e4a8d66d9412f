package risk

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kyungseok/payment-risk-go/services/payment/internal/domain"
)

// Policy 단일 리스크 규칙. 부수효과가 없고 에러 대신 항상 Decision 을 반환한다.
type Policy interface {
	Name() string
	Evaluate(rc RiskContext) domain.Decision
}

// PolicyFunc 함수를 Policy 로 사용하기 위한 어댑터
type PolicyFunc struct {
	PolicyName string
	Fn         func(rc RiskContext) domain.Decision
}

func (f PolicyFunc) Name() string { return f.PolicyName }

func (f PolicyFunc) Evaluate(rc RiskContext) domain.Decision { return f.Fn(rc) }

// NewTransactionID 승인 거래 ID 생성
func NewTransactionID() string {
	return "txn-" + uuid.NewString()
}

// Chain 정책 체인 (short-circuit AND)
//
// 설정된 순서대로 평가하며 첫 번째 거절을 즉시 반환한다. 모두 승인하면 마지막
// 승인을 반환하고, 거래 ID 는 체인이 최종 승인 시점에 한 번만 생성한다.
type Chain struct {
	policies         []Policy
	newTransactionID func() string
}

// ChainOption 체인 옵션
type ChainOption func(*Chain)

// WithTransactionIDGenerator 거래 ID 생성기 교체 (테스트용)
func WithTransactionIDGenerator(fn func() string) ChainOption {
	return func(c *Chain) {
		c.newTransactionID = fn
	}
}

// NewChain 정책 체인 생성
func NewChain(policies []Policy, opts ...ChainOption) *Chain {
	c := &Chain{
		policies:         append([]Policy(nil), policies...),
		newTransactionID: NewTransactionID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultChain AmountLimit -> HistoryBased -> Frequency
func DefaultChain(opts ...ChainOption) *Chain {
	return NewChain([]Policy{
		NewAmountLimitPolicy(),
		NewHistoryBasedPolicy(),
		NewFrequencyPolicy(),
	}, opts...)
}

// And 정책을 뒤에 추가한 새 체인 반환
func (c *Chain) And(p Policy) *Chain {
	next := &Chain{
		policies:         append(append([]Policy(nil), c.policies...), p),
		newTransactionID: c.newTransactionID,
	}
	return next
}

// Policies 평가 순서대로 정책 목록
func (c *Chain) Policies() []Policy {
	return append([]Policy(nil), c.policies...)
}

func (c *Chain) Name() string {
	names := make([]string, 0, len(c.policies))
	for _, p := range c.policies {
		names = append(names, p.Name())
	}
	return fmt.Sprintf("Chain(%s)", strings.Join(names, ","))
}

// Evaluate 체인 평가
func (c *Chain) Evaluate(rc RiskContext) domain.Decision {
	if len(c.policies) == 0 {
		return domain.Declined{Reason: "No risk policies configured", RiskScore: 100, Policy: c.Name()}
	}

	var last domain.Approved
	for _, p := range c.policies {
		switch d := p.Evaluate(rc).(type) {
		case domain.Approved:
			last = d
		case domain.Declined:
			if d.Policy == "" {
				d.Policy = p.Name()
			}
			return d
		default:
			return domain.Declined{
				Reason:    fmt.Sprintf("Policy %s returned no decision", p.Name()),
				RiskScore: 100,
				Policy:    p.Name(),
			}
		}
	}

	// 중첩 체인이 이미 거래 ID 를 생성했다면 유지
	if last.TransactionID == "" {
		last.TransactionID = c.newTransactionID()
	}
	return last
}
