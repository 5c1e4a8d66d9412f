package domain

import "fmt"

// Decision 리스크 정책 평가 결과 (Approved | Declined)
//
// 외부 패키지에서 새로운 변형을 만들 수 없도록 marker 메서드를 unexported 로 둔다.
type Decision interface {
	isDecision()
	fmt.Stringer
}

// Approved 승인 결정
type Approved struct {
	TransactionID string
	Reason        string
}

// Declined 거절 결정. RiskScore 는 진단용이며 분기에 사용하지 않는다.
type Declined struct {
	Reason    string
	RiskScore int
	Policy    string
}

func (Approved) isDecision() {}
func (Declined) isDecision() {}

func (a Approved) String() string {
	return fmt.Sprintf("Approved(transactionId=%s, reason=%s)", a.TransactionID, a.Reason)
}

func (d Declined) String() string {
	return fmt.Sprintf("Declined(policy=%s, riskScore=%d, reason=%s)", d.Policy, d.RiskScore, d.Reason)
}

// Approve 승인 결정 생성
func Approve(reason string) Approved {
	return Approved{Reason: reason}
}

// Decline 거절 결정 생성
func Decline(reason string, riskScore int) Declined {
	return Declined{Reason: reason, RiskScore: riskScore}
}

// IsApproved 승인 여부
func IsApproved(d Decision) bool {
	_, ok := d.(Approved)
	return ok
}
