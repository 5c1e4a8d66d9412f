package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kyungseok/payment-risk-go/common/errors"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/domain"
)

// MemoryStore 인메모리 Store (로컬 실행, 테스트)
//
// 트랜잭션 쓰기는 커밋 전까지 staging 되고, 커밋 시 mutex 아래에서 유니크 제약을
// 다시 검사한다. 동시에 같은 멱등성 키를 커밋하면 하나만 성공한다.
type MemoryStore struct {
	mu       sync.Mutex
	payments []*domain.Payment
	outbox   []*OutboxEvent
	nextID   int64
	nextEvID int64
	writes   int
}

// NewMemoryStore 인메모리 Store 생성
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Payments 자동 커밋 결제 레포지토리
func (s *MemoryStore) Payments() PaymentRepository {
	return &memoryPayments{tx: &memoryTx{store: s, autoCommit: true}}
}

// Outbox 자동 커밋 Outbox 레포지토리
func (s *MemoryStore) Outbox() OutboxRepository {
	return &memoryOutbox{tx: &memoryTx{store: s, autoCommit: true}}
}

// Do 트랜잭션 실행. ctx 가 취소되면 커밋하지 않는다.
func (s *MemoryStore) Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memoryTx{store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

// Writes 커밋된 결제 쓰기 횟수
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// PendingOutbox 아직 전송되지 않은 Outbox 이벤트 수
func (s *MemoryStore) PendingOutbox() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, ev := range s.outbox {
		if ev.Status == OutboxStatusPending {
			count++
		}
	}
	return count
}

type memoryTx struct {
	store      *MemoryStore
	autoCommit bool
	payments   []*domain.Payment
	outbox     []*OutboxEvent
}

func (t *memoryTx) Payments() PaymentRepository { return &memoryPayments{tx: t} }

func (t *memoryTx) Outbox() OutboxRepository { return &memoryOutbox{tx: t} }

func (t *memoryTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range t.payments {
		if err := s.checkUniqueLocked(p); err != nil {
			return err
		}
	}

	for _, p := range t.payments {
		s.upsertLocked(p)
		s.writes++
	}
	s.outbox = append(s.outbox, t.outbox...)

	t.payments = nil
	t.outbox = nil
	return nil
}

// checkUniqueLocked 다른 결제와 멱등성 키 또는 거래 ID 가 겹치는지 검사
func (s *MemoryStore) checkUniqueLocked(p *domain.Payment) error {
	for _, existing := range s.payments {
		if existing.ID == p.ID {
			continue
		}
		if existing.IdempotencyKey == p.IdempotencyKey {
			return errors.Newf(errors.ErrCodeConflict, "duplicate idempotency key: %s", p.IdempotencyKey)
		}
		if p.TransactionID != "" && existing.TransactionID == p.TransactionID {
			return errors.Newf(errors.ErrCodeConflict, "duplicate transaction id: %s", p.TransactionID)
		}
	}
	return nil
}

func (s *MemoryStore) upsertLocked(p *domain.Payment) {
	for i, existing := range s.payments {
		if existing.ID == p.ID {
			s.payments[i] = p
			return
		}
	}
	s.payments = append(s.payments, p)
}

func (t *memoryTx) stage(p *domain.Payment) {
	for i, staged := range t.payments {
		if staged.ID == p.ID {
			t.payments[i] = p
			return
		}
	}
	t.payments = append(t.payments, p)
}

// snapshot 커밋된 결제 + 이 트랜잭션의 staged 결제 (staged 가 우선)
func (t *memoryTx) snapshot() []*domain.Payment {
	t.store.mu.Lock()
	committed := append([]*domain.Payment(nil), t.store.payments...)
	t.store.mu.Unlock()

	if len(t.payments) == 0 {
		return committed
	}

	byID := make(map[int64]int, len(committed))
	for i, p := range committed {
		byID[p.ID] = i
	}
	for _, p := range t.payments {
		if i, ok := byID[p.ID]; ok {
			committed[i] = p
			continue
		}
		committed = append(committed, p)
	}
	return committed
}

type memoryPayments struct {
	tx *memoryTx
}

func (r *memoryPayments) Save(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	saved := *payment
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now().UTC()
	}
	if saved.UpdatedAt.IsZero() {
		saved.UpdatedAt = saved.CreatedAt
	}

	s := r.tx.store
	s.mu.Lock()
	if saved.ID == 0 {
		s.nextID++
		saved.ID = s.nextID
	}
	s.mu.Unlock()

	for _, existing := range r.tx.snapshot() {
		if existing.ID == saved.ID {
			continue
		}
		if existing.IdempotencyKey == saved.IdempotencyKey ||
			(saved.TransactionID != "" && existing.TransactionID == saved.TransactionID) {
			return nil, errors.Newf(errors.ErrCodeConflict, "duplicate payment: %s", saved.IdempotencyKey)
		}
	}

	r.tx.stage(&saved)
	if r.tx.autoCommit {
		if err := r.tx.commit(); err != nil {
			return nil, err
		}
	}

	out := saved
	return &out, nil
}

func (r *memoryPayments) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	return r.findOne(ctx, func(p *domain.Payment) bool { return p.IdempotencyKey == key })
}

func (r *memoryPayments) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	if transactionID == "" {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, func(p *domain.Payment) bool { return p.TransactionID == transactionID })
}

func (r *memoryPayments) FindByPayerCreatedAfter(ctx context.Context, payerID string, after time.Time) ([]*domain.Payment, error) {
	return r.findMany(ctx, func(p *domain.Payment) bool {
		return p.PayerID == payerID && p.CreatedAt.After(after)
	})
}

func (r *memoryPayments) FindByPayerAndPayeeCreatedAfter(ctx context.Context, payerID, payeeID string, after time.Time) ([]*domain.Payment, error) {
	return r.findMany(ctx, func(p *domain.Payment) bool {
		return p.PayerID == payerID && p.PayeeID == payeeID && p.CreatedAt.After(after)
	})
}

func (r *memoryPayments) findOne(ctx context.Context, match func(*domain.Payment) bool) (*domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, p := range r.tx.snapshot() {
		if match(p) {
			out := *p
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryPayments) findMany(ctx context.Context, match func(*domain.Payment) bool) ([]*domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var result []*domain.Payment
	for _, p := range r.tx.snapshot() {
		if match(p) {
			out := *p
			result = append(result, &out)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

type memoryOutbox struct {
	tx *memoryTx
}

func (r *memoryOutbox) Insert(ctx context.Context, event *OutboxEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Status == "" {
		event.Status = OutboxStatusPending
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	s := r.tx.store
	s.mu.Lock()
	s.nextEvID++
	event.ID = s.nextEvID
	s.mu.Unlock()

	stored := *event
	r.tx.outbox = append(r.tx.outbox, &stored)
	if r.tx.autoCommit {
		return r.tx.commit()
	}
	return nil
}

func (r *memoryOutbox) FindPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []*OutboxEvent
	for _, ev := range s.outbox {
		if ev.Status != OutboxStatusPending {
			continue
		}
		out := *ev
		events = append(events, &out)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}

func (r *memoryOutbox) MarkSent(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range s.outbox {
		if ev.ID == id {
			now := time.Now().UTC()
			ev.Status = OutboxStatusSent
			ev.SentAt = &now
			return nil
		}
	}
	return errors.Newf(errors.ErrCodeNotFound, "outbox event not found: %d", id)
}
