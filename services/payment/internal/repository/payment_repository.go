package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/lib/pq"

	"github.com/kyungseok/payment-risk-go/common/errors"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/domain"
)

const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
)

// querier *sql.DB 와 *sql.Tx 공통 메서드
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const paymentColumns = `id, idempotency_key, transaction_id, payer_id, payee_id, amount, currency,
		description, status, message, created_at, updated_at`

type paymentRepository struct {
	q querier
}

// NewPaymentRepository 결제 레포지토리 생성
func NewPaymentRepository(q querier) PaymentRepository {
	return &paymentRepository{q: q}
}

// Save 결제 저장
func (r *paymentRepository) Save(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	saved := *payment
	now := time.Now().UTC()
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	if saved.UpdatedAt.IsZero() {
		saved.UpdatedAt = saved.CreatedAt
	}

	if saved.ID != 0 {
		return r.update(ctx, &saved)
	}

	query := `
		INSERT INTO payments (idempotency_key, transaction_id, payer_id, payee_id, amount, currency,
			description, status, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := r.q.QueryRowContext(
		ctx,
		query,
		saved.IdempotencyKey,
		nullString(saved.TransactionID),
		saved.PayerID,
		saved.PayeeID,
		saved.Amount,
		saved.Currency,
		saved.Description,
		saved.Status,
		saved.Message,
		saved.CreatedAt,
		saved.UpdatedAt,
	).Scan(&saved.ID)

	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, conflictError(err)
		case isCheckViolation(err):
			return nil, errors.Wrap(errors.ErrCodeValidation, "payment violates a storage constraint", err)
		}
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to insert payment", err)
	}

	return &saved, nil
}

func (r *paymentRepository) update(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	query := `
		UPDATE payments
		SET transaction_id = $1, status = $2, message = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.q.ExecContext(ctx, query,
		nullString(payment.TransactionID), payment.Status, payment.Message, payment.UpdatedAt, payment.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictError(err)
		}
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to update payment", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to update payment", err)
	}
	if rows == 0 {
		return nil, ErrNotFound
	}

	return payment, nil
}

// FindByIdempotencyKey 멱등성 키로 결제 조회
func (r *paymentRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE idempotency_key = $1`
	return r.findOne(ctx, query, key)
}

// FindByTransactionID 거래 ID로 결제 조회
func (r *paymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = $1`
	return r.findOne(ctx, query, transactionID)
}

// FindByPayerCreatedAfter 결제자의 기간 내 결제 목록
func (r *paymentRepository) FindByPayerCreatedAfter(ctx context.Context, payerID string, after time.Time) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE payer_id = $1 AND created_at > $2
		ORDER BY created_at ASC
	`
	return r.findMany(ctx, query, payerID, after)
}

// FindByPayerAndPayeeCreatedAfter 결제자 -> 수취인 기간 내 결제 목록
func (r *paymentRepository) FindByPayerAndPayeeCreatedAfter(ctx context.Context, payerID, payeeID string, after time.Time) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE payer_id = $1 AND payee_id = $2 AND created_at > $3
		ORDER BY created_at ASC
	`
	return r.findMany(ctx, query, payerID, payeeID, after)
}

func (r *paymentRepository) findOne(ctx context.Context, query string, args ...interface{}) (*domain.Payment, error) {
	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, args...))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to find payment", err)
	}
	return payment, nil
}

func (r *paymentRepository) findMany(ctx context.Context, query string, args ...interface{}) ([]*domain.Payment, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to query payments", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to scan payment", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to iterate payments", err)
	}

	return payments, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	payment := &domain.Payment{}
	var transactionID sql.NullString

	err := row.Scan(
		&payment.ID,
		&payment.IdempotencyKey,
		&transactionID,
		&payment.PayerID,
		&payment.PayeeID,
		&payment.Amount,
		&payment.Currency,
		&payment.Description,
		&payment.Status,
		&payment.Message,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if transactionID.Valid {
		payment.TransactionID = transactionID.String
	}

	return payment, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool { return hasPQCode(err, pqUniqueViolation) }

func isCheckViolation(err error) bool { return hasPQCode(err, pqCheckViolation) }

func hasPQCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == code
	}
	return false
}

// wrapCommitError 커밋 실패를 CONFLICT 또는 DATABASE_ERROR 로 변환
func wrapCommitError(err error) error {
	if isUniqueViolation(err) {
		return conflictError(err)
	}
	return errors.Wrap(errors.ErrCodeDatabaseError, "failed to commit transaction", err)
}
