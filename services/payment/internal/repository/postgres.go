package repository

import (
	"context"
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"

	"github.com/kyungseok/payment-risk-go/common/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// PostgresStore database/sql + lib/pq 기반 Store
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore Postgres Store 생성
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Payments 트랜잭션 밖 결제 조회
func (s *PostgresStore) Payments() PaymentRepository {
	return NewPaymentRepository(s.db)
}

// Outbox 트랜잭션 밖 Outbox 접근 (relay 워커)
func (s *PostgresStore) Outbox() OutboxRepository {
	return NewOutboxRepository(s.db)
}

// Do 트랜잭션 실행
func (s *PostgresStore) Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &postgresTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapCommitError(err)
	}

	return nil
}

type postgresTx struct {
	tx *sql.Tx
}

func (t *postgresTx) Payments() PaymentRepository { return NewPaymentRepository(t.tx) }

func (t *postgresTx) Outbox() OutboxRepository { return NewOutboxRepository(t.tx) }

// Migrate 내장 마이그레이션 실행 (command: up, down, status, version, redo, reset)
func Migrate(ctx context.Context, db *sql.DB, command string) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.RunContext(ctx, command, db, migrationsDir)
}
