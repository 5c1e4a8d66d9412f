package repository

import (
	"context"
	"time"

	"github.com/kyungseok/payment-risk-go/common/errors"
)

type outboxRepository struct {
	q querier
}

// NewOutboxRepository Outbox 레포지토리 생성
func NewOutboxRepository(q querier) OutboxRepository {
	return &outboxRepository{q: q}
}

// Insert Outbox 이벤트 삽입
func (r *outboxRepository) Insert(ctx context.Context, event *OutboxEvent) error {
	if event.Status == "" {
		event.Status = OutboxStatusPending
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, event_key, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.q.QueryRowContext(
		ctx,
		query,
		event.AggregateType,
		event.AggregateID,
		event.EventType,
		event.EventKey,
		string(event.Payload),
		event.Status,
		event.CreatedAt,
	).Scan(&event.ID)

	if err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to insert outbox event", err)
	}

	return nil
}

// FindPending 전송 대기 중인 이벤트 조회
func (r *outboxRepository) FindPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, event_key, payload, status, created_at
		FROM outbox_events
		WHERE status = 'PENDING'
		ORDER BY id ASC
		LIMIT $1
	`

	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to find pending events", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		event := &OutboxEvent{}
		var payload []byte
		err := rows.Scan(
			&event.ID,
			&event.AggregateType,
			&event.AggregateID,
			&event.EventType,
			&event.EventKey,
			&payload,
			&event.Status,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to scan outbox event", err)
		}
		event.Payload = payload
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to iterate outbox events", err)
	}

	return events, nil
}

// MarkSent 이벤트를 전송 완료로 표시
func (r *outboxRepository) MarkSent(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_events
		SET status = 'SENT', sent_at = NOW()
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to mark event as sent", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to mark event as sent", err)
	}
	if rows == 0 {
		return errors.Newf(errors.ErrCodeNotFound, "outbox event %d not found", id)
	}

	return nil
}
