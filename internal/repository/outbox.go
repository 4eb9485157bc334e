package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/samuelbaldasso/banking-core/internal/domain"
)

type outboxRepo struct{}

// NewOutboxRepository returns a pgx-backed OutboxRepository.
func NewOutboxRepository() OutboxRepository {
	return &outboxRepo{}
}

func (r *outboxRepo) Insert(ctx context.Context, db DBTX, record *domain.OutboxRecord) error {
	_, err := db.Exec(ctx, `
		INSERT INTO outbox_events
		  (id, aggregate_id, event_type, payload, created_at, processed_at, attempts, last_error, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.ID, record.AggregateID, record.EventType, record.Payload,
		record.CreatedAt, record.ProcessedAt, record.Attempts, record.LastError, string(record.Status))
	if err != nil {
		return fmt.Errorf("insert outbox record: %w", err)
	}
	return nil
}

func (r *outboxRepo) FetchPending(ctx context.Context, tx pgx.Tx, limit int) ([]domain.OutboxRecord, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at, processed_at, attempts, last_error, status
		FROM outbox_events
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox records: %w", err)
	}
	defer rows.Close()

	var records []domain.OutboxRecord
	for rows.Next() {
		var rec domain.OutboxRecord
		err := rows.Scan(&rec.ID, &rec.AggregateID, &rec.EventType, &rec.Payload,
			&rec.CreatedAt, &rec.ProcessedAt, &rec.Attempts, &rec.LastError, &rec.Status)
		if err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *outboxRepo) Update(ctx context.Context, db DBTX, record *domain.OutboxRecord) error {
	tag, err := db.Exec(ctx, `
		UPDATE outbox_events
		SET status = $2, attempts = $3, processed_at = $4, last_error = $5
		WHERE id = $1`,
		record.ID, string(record.Status), record.Attempts, record.ProcessedAt, record.LastError)
	if err != nil {
		return fmt.Errorf("update outbox record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outbox record %s not found", record.ID)
	}
	return nil
}

func (r *outboxRepo) CountByStatus(ctx context.Context, db DBTX, status domain.OutboxStatus) (int64, error) {
	var count int64
	err := db.QueryRow(ctx, `SELECT count(*) FROM outbox_events WHERE status = $1`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count outbox records: %w", err)
	}
	return count, nil
}
