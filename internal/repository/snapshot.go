package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samuelbaldasso/banking-core/internal/domain"
)

type snapshotRepo struct{}

// NewSnapshotRepository returns a pgx-backed SnapshotRepository.
func NewSnapshotRepository() SnapshotRepository {
	return &snapshotRepo{}
}

func (r *snapshotRepo) Insert(ctx context.Context, db DBTX, snapshot *domain.BalanceSnapshot) error {
	_, err := db.Exec(ctx, `
		INSERT INTO balance_snapshots
		  (id, account_id, balance, currency, snapshot_time, last_entry_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		snapshot.ID, snapshot.AccountID,
		decimalToNumeric(snapshot.Balance.Amount()), snapshot.Balance.Currency(),
		snapshot.SnapshotTime, snapshot.LastEntryID, snapshot.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepo) FindLatest(ctx context.Context, db DBTX, accountID uuid.UUID, atOrBefore *time.Time) (*domain.BalanceSnapshot, error) {
	row := db.QueryRow(ctx, `
		SELECT id, account_id, balance, currency, snapshot_time, last_entry_id, created_at
		FROM balance_snapshots
		WHERE account_id = $1
		  AND ($2::timestamptz IS NULL OR snapshot_time <= $2)
		ORDER BY snapshot_time DESC
		LIMIT 1`, accountID, atOrBefore)

	var (
		s        domain.BalanceSnapshot
		balance  pgtype.Numeric
		currency string
	)
	err := row.Scan(&s.ID, &s.AccountID, &balance, &currency, &s.SnapshotTime, &s.LastEntryID, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	s.Balance, err = numericToMoney(balance, currency)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot balance: %w", err)
	}
	return &s, nil
}

func (r *snapshotRepo) ExistsAt(ctx context.Context, db DBTX, accountID uuid.UUID, snapshotTime time.Time) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM balance_snapshots
			WHERE account_id = $1 AND snapshot_time = $2
		)`, accountID, snapshotTime).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check snapshot exists: %w", err)
	}
	return exists, nil
}
