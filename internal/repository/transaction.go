package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samuelbaldasso/banking-core/internal/domain"
)

type transactionRepo struct{}

// NewTransactionRepository returns a pgx-backed TransactionRepository.
func NewTransactionRepository() TransactionRepository {
	return &transactionRepo{}
}

// pgUniqueViolation is the SQLSTATE for unique index violations.
const pgUniqueViolation = "23505"

func (r *transactionRepo) FindByExternalID(ctx context.Context, db DBTX, externalID string) (*domain.Transaction, error) {
	row := db.QueryRow(ctx, `
		SELECT id, external_id, event_type, status, created_at, reversal_transaction_id
		FROM ledger_transactions
		WHERE external_id = $1`, externalID)
	return r.scanWithEntries(ctx, db, row)
}

func (r *transactionRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Transaction, error) {
	row := db.QueryRow(ctx, `
		SELECT id, external_id, event_type, status, created_at, reversal_transaction_id
		FROM ledger_transactions
		WHERE id = $1`, id)
	return r.scanWithEntries(ctx, db, row)
}

func (r *transactionRepo) Insert(ctx context.Context, db DBTX, txn *domain.Transaction) error {
	_, err := db.Exec(ctx, `
		INSERT INTO ledger_transactions (id, external_id, event_type, status, created_at, reversal_transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		txn.ID, txn.ExternalID, string(txn.EventType), string(txn.Status), txn.CreatedAt, txn.ReversalTransactionID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrDuplicateExternalID(txn.ExternalID)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}

	for i := range txn.Entries {
		e := &txn.Entries[i]
		_, err := db.Exec(ctx, `
			INSERT INTO ledger_entries
			  (id, transaction_id, account_id, amount, currency, side, event_type, event_time, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			e.ID, e.TransactionID, e.AccountID,
			decimalToNumeric(e.Amount.Amount()), e.Amount.Currency(),
			string(e.Side), string(e.EventType), e.EventTime, e.RecordedAt)
		if err != nil {
			return fmt.Errorf("insert entry %d: %w", i, err)
		}
	}
	return nil
}

func (r *transactionRepo) UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, status domain.TransactionStatus, reversalID *uuid.UUID) error {
	tag, err := db.Exec(ctx, `
		UPDATE ledger_transactions
		SET status = $2, reversal_transaction_id = COALESCE($3, reversal_transaction_id)
		WHERE id = $1`,
		id, string(status), reversalID)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound(id.String())
	}
	return nil
}

func (r *transactionRepo) FindPostedEntries(ctx context.Context, db DBTX, accountID uuid.UUID, after, until *time.Time) ([]domain.Entry, error) {
	rows, err := db.Query(ctx, `
		SELECT e.id, e.transaction_id, e.account_id, e.amount, e.currency, e.side, e.event_type, e.event_time, e.recorded_at
		FROM ledger_entries e
		JOIN ledger_transactions t ON t.id = e.transaction_id
		WHERE e.account_id = $1
		  AND t.status IN ('POSTED', 'REVERSED')
		  AND ($2::timestamptz IS NULL OR e.event_time > $2)
		  AND ($3::timestamptz IS NULL OR e.event_time <= $3)
		ORDER BY e.event_time ASC, e.recorded_at ASC`,
		accountID, after, until)
	if err != nil {
		return nil, fmt.Errorf("query posted entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *transactionRepo) scanWithEntries(ctx context.Context, db DBTX, row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(&t.ID, &t.ExternalID, &t.EventType, &t.Status, &t.CreatedAt, &t.ReversalTransactionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	rows, err := db.Query(ctx, `
		SELECT id, transaction_id, account_id, amount, currency, side, event_type, event_time, recorded_at
		FROM ledger_entries
		WHERE transaction_id = $1
		ORDER BY recorded_at ASC, id ASC`, t.ID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	t.Entries, err = collectEntries(rows)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func collectEntries(rows pgx.Rows) ([]domain.Entry, error) {
	var entries []domain.Entry
	for rows.Next() {
		var (
			e        domain.Entry
			amount   pgtype.Numeric
			currency string
		)
		err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &amount, &currency,
			&e.Side, &e.EventType, &e.EventTime, &e.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		e.Amount, err = numericToMoney(amount, currency)
		if err != nil {
			return nil, fmt.Errorf("decode entry amount: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
