package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samuelbaldasso/banking-core/internal/domain"
)

type accountRepo struct{}

// NewAccountRepository returns a pgx-backed AccountRepository.
func NewAccountRepository() AccountRepository {
	return &accountRepo{}
}

const accountColumns = `id, account_type, currency, status, created_at`

func (r *accountRepo) Create(ctx context.Context, db DBTX, account *domain.Account) error {
	_, err := db.Exec(ctx, `
		INSERT INTO accounts (id, account_type, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		account.ID, string(account.Type), account.Currency, string(account.Status), account.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *accountRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Account, error) {
	row := db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (r *accountRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	row := tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	return scanAccount(row)
}

func (r *accountRepo) List(ctx context.Context, db DBTX, limit, offset int) ([]domain.Account, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := db.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()
	return collectAccounts(rows)
}

func (r *accountRepo) ListByStatus(ctx context.Context, db DBTX, status domain.AccountStatus) ([]domain.Account, error) {
	rows, err := db.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE status = $1
		ORDER BY created_at ASC, id ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("query accounts by status: %w", err)
	}
	defer rows.Close()
	return collectAccounts(rows)
}

func (r *accountRepo) UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, status domain.AccountStatus) error {
	tag, err := db.Exec(ctx, `UPDATE accounts SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update account status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound(id.String())
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.Type, &a.Currency, &a.Status, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}

func collectAccounts(rows pgx.Rows) ([]domain.Account, error) {
	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.Type, &a.Currency, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
