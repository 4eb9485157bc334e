package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samuelbaldasso/banking-core/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// DB is a DBTX that can also open transactions. *pgxpool.Pool satisfies it.
type DB interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AccountRepository provides access to the accounts table.
type AccountRepository interface {
	// Create inserts a new account.
	Create(ctx context.Context, db DBTX, account *domain.Account) error

	// FindByID returns an account, or nil if it does not exist.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Account, error)

	// LockForUpdate acquires a row-level write lock (SELECT FOR UPDATE) and
	// returns the account, or nil if it does not exist. The lock is released
	// when the enclosing transaction ends.
	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error)

	// List returns accounts ordered by creation time, newest first.
	List(ctx context.Context, db DBTX, limit, offset int) ([]domain.Account, error)

	// ListByStatus returns all accounts in the given status, oldest first.
	ListByStatus(ctx context.Context, db DBTX, status domain.AccountStatus) ([]domain.Account, error)

	// UpdateStatus persists a status change.
	UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, status domain.AccountStatus) error
}

// TransactionRepository provides access to ledger_transactions and
// ledger_entries. Entries are owned by their transaction and always travel
// with it.
type TransactionRepository interface {
	// FindByExternalID returns the transaction with its entries for the
	// idempotency check, or nil if no transaction uses the external id.
	FindByExternalID(ctx context.Context, db DBTX, externalID string) (*domain.Transaction, error)

	// FindByID returns the transaction with its entries, or nil.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Transaction, error)

	// Insert persists the transaction row and all entry rows. Returns
	// domain.ErrDuplicateExternalID if the external id unique index rejects
	// the insert.
	Insert(ctx context.Context, db DBTX, txn *domain.Transaction) error

	// UpdateStatus persists a status transition, optionally recording the
	// reversing transaction id.
	UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, status domain.TransactionStatus, reversalID *uuid.UUID) error

	// FindPostedEntries returns the balance-effective entries for the
	// account, ordered by event time ascending. Effective means the owning
	// transaction is POSTED or REVERSED: a reversed transaction's entries
	// stay effective, the compensating REVERSAL entries cancel them out.
	// after is a strict lower bound (event_time > after); until is
	// inclusive (event_time <= until). Either bound may be nil.
	FindPostedEntries(ctx context.Context, db DBTX, accountID uuid.UUID, after, until *time.Time) ([]domain.Entry, error)
}

// SnapshotRepository provides access to balance_snapshots.
type SnapshotRepository interface {
	// Insert persists a snapshot. The (account_id, snapshot_time) pair is
	// unique.
	Insert(ctx context.Context, db DBTX, snapshot *domain.BalanceSnapshot) error

	// FindLatest returns the most recent snapshot for the account with
	// snapshot_time <= atOrBefore (no bound when nil), or nil if none.
	FindLatest(ctx context.Context, db DBTX, accountID uuid.UUID, atOrBefore *time.Time) (*domain.BalanceSnapshot, error)

	// ExistsAt reports whether a snapshot exists at exactly the cutoff.
	ExistsAt(ctx context.Context, db DBTX, accountID uuid.UUID, snapshotTime time.Time) (bool, error)
}

// OutboxRepository provides access to the outbox_events table.
type OutboxRepository interface {
	// Insert writes a PENDING record in the same transaction as the ledger
	// rows it describes.
	Insert(ctx context.Context, db DBTX, record *domain.OutboxRecord) error

	// FetchPending returns up to limit PENDING records oldest-first, locked
	// with FOR UPDATE SKIP LOCKED so concurrent relays never pick the same
	// row. Must be called within a transaction.
	FetchPending(ctx context.Context, tx pgx.Tx, limit int) ([]domain.OutboxRecord, error)

	// Update persists status, attempts, processed time and last error.
	Update(ctx context.Context, db DBTX, record *domain.OutboxRecord) error

	// CountByStatus returns the number of records in the given status.
	CountByStatus(ctx context.Context, db DBTX, status domain.OutboxStatus) (int64, error)
}
