package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samuelbaldasso/banking-core/internal/domain"
	"github.com/samuelbaldasso/banking-core/internal/repository"
	"github.com/samuelbaldasso/banking-core/pkg/money"
	"github.com/shopspring/decimal"
)

// Engine is the transactional posting engine. It orchestrates idempotent
// posting and reversal of balanced multi-entry transactions, balance queries
// and account administration.
//
// Every mutating operation runs inside one database transaction: account row
// locks, validation, and persistence of the transaction, its entries and the
// outbox record all commit or roll back together.
type Engine struct {
	db        repository.DB
	accounts  repository.AccountRepository
	txns      repository.TransactionRepository
	snapshots repository.SnapshotRepository
	outbox    repository.OutboxRepository
	clock     Clock
	ids       domain.IDGenerator
	logger    *slog.Logger
}

// NewEngine creates a posting engine with the given store and dependencies.
func NewEngine(
	db repository.DB,
	accounts repository.AccountRepository,
	txns repository.TransactionRepository,
	snapshots repository.SnapshotRepository,
	outbox repository.OutboxRepository,
	clock Clock,
	ids domain.IDGenerator,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		db:        db,
		accounts:  accounts,
		txns:      txns,
		snapshots: snapshots,
		outbox:    outbox,
		clock:     clock,
		ids:       ids,
		logger:    logger,
	}
}

// EntryDraft is one requested debit or credit inside a PostCommand.
type EntryDraft struct {
	AccountID uuid.UUID
	Amount    decimal.Decimal
	Currency  string
	Side      domain.EntrySide
}

// PostCommand describes a transaction to post. ExternalID is the caller's
// idempotency key: posting the same external id twice returns the stored
// transaction unchanged.
type PostCommand struct {
	ExternalID string
	EventType  domain.EventType
	Entries    []EntryDraft
}

func (c *PostCommand) validate() error {
	if c.ExternalID == "" {
		return domain.ErrInvalidArg("external id is required")
	}
	if !domain.ValidEventType(c.EventType) {
		return domain.ErrInvalidArg("invalid event type: " + string(c.EventType))
	}
	for i := range c.Entries {
		d := &c.Entries[i]
		if d.AccountID == uuid.Nil {
			return domain.ErrInvalidArg(fmt.Sprintf("entry %d: account id is required", i))
		}
		if !d.Amount.IsPositive() {
			return domain.ErrInvalidArg(fmt.Sprintf("entry %d: amount must be positive", i))
		}
		if d.Side != domain.Debit && d.Side != domain.Credit {
			return domain.ErrInvalidArg(fmt.Sprintf("entry %d: side must be DEBIT or CREDIT", i))
		}
	}
	return nil
}

// Post atomically creates a balanced transaction with its entries and a
// TRANSACTION_POSTED outbox record.
//
// Pattern: Idempotency -> Lock (ascending account id order) -> Validate ->
// Persist. Any error rolls back the whole store transaction.
func (e *Engine) Post(ctx context.Context, cmd PostCommand) (*domain.Transaction, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	txn, err := retrySerializable(e.logger, "post", func() (*domain.Transaction, error) {
		return e.postOnce(ctx, cmd)
	})
	if err == nil {
		return txn, nil
	}

	// Two writers can race past the idempotency read with the same external
	// id; the unique index rejects the loser. Re-read once and return the
	// winner's transaction.
	var appErr *domain.AppError
	if errors.As(err, &appErr) && appErr.Kind == "DUPLICATE_EXTERNAL_ID" {
		existing, findErr := e.txns.FindByExternalID(ctx, e.db, cmd.ExternalID)
		if findErr == nil && existing != nil {
			e.logger.Info("post lost duplicate race, returning stored transaction",
				"external_id", cmd.ExternalID, "transaction_id", existing.ID)
			return existing, nil
		}
	}
	return nil, err
}

func (e *Engine) postOnce(ctx context.Context, cmd PostCommand) (*domain.Transaction, error) {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return nil, wrapCtxErr("post", fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback(ctx)

	// Idempotency check.
	existing, err := e.txns.FindByExternalID(ctx, tx, cmd.ExternalID)
	if err != nil {
		return nil, wrapCtxErr("post", err)
	}
	if existing != nil {
		if err := tx.Commit(ctx); err != nil {
			return nil, wrapCtxErr("post", fmt.Errorf("commit read-only: %w", err))
		}
		e.logger.Info("transaction already exists, returning existing",
			"external_id", cmd.ExternalID, "transaction_id", existing.ID)
		return existing, nil
	}

	// Lock all affected accounts in ascending id order and validate them.
	accounts, err := e.lockAccounts(ctx, tx, draftAccountIDs(cmd.Entries))
	if err != nil {
		return nil, err
	}
	for i := range cmd.Entries {
		account := accounts[cmd.Entries[i].AccountID]
		if cmd.Entries[i].Currency != account.Currency {
			return nil, domain.ErrCurrencyMismatch(fmt.Sprintf(
				"account %s currency is %s, entry currency is %s",
				account.ID, account.Currency, cmd.Entries[i].Currency))
		}
	}

	// Build the transaction and its entries.
	now := e.clock.Now()
	txnID := e.ids.NewID()
	entries := make([]domain.Entry, 0, len(cmd.Entries))
	for i := range cmd.Entries {
		d := &cmd.Entries[i]
		amount, err := money.New(d.Amount, d.Currency)
		if err != nil {
			return nil, domain.ErrInvalidArg(fmt.Sprintf("entry %d: %v", i, err))
		}
		entries = append(entries, domain.Entry{
			ID:            e.ids.NewID(),
			TransactionID: txnID,
			AccountID:     d.AccountID,
			Amount:        amount,
			Side:          d.Side,
			EventType:     cmd.EventType,
			EventTime:     now,
			RecordedAt:    now,
		})
	}

	if err := ValidateEntries(entries); err != nil {
		return nil, err
	}

	txn := &domain.Transaction{
		ID:         txnID,
		ExternalID: cmd.ExternalID,
		EventType:  cmd.EventType,
		Status:     domain.TxPending,
		CreatedAt:  now,
		Entries:    entries,
	}
	if err := txn.Post(); err != nil {
		return nil, err
	}

	if err := e.txns.Insert(ctx, tx, txn); err != nil {
		return nil, wrapCtxErr("post", err)
	}

	if err := e.writeOutbox(ctx, tx, txn.ID, domain.EventTransactionPosted,
		domain.NewTransactionPostedEvent(txn, now)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapCtxErr("post", fmt.Errorf("commit: %w", err))
	}

	e.logger.Info("posted transaction",
		"transaction_id", txn.ID, "external_id", txn.ExternalID,
		"event_type", txn.EventType, "entries", len(txn.Entries))
	return txn, nil
}

// lockAccounts acquires write locks on the given accounts, which must be
// sorted ascending, and verifies each is ACTIVE.
func (e *Engine) lockAccounts(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) (map[uuid.UUID]*domain.Account, error) {
	accounts := make(map[uuid.UUID]*domain.Account, len(ids))
	for _, id := range ids {
		account, err := e.accounts.LockForUpdate(ctx, tx, id)
		if err != nil {
			return nil, wrapCtxErr("lock account", err)
		}
		if account == nil {
			return nil, domain.ErrAccountNotFound(id.String())
		}
		if !account.IsActive() {
			return nil, domain.ErrAccountNotActive(id.String(), account.Status)
		}
		accounts[id] = account
	}
	return accounts, nil
}

func (e *Engine) writeOutbox(ctx context.Context, db repository.DBTX, aggregateID uuid.UUID, eventType string, event any) error {
	payload, err := domain.EncodeEventPayload(event)
	if err != nil {
		return err
	}
	record := domain.NewOutboxRecord(e.ids.NewID(), aggregateID, eventType, payload, e.clock.Now())
	if err := e.outbox.Insert(ctx, db, record); err != nil {
		return wrapCtxErr("write outbox", err)
	}
	return nil
}

// GetTransaction returns a transaction with its entries.
func (e *Engine) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	txn, err := e.txns.FindByID(ctx, e.db, id)
	if err != nil {
		return nil, wrapCtxErr("get transaction", err)
	}
	if txn == nil {
		return nil, domain.ErrTransactionNotFound(id.String())
	}
	return txn, nil
}

func draftAccountIDs(drafts []EntryDraft) []uuid.UUID {
	entries := make([]domain.Entry, len(drafts))
	for i := range drafts {
		entries[i].AccountID = drafts[i].AccountID
	}
	return domain.DistinctSortedAccountIDs(entries)
}

// wrapCtxErr surfaces context deadline expiry as the DEADLINE_EXCEEDED kind;
// other errors pass through wrapped.
func wrapCtxErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrDeadlineExceeded(op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"

	maxSerializationRetries = 3
)

// isSerializationFailure reports whether the store aborted the transaction
// with a serialization conflict or a deadlock. An aborted transaction wrote
// nothing, so re-running the whole operation is safe.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}

// retrySerializable runs fn up to maxSerializationRetries times, re-running
// it when the store aborts with a serialization conflict. Each run opens a
// fresh database transaction, so concurrent-writer aborts resolve without
// surfacing to the caller unless the conflict persists.
func retrySerializable[T any](logger *slog.Logger, op string, fn func() (T, error)) (T, error) {
	var result T
	var err error
	for attempt := 1; ; attempt++ {
		result, err = fn()
		if err == nil || !isSerializationFailure(err) || attempt == maxSerializationRetries {
			return result, err
		}
		logger.Warn("store transaction aborted by serialization conflict, retrying",
			"op", op, "attempt", attempt)
	}
}
