package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samuelbaldasso/banking-core/internal/domain"
)

// Reverse creates a compensating transaction for a previously posted one:
// every original entry is mirrored with its side flipped, the mirror set is
// posted as a REVERSAL transaction, and the original transitions to
// REVERSED with a link to the new transaction.
//
// reversalExternalID is the caller's idempotency key for the reversal; the
// same key always returns the same reversal transaction.
func (e *Engine) Reverse(ctx context.Context, originalID uuid.UUID, reversalExternalID string) (*domain.Transaction, error) {
	if reversalExternalID == "" {
		return nil, domain.ErrInvalidArg("reversal external id is required")
	}

	return retrySerializable(e.logger, "reverse", func() (*domain.Transaction, error) {
		return e.reverseOnce(ctx, originalID, reversalExternalID)
	})
}

func (e *Engine) reverseOnce(ctx context.Context, originalID uuid.UUID, reversalExternalID string) (*domain.Transaction, error) {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return nil, wrapCtxErr("reverse", fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback(ctx)

	// Idempotency check on the reversal's external id.
	existing, err := e.txns.FindByExternalID(ctx, tx, reversalExternalID)
	if err != nil {
		return nil, wrapCtxErr("reverse", err)
	}
	if existing != nil {
		if err := tx.Commit(ctx); err != nil {
			return nil, wrapCtxErr("reverse", fmt.Errorf("commit read-only: %w", err))
		}
		e.logger.Info("reversal already exists, returning existing",
			"reversal_external_id", reversalExternalID, "transaction_id", existing.ID)
		return existing, nil
	}

	original, err := e.txns.FindByID(ctx, tx, originalID)
	if err != nil {
		return nil, wrapCtxErr("reverse", err)
	}
	if original == nil {
		return nil, domain.ErrTransactionNotFound(originalID.String())
	}
	if original.Status != domain.TxPosted {
		return nil, domain.ErrNotReversible(originalID.String(), original.Status)
	}

	// Lock the affected accounts in ascending id order and re-check ACTIVE.
	if _, err := e.lockAccounts(ctx, tx, original.AccountIDs()); err != nil {
		return nil, err
	}

	// Mirror every entry with a flipped side.
	now := e.clock.Now()
	reversalID := e.ids.NewID()
	mirrored := make([]domain.Entry, 0, len(original.Entries))
	for i := range original.Entries {
		orig := &original.Entries[i]
		side := domain.Debit
		if orig.IsDebit() {
			side = domain.Credit
		}
		mirrored = append(mirrored, domain.Entry{
			ID:            e.ids.NewID(),
			TransactionID: reversalID,
			AccountID:     orig.AccountID,
			Amount:        orig.Amount,
			Side:          side,
			EventType:     domain.EventReversal,
			EventTime:     now,
			RecordedAt:    now,
		})
	}

	// Balanced by construction if the original was; validate defensively.
	if err := ValidateEntries(mirrored); err != nil {
		return nil, err
	}

	reversal := &domain.Transaction{
		ID:         reversalID,
		ExternalID: reversalExternalID,
		EventType:  domain.EventReversal,
		Status:     domain.TxPending,
		CreatedAt:  now,
		Entries:    mirrored,
	}
	if err := reversal.Post(); err != nil {
		return nil, err
	}

	if err := e.txns.Insert(ctx, tx, reversal); err != nil {
		return nil, wrapCtxErr("reverse", err)
	}

	if err := original.MarkReversed(reversalID); err != nil {
		return nil, err
	}
	if err := e.txns.UpdateStatus(ctx, tx, original.ID, domain.TxReversed, &reversalID); err != nil {
		return nil, wrapCtxErr("reverse", err)
	}

	if err := e.writeOutbox(ctx, tx, reversalID, domain.EventTransactionReversed,
		domain.TransactionReversedEvent{
			TransactionID:         reversalID,
			OriginalTransactionID: original.ID,
			Timestamp:             now,
		}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapCtxErr("reverse", fmt.Errorf("commit: %w", err))
	}

	e.logger.Info("reversed transaction",
		"original_transaction_id", original.ID, "reversal_transaction_id", reversalID)
	return reversal, nil
}
