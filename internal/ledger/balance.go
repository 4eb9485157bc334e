package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samuelbaldasso/banking-core/internal/domain"
	"github.com/samuelbaldasso/banking-core/internal/repository"
	"github.com/samuelbaldasso/banking-core/pkg/money"
)

// Balance is the result of a balance query.
type Balance struct {
	AccountID uuid.UUID
	Amount    money.Money
	AsOf      time.Time
}

// GetBalance computes the account's current balance, seeded from the latest
// snapshot when one exists.
func (e *Engine) GetBalance(ctx context.Context, accountID uuid.UUID) (*Balance, error) {
	return e.balanceAsOf(ctx, accountID, e.clock.Now())
}

// GetBalanceAsOf computes the account's balance at the given cutoff, seeded
// from the latest snapshot at or before the cutoff when one exists.
func (e *Engine) GetBalanceAsOf(ctx context.Context, accountID uuid.UUID, asOf time.Time) (*Balance, error) {
	return e.balanceAsOf(ctx, accountID, asOf)
}

func (e *Engine) balanceAsOf(ctx context.Context, accountID uuid.UUID, asOf time.Time) (*Balance, error) {
	account, err := e.accounts.FindByID(ctx, e.db, accountID)
	if err != nil {
		return nil, wrapCtxErr("get balance", err)
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound(accountID.String())
	}

	amount, _, err := computeBalance(ctx, e.db, e.txns, e.snapshots, account, asOf)
	if err != nil {
		return nil, wrapCtxErr("get balance", err)
	}
	return &Balance{AccountID: accountID, Amount: amount, AsOf: asOf}, nil
}

// computeBalance reconstructs the balance of an account as of asOf.
//
// It seeds from the latest snapshot with snapshot_time <= asOf when one
// exists and replays only entries strictly after the snapshot time; with no
// snapshot it replays the full entry history up to asOf. The strict
// "> snapshot time" bound keeps recomputation idempotent across identical
// snapshot cutoffs. Returns the balance and the id of the last entry
// applied, if any.
func computeBalance(
	ctx context.Context,
	db repository.DBTX,
	txns repository.TransactionRepository,
	snapshots repository.SnapshotRepository,
	account *domain.Account,
	asOf time.Time,
) (money.Money, *uuid.UUID, error) {
	balance, err := money.Zero(account.Currency)
	if err != nil {
		return money.Money{}, nil, err
	}

	var after *time.Time
	snapshot, err := snapshots.FindLatest(ctx, db, account.ID, &asOf)
	if err != nil {
		return money.Money{}, nil, err
	}
	if snapshot != nil {
		balance = snapshot.Balance
		after = &snapshot.SnapshotTime
	}

	entries, err := txns.FindPostedEntries(ctx, db, account.ID, after, &asOf)
	if err != nil {
		return money.Money{}, nil, err
	}

	var lastEntryID *uuid.UUID
	for i := range entries {
		balance, err = applyEntry(balance, &entries[i], account.Type)
		if err != nil {
			return money.Money{}, nil, fmt.Errorf("apply entry %s: %w", entries[i].ID, err)
		}
		lastEntryID = &entries[i].ID
	}
	return balance, lastEntryID, nil
}

// applyEntry applies one entry to a running balance. Whether a side
// increases or decreases the balance depends on the account classification:
// ASSET and EXPENSE grow on debits, LIABILITY, EQUITY and REVENUE grow on
// credits.
func applyEntry(balance money.Money, entry *domain.Entry, accountType domain.AccountType) (money.Money, error) {
	if accountType.DebitIncreases() == entry.IsDebit() {
		return balance.Add(entry.Amount)
	}
	return balance.Subtract(entry.Amount)
}
