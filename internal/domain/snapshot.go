package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/samuelbaldasso/banking-core/pkg/money"
)

// BalanceSnapshot is an immutable cached balance for an account at a cutoff
// instant. Snapshots accelerate balance reconstruction: queries seed from the
// latest usable snapshot and replay only entries after its cutoff.
type BalanceSnapshot struct {
	ID           uuid.UUID   `json:"id"`
	AccountID    uuid.UUID   `json:"accountId"`
	Balance      money.Money `json:"-"`
	SnapshotTime time.Time   `json:"snapshotTime"`
	LastEntryID  *uuid.UUID  `json:"lastEntryId,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// NewBalanceSnapshot validates and builds a snapshot. The cutoff must not be
// in the future relative to now.
func NewBalanceSnapshot(id, accountID uuid.UUID, balance money.Money, snapshotTime, now time.Time, lastEntryID *uuid.UUID) (*BalanceSnapshot, error) {
	if snapshotTime.After(now) {
		return nil, ErrInvalidArg("snapshot time cannot be in the future")
	}
	return &BalanceSnapshot{
		ID:           id,
		AccountID:    accountID,
		Balance:      balance,
		SnapshotTime: snapshotTime,
		LastEntryID:  lastEntryID,
		CreatedAt:    now,
	}, nil
}
