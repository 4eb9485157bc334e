package domain

import (
	"bytes"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samuelbaldasso/banking-core/pkg/money"
)

// EventType is the business category of a transaction.
type EventType string

const (
	EventTransfer   EventType = "TRANSFER"
	EventPix        EventType = "PIX"
	EventTed        EventType = "TED"
	EventDoc        EventType = "DOC"
	EventFee        EventType = "FEE"
	EventInterest   EventType = "INTEREST"
	EventReversal   EventType = "REVERSAL"
	EventDeposit    EventType = "DEPOSIT"
	EventWithdrawal EventType = "WITHDRAWAL"
	EventPayment    EventType = "PAYMENT"
	EventRefund     EventType = "REFUND"
	EventAdjustment EventType = "ADJUSTMENT"
)

// ValidEventType reports whether t is a known business event category.
func ValidEventType(t EventType) bool {
	switch t {
	case EventTransfer, EventPix, EventTed, EventDoc, EventFee, EventInterest,
		EventReversal, EventDeposit, EventWithdrawal, EventPayment,
		EventRefund, EventAdjustment:
		return true
	}
	return false
}

// TransactionStatus is the lifecycle state of a ledger transaction.
type TransactionStatus string

const (
	TxPending  TransactionStatus = "PENDING"
	TxPosted   TransactionStatus = "POSTED"
	TxReversed TransactionStatus = "REVERSED"
	TxFailed   TransactionStatus = "FAILED"
)

// EntrySide is the directional side of a ledger entry.
type EntrySide string

const (
	Debit  EntrySide = "DEBIT"
	Credit EntrySide = "CREDIT"
)

// Entry is a single immutable debit or credit row. Entries are append-only
// and never updated or deleted.
type Entry struct {
	ID            uuid.UUID   `json:"id"`
	TransactionID uuid.UUID   `json:"transactionId"`
	AccountID     uuid.UUID   `json:"accountId"`
	Amount        money.Money `json:"-"`
	Side          EntrySide   `json:"side"`
	EventType     EventType   `json:"eventType"`
	EventTime     time.Time   `json:"eventTime"`
	RecordedAt    time.Time   `json:"recordedAt"`
}

// IsDebit reports whether the entry is on the DEBIT side.
func (e *Entry) IsDebit() bool { return e.Side == Debit }

// Transaction is the aggregate root: an atomic group of at least two
// balanced entries identified by a caller-chosen external id.
type Transaction struct {
	ID                    uuid.UUID         `json:"id"`
	ExternalID            string            `json:"externalId"`
	EventType             EventType         `json:"eventType"`
	Status                TransactionStatus `json:"status"`
	CreatedAt             time.Time         `json:"createdAt"`
	ReversalTransactionID *uuid.UUID        `json:"reversalTransactionId,omitempty"`
	Entries               []Entry           `json:"entries"`
}

// Post transitions PENDING -> POSTED.
func (t *Transaction) Post() error {
	if t.Status != TxPending {
		return ErrInvalidArg("only PENDING transactions can be posted, status is " + string(t.Status))
	}
	t.Status = TxPosted
	return nil
}

// MarkReversed transitions POSTED -> REVERSED and records the id of the
// compensating transaction.
func (t *Transaction) MarkReversed(reversalID uuid.UUID) error {
	if t.Status != TxPosted {
		return ErrNotReversible(t.ID.String(), t.Status)
	}
	t.Status = TxReversed
	t.ReversalTransactionID = &reversalID
	return nil
}

// AccountIDs returns the distinct account ids touched by the transaction,
// sorted ascending. This is the lock acquisition order for posting.
func (t *Transaction) AccountIDs() []uuid.UUID {
	return DistinctSortedAccountIDs(t.Entries)
}

// DistinctSortedAccountIDs extracts the distinct account ids from entries and
// sorts them ascending by their byte representation. Locking accounts in this
// order prevents deadlock between concurrent writers.
func DistinctSortedAccountIDs(entries []Entry) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(entries))
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.AccountID]; ok {
			continue
		}
		seen[e.AccountID] = struct{}{}
		ids = append(ids, e.AccountID)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return ids
}
