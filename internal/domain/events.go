package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outbox event type names. These select the bus topic at relay time.
const (
	EventTransactionPosted   = "TRANSACTION_POSTED"
	EventTransactionReversed = "TRANSACTION_REVERSED"
)

// TransactionPostedEvent is the bus payload emitted when a transaction is
// posted. Amounts are decimal strings to keep the wire format exact.
type TransactionPostedEvent struct {
	TransactionID uuid.UUID         `json:"transactionId"`
	ExternalID    string            `json:"externalId"`
	EventType     EventType         `json:"eventType"`
	Entries       []PostedEntryInfo `json:"entries"`
	Timestamp     time.Time         `json:"timestamp"`
}

// PostedEntryInfo describes one entry inside a TransactionPostedEvent.
type PostedEntryInfo struct {
	AccountID uuid.UUID `json:"accountId"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Side      EntrySide `json:"side"`
}

// TransactionReversedEvent is the bus payload emitted when a transaction is
// reversed.
type TransactionReversedEvent struct {
	TransactionID         uuid.UUID `json:"transactionId"`
	OriginalTransactionID uuid.UUID `json:"originalTransactionId"`
	Timestamp             time.Time `json:"timestamp"`
}

// NewTransactionPostedEvent builds the posted payload from a transaction.
func NewTransactionPostedEvent(t *Transaction, now time.Time) TransactionPostedEvent {
	entries := make([]PostedEntryInfo, 0, len(t.Entries))
	for _, e := range t.Entries {
		entries = append(entries, PostedEntryInfo{
			AccountID: e.AccountID,
			Amount:    e.Amount.Amount().String(),
			Currency:  e.Amount.Currency(),
			Side:      e.Side,
		})
	}
	return TransactionPostedEvent{
		TransactionID: t.ID,
		ExternalID:    t.ExternalID,
		EventType:     t.EventType,
		Entries:       entries,
		Timestamp:     now,
	}
}

// EncodeEventPayload serializes an event payload for outbox storage.
func EncodeEventPayload(event any) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event payload: %w", err)
	}
	return payload, nil
}
