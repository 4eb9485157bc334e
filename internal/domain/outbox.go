package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of an outbox record.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "PENDING"
	OutboxProcessed OutboxStatus = "PROCESSED"
	OutboxFailed    OutboxStatus = "FAILED"
)

// OutboxRecord is a durable event awaiting publication to the message bus.
// It is inserted in the same database transaction as the ledger rows it
// describes, so the record exists iff the ledger data exists.
type OutboxRecord struct {
	ID          uuid.UUID
	AggregateID uuid.UUID
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
	Attempts    int
	LastError   *string
	Status      OutboxStatus
}

// NewOutboxRecord builds a PENDING record for the given aggregate and event.
func NewOutboxRecord(id, aggregateID uuid.UUID, eventType string, payload []byte, now time.Time) *OutboxRecord {
	return &OutboxRecord{
		ID:          id,
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   now,
		Status:      OutboxPending,
	}
}

// MarkProcessed transitions the record to PROCESSED. Repeated success marks
// are idempotent: the first processed time is kept.
func (r *OutboxRecord) MarkProcessed(now time.Time) {
	if r.Status == OutboxProcessed {
		return
	}
	r.Status = OutboxProcessed
	if r.ProcessedAt == nil {
		r.ProcessedAt = &now
	}
}

// RecordFailure increments the attempt counter and stores the error text.
// The record stays PENDING so the relay retries it on the next poll.
func (r *OutboxRecord) RecordFailure(errText string) {
	r.Attempts++
	r.LastError = &errText
}

// MarkFailed transitions the record to the terminal FAILED state. FAILED
// records are never retried; they require operator action.
func (r *OutboxRecord) MarkFailed() {
	r.Status = OutboxFailed
}
