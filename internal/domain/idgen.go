package domain

import "github.com/google/uuid"

// IDGenerator produces collision-resistant unique identifiers. Injectable so
// tests can use deterministic sequences.
type IDGenerator interface {
	NewID() uuid.UUID
}

// UUIDGenerator is the production IDGenerator backed by random UUIDv4.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() uuid.UUID { return uuid.New() }
