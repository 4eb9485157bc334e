package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/samuelbaldasso/banking-core/internal/domain"
	"github.com/samuelbaldasso/banking-core/internal/ledger"
	"github.com/shopspring/decimal"
)

// TransactionHandler handles posting, lookup and reversal endpoints.
type TransactionHandler struct {
	engine *ledger.Engine
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(engine *ledger.Engine) *TransactionHandler {
	return &TransactionHandler{engine: engine}
}

type entryRequest struct {
	AccountID uuid.UUID        `json:"accountId"`
	Amount    string           `json:"amount"`
	Currency  string           `json:"currency"`
	Side      domain.EntrySide `json:"side"`
}

type postTransactionRequest struct {
	ExternalID string           `json:"externalId"`
	EventType  domain.EventType `json:"eventType"`
	Entries    []entryRequest   `json:"entries"`
}

type entryResponse struct {
	ID         uuid.UUID        `json:"id"`
	AccountID  uuid.UUID        `json:"accountId"`
	Amount     string           `json:"amount"`
	Currency   string           `json:"currency"`
	Side       domain.EntrySide `json:"side"`
	EventTime  time.Time        `json:"eventTime"`
	RecordedAt time.Time        `json:"recordedAt"`
}

type transactionResponse struct {
	ID                    uuid.UUID                `json:"id"`
	ExternalID            string                   `json:"externalId"`
	EventType             domain.EventType         `json:"eventType"`
	Status                domain.TransactionStatus `json:"status"`
	CreatedAt             time.Time                `json:"createdAt"`
	ReversalTransactionID *uuid.UUID               `json:"reversalTransactionId,omitempty"`
	Entries               []entryResponse          `json:"entries"`
}

func toTransactionResponse(t *domain.Transaction) transactionResponse {
	entries := make([]entryResponse, 0, len(t.Entries))
	for i := range t.Entries {
		e := &t.Entries[i]
		entries = append(entries, entryResponse{
			ID:         e.ID,
			AccountID:  e.AccountID,
			Amount:     e.Amount.Amount().String(),
			Currency:   e.Amount.Currency(),
			Side:       e.Side,
			EventTime:  e.EventTime,
			RecordedAt: e.RecordedAt,
		})
	}
	return transactionResponse{
		ID:                    t.ID,
		ExternalID:            t.ExternalID,
		EventType:             t.EventType,
		Status:                t.Status,
		CreatedAt:             t.CreatedAt,
		ReversalTransactionID: t.ReversalTransactionID,
		Entries:               entries,
	}
}

// Post handles POST /api/v1/transactions.
func (h *TransactionHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req postTransactionRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	cmd := ledger.PostCommand{
		ExternalID: req.ExternalID,
		EventType:  req.EventType,
		Entries:    make([]ledger.EntryDraft, 0, len(req.Entries)),
	}
	for i := range req.Entries {
		e := &req.Entries[i]
		amount, err := decimal.NewFromString(e.Amount)
		if err != nil {
			RespondError(w, domain.ErrInvalidArg("invalid entry amount: "+e.Amount))
			return
		}
		cmd.Entries = append(cmd.Entries, ledger.EntryDraft{
			AccountID: e.AccountID,
			Amount:    amount,
			Currency:  e.Currency,
			Side:      e.Side,
		})
	}

	txn, err := h.engine.Post(r.Context(), cmd)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, toTransactionResponse(txn))
}

// Get handles GET /api/v1/transactions/{id}.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}

	txn, err := h.engine.GetTransaction(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toTransactionResponse(txn))
}

type reverseRequest struct {
	ReversalExternalID string `json:"reversalExternalId"`
}

// Reverse handles POST /api/v1/transactions/{id}/reverse.
func (h *TransactionHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}

	var req reverseRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	reversal, err := h.engine.Reverse(r.Context(), id, req.ReversalExternalID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, toTransactionResponse(reversal))
}
