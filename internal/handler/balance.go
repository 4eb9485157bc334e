package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/samuelbaldasso/banking-core/internal/domain"
	"github.com/samuelbaldasso/banking-core/internal/ledger"
)

// BalanceHandler handles balance query endpoints.
type BalanceHandler struct {
	engine *ledger.Engine
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(engine *ledger.Engine) *BalanceHandler {
	return &BalanceHandler{engine: engine}
}

type balanceResponse struct {
	AccountID uuid.UUID `json:"accountId"`
	Balance   string    `json:"balance"`
	Currency  string    `json:"currency"`
	AsOf      time.Time `json:"asOf"`
}

// Get handles GET /api/v1/balances/{accountId}.
func (h *BalanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "accountId")
	if err != nil {
		RespondError(w, err)
		return
	}

	balance, err := h.engine.GetBalance(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	respondBalance(w, balance)
}

// GetAsOf handles GET /api/v1/balances/{accountId}/as-of?time=RFC3339.
func (h *BalanceHandler) GetAsOf(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "accountId")
	if err != nil {
		RespondError(w, err)
		return
	}

	raw := r.URL.Query().Get("time")
	if raw == "" {
		RespondError(w, domain.ErrInvalidArg("time query parameter is required"))
		return
	}
	asOf, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		RespondError(w, domain.ErrInvalidArg("invalid time, expected RFC3339: "+raw))
		return
	}

	balance, err := h.engine.GetBalanceAsOf(r.Context(), id, asOf)
	if err != nil {
		RespondError(w, err)
		return
	}
	respondBalance(w, balance)
}

func respondBalance(w http.ResponseWriter, balance *ledger.Balance) {
	RespondJSON(w, http.StatusOK, balanceResponse{
		AccountID: balance.AccountID,
		Balance:   balance.Amount.Amount().String(),
		Currency:  balance.Amount.Currency(),
		AsOf:      balance.AsOf,
	})
}
