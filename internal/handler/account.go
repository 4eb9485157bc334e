package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samuelbaldasso/banking-core/internal/domain"
	"github.com/samuelbaldasso/banking-core/internal/ledger"
)

// AccountHandler handles account administration endpoints.
type AccountHandler struct {
	engine *ledger.Engine
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(engine *ledger.Engine) *AccountHandler {
	return &AccountHandler{engine: engine}
}

type createAccountRequest struct {
	AccountType domain.AccountType `json:"accountType"`
	Currency    string             `json:"currency"`
}

// Create handles POST /api/v1/accounts.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	account, err := h.engine.CreateAccount(r.Context(), req.AccountType, req.Currency)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, account)
}

// Get handles GET /api/v1/accounts/{id}.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}

	account, err := h.engine.GetAccount(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, account)
}

type accountListResponse struct {
	Accounts []domain.Account `json:"accounts"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// List handles GET /api/v1/accounts with limit/offset pagination.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	accounts, err := h.engine.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		RespondError(w, err)
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	RespondJSON(w, http.StatusOK, accountListResponse{
		Accounts: accounts,
		Limit:    limit,
		Offset:   offset,
	})
}

// Block handles POST /api/v1/accounts/{id}/block.
func (h *AccountHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.engine.BlockAccount)
}

// Unblock handles POST /api/v1/accounts/{id}/unblock.
func (h *AccountHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.engine.UnblockAccount)
}

// Close handles POST /api/v1/accounts/{id}/close.
func (h *AccountHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.engine.CloseAccount)
}

func (h *AccountHandler) changeStatus(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID) (*domain.Account, error)) {
	id, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}

	account, err := op(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, account)
}

// pathUUID parses a UUID chi URL parameter.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidArg("invalid " + name + ": " + raw)
	}
	return id, nil
}

// queryInt parses an integer query parameter with a default.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
