package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/samuelbaldasso/banking-core/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) Problem {
	t.Helper()
	var p Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return p
}

// --- RespondError Tests ---

func TestRespondError(t *testing.T) {
	t.Run("maps domain error kinds to their status", func(t *testing.T) {
		cases := []struct {
			err    error
			status int
			kind   string
		}{
			{domain.ErrInvalidArg("bad input"), http.StatusBadRequest, "INVALID_ARGUMENT"},
			{domain.ErrAccountNotFound("abc"), http.StatusNotFound, "ACCOUNT_NOT_FOUND"},
			{domain.ErrTransactionNotFound("abc"), http.StatusNotFound, "TRANSACTION_NOT_FOUND"},
			{domain.ErrDuplicateExternalID("ext-1"), http.StatusConflict, "DUPLICATE_EXTERNAL_ID"},
			{domain.ErrAccountNotActive("abc", domain.AccountBlocked), http.StatusConflict, "ACCOUNT_NOT_ACTIVE"},
			{domain.ErrNotReversible("abc", domain.TxReversed), http.StatusConflict, "NOT_REVERSIBLE"},
			{domain.ErrUnbalanced("off by 1"), http.StatusBadRequest, "UNBALANCED"},
			{domain.ErrTooFewEntries(1), http.StatusBadRequest, "TOO_FEW_ENTRIES"},
			{domain.ErrCurrencyMismatch("USD vs BRL"), http.StatusBadRequest, "CURRENCY_MISMATCH"},
			{domain.ErrInvalidStateTransition("CLOSED -> ACTIVE"), http.StatusConflict, "INVALID_ACCOUNT_STATE_TRANSITION"},
			{domain.ErrDeadlineExceeded("balance computation"), http.StatusGatewayTimeout, "DEADLINE_EXCEEDED"},
			{domain.ErrInternal("boom", nil), http.StatusInternalServerError, "INTERNAL"},
		}
		for _, tc := range cases {
			t.Run(tc.kind, func(t *testing.T) {
				rec := httptest.NewRecorder()
				RespondError(rec, tc.err)

				assert.Equal(t, tc.status, rec.Code)
				assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
				p := decodeProblem(t, rec)
				assert.Equal(t, tc.kind, p.Kind)
				assert.Equal(t, tc.status, p.Status)
				assert.Equal(t, http.StatusText(tc.status), p.Title)
			})
		}
	})

	t.Run("wrapped domain error still maps", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RespondError(rec, fmt.Errorf("posting: %w", domain.ErrUnbalanced("debits 10, credits 9")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		p := decodeProblem(t, rec)
		assert.Equal(t, "UNBALANCED", p.Kind)
		assert.Contains(t, p.Detail, "debits 10")
	})

	t.Run("unknown error is an opaque 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RespondError(rec, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		p := decodeProblem(t, rec)
		assert.Equal(t, "INTERNAL", p.Kind)
		assert.NotContains(t, p.Detail, "connection refused")
	})
}

// --- RespondJSON Tests ---

func TestRespondJSON(t *testing.T) {
	t.Run("encodes payload with status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RespondJSON(rec, http.StatusCreated, map[string]string{"id": "42"})

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"id":"42"}`, rec.Body.String())
	})

	t.Run("nil payload writes no body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RespondJSON(rec, http.StatusNoContent, nil)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Zero(t, rec.Body.Len())
	})
}

// --- DecodeJSON Tests ---

func TestDecodeJSON(t *testing.T) {
	t.Run("decodes a valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"currency":"BRL"}`))
		var dst struct {
			Currency string `json:"currency"`
		}
		require.NoError(t, DecodeJSON(req, &dst))
		assert.Equal(t, "BRL", dst.Currency)
	})

	t.Run("malformed body becomes INVALID_ARGUMENT", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
		var dst map[string]interface{}
		err := DecodeJSON(req, &dst)

		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "INVALID_ARGUMENT", appErr.Kind)
		assert.Equal(t, http.StatusBadRequest, appErr.Status)
	})
}
