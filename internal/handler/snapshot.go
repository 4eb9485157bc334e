package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/samuelbaldasso/banking-core/internal/domain"
	"github.com/samuelbaldasso/banking-core/internal/ledger"
)

// SnapshotHandler exposes the manual snapshot trigger.
type SnapshotHandler struct {
	maker *ledger.SnapshotMaker
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(maker *ledger.SnapshotMaker) *SnapshotHandler {
	return &SnapshotHandler{maker: maker}
}

type createSnapshotsRequest struct {
	AccountID *uuid.UUID `json:"accountId,omitempty"`
	Cutoff    time.Time  `json:"cutoff"`
}

// Create handles POST /api/v1/snapshots: runs one snapshot pass at the given
// cutoff, for all active accounts or for the single account in the body.
func (h *SnapshotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSnapshotsRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	if req.Cutoff.IsZero() {
		RespondError(w, domain.ErrInvalidArg("cutoff is required"))
		return
	}

	var (
		summary *ledger.SnapshotSummary
		err     error
	)
	if req.AccountID != nil {
		summary, err = h.maker.CreateSnapshotForAccountID(r.Context(), *req.AccountID, req.Cutoff)
	} else {
		summary, err = h.maker.CreateSnapshots(r.Context(), req.Cutoff)
	}
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, summary)
}
