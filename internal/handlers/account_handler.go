package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tapmine/backend/internal/accounts"
	"github.com/tapmine/backend/internal/middleware"
	"github.com/tapmine/backend/internal/models"
)

// AccountViewer builds the settled account view.
type AccountViewer interface {
	Get(ctx context.Context, accountID uuid.UUID, now time.Time) (*accounts.View, error)
}

// PointLedgerReader lists an account's point ledger entries.
type PointLedgerReader interface {
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.PointEntry, error)
}

// ReferralReader lists an account's referrals.
type ReferralReader interface {
	ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*models.Referral, error)
}

// AccountHandler serves the authenticated /account endpoints.
type AccountHandler struct {
	Accounts  AccountViewer
	Ledger    PointLedgerReader
	Referrals ReferralReader
	Logger    *slog.Logger
}

// GetMe handles GET /api/v1/account/me. Reading settles pending accrual
// before the view is returned.
func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	view, err := h.Accounts.Get(r.Context(), acc.ID, time.Now())
	if err != nil {
		h.Logger.Error("build account view", "account_id", acc.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListLedger handles GET /api/v1/account/ledger.
func (h *AccountHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	entries, err := h.Ledger.ListByAccountID(r.Context(), acc.ID)
	if err != nil {
		h.Logger.Error("list point ledger", "account_id", acc.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []*models.PointEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListReferrals handles GET /api/v1/account/referrals.
func (h *AccountHandler) ListReferrals(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	refs, err := h.Referrals.ListByReferrer(r.Context(), acc.ID)
	if err != nil {
		h.Logger.Error("list referrals", "account_id", acc.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if refs == nil {
		refs = []*models.Referral{}
	}
	writeJSON(w, http.StatusOK, refs)
}
