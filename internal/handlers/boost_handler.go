package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tapmine/backend/internal/boosts"
	"github.com/tapmine/backend/internal/cache"
	"github.com/tapmine/backend/internal/middleware"
	"github.com/tapmine/backend/internal/models"
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// BoostPurchaser performs the settle-then-purchase write path.
type BoostPurchaser interface {
	Purchase(ctx context.Context, tx pgx.Tx, accountID, boostID uuid.UUID, now time.Time) (*models.BoostInstance, *models.Account, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// BoostRepoForHandler is the read side of the boost repository.
type BoostRepoForHandler interface {
	ListDefinitions(ctx context.Context) ([]*models.BoostDefinition, error)
	ActiveForAccount(ctx context.Context, accountID uuid.UUID, at time.Time) ([]*models.BoostInstance, error)
	ListForAccount(ctx context.Context, accountID uuid.UUID) ([]*models.BoostInstance, error)
}

// BoostHandler serves the boost catalog and purchase endpoints.
type BoostHandler struct {
	Pool    TxBeginner
	Boosts  BoostPurchaser
	Repo    BoostRepoForHandler
	Catalog *cache.CatalogCache
	Logger  *slog.Logger
}

type purchaseBoostRequest struct {
	BoostID string `json:"boost_id"`
}

type purchaseBoostResponse struct {
	Boost   *models.BoostInstance `json:"boost"`
	Account *models.Account       `json:"account"`
}

// ListCatalog handles GET /api/v1/boosts.
func (h *BoostHandler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	var defs []*models.BoostDefinition
	if h.Catalog.Get(r.Context(), "boosts", &defs) {
		writeJSON(w, http.StatusOK, defs)
		return
	}
	defs, err := h.Repo.ListDefinitions(r.Context())
	if err != nil {
		h.Logger.Error("list boost catalog", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if defs == nil {
		defs = []*models.BoostDefinition{}
	}
	h.Catalog.Set(r.Context(), "boosts", defs)
	writeJSON(w, http.StatusOK, defs)
}

// Purchase handles POST /api/v1/account/boosts. The account is settled inside
// the same transaction before the debit, so the new multiplier only applies
// from the purchase instant forward.
func (h *BoostHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req purchaseBoostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	boostID, err := uuid.Parse(req.BoostID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid boost_id")
		return
	}

	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin tx", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer tx.Rollback(r.Context())

	inst, updated, err := h.Boosts.Purchase(r.Context(), tx, acc.ID, boostID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, boosts.ErrInsufficientPoints):
			writeError(w, http.StatusPaymentRequired, "insufficient points")
		case errors.Is(err, boosts.ErrUnknownBoost):
			writeError(w, http.StatusNotFound, "unknown boost")
		default:
			h.Logger.Error("purchase boost", "account_id", acc.ID, "boost_id", boostID, "error", err)
			writeError(w, http.StatusInternalServerError, "purchase failed")
		}
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		h.Logger.Error("commit purchase tx", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, purchaseBoostResponse{Boost: inst, Account: updated})
}

// ListMine handles GET /api/v1/account/boosts. ?active=true narrows to
// instances currently contributing to the multiplier.
func (h *BoostHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var (
		list []*models.BoostInstance
		err  error
	)
	if r.URL.Query().Get("active") == "true" {
		list, err = h.Repo.ActiveForAccount(r.Context(), acc.ID, time.Now())
	} else {
		list, err = h.Repo.ListForAccount(r.Context(), acc.ID)
	}
	if err != nil {
		h.Logger.Error("list boosts", "account_id", acc.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []*models.BoostInstance{}
	}
	writeJSON(w, http.StatusOK, list)
}

// SweepExpired handles POST /api/v1/maintenance/sweep-expired-boosts, the
// manual counterpart of the periodic sweep job.
func (h *BoostHandler) SweepExpired(w http.ResponseWriter, r *http.Request) {
	count, err := h.Boosts.SweepExpired(r.Context(), time.Now())
	if err != nil {
		h.Logger.Error("sweep expired boosts", "error", err)
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deactivated": count})
}
