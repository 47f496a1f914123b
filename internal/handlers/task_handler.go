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

	"github.com/tapmine/backend/internal/cache"
	"github.com/tapmine/backend/internal/middleware"
	"github.com/tapmine/backend/internal/models"
	"github.com/tapmine/backend/internal/tasks"
)

// ProgressTracker is the task progress state machine.
type ProgressTracker interface {
	AdvanceProgress(ctx context.Context, tx pgx.Tx, accountID, taskID uuid.UUID, amount int, now time.Time) (*models.TaskProgress, int, error)
	Complete(ctx context.Context, tx pgx.Tx, accountID, taskID uuid.UUID, now time.Time) (*models.TaskProgress, int, error)
}

// TaskRepoForHandler is the read side of the task repository.
type TaskRepoForHandler interface {
	ListDefinitions(ctx context.Context, kind string) ([]*models.TaskDefinition, error)
	ListProgressForAccount(ctx context.Context, accountID uuid.UUID) ([]*models.TaskProgress, error)
}

// TaskHandler serves the task catalog and progress endpoints.
type TaskHandler struct {
	Pool    TxBeginner
	Tracker ProgressTracker
	Repo    TaskRepoForHandler
	Catalog *cache.CatalogCache
	Logger  *slog.Logger
}

type taskProgressRequest struct {
	Progress int `json:"progress"`
}

type taskProgressResponse struct {
	Progress      *models.TaskProgress `json:"progress"`
	PointsAwarded int                  `json:"points_awarded"`
}

// ListCatalog handles GET /api/v1/tasks with an optional ?type= filter.
func (h *TaskHandler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("type")
	switch kind {
	case "", models.TaskKindDaily, models.TaskKindWeekly, models.TaskKindSpecial:
	default:
		writeError(w, http.StatusBadRequest, "invalid task type")
		return
	}

	cacheKey := "tasks:" + kind
	var defs []*models.TaskDefinition
	if h.Catalog.Get(r.Context(), cacheKey, &defs) {
		writeJSON(w, http.StatusOK, defs)
		return
	}
	defs, err := h.Repo.ListDefinitions(r.Context(), kind)
	if err != nil {
		h.Logger.Error("list task catalog", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if defs == nil {
		defs = []*models.TaskDefinition{}
	}
	h.Catalog.Set(r.Context(), cacheKey, defs)
	writeJSON(w, http.StatusOK, defs)
}

// ListMine handles GET /api/v1/account/tasks.
func (h *TaskHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.Repo.ListProgressForAccount(r.Context(), acc.ID)
	if err != nil {
		h.Logger.Error("list task progress", "account_id", acc.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []*models.TaskProgress{}
	}
	writeJSON(w, http.StatusOK, list)
}

// AdvanceProgress handles POST /api/v1/account/tasks/{taskID}/progress.
func (h *TaskHandler) AdvanceProgress(w http.ResponseWriter, r *http.Request) {
	h.mutateProgress(w, r, func(ctx context.Context, tx pgx.Tx, accountID, taskID uuid.UUID, now time.Time) (*models.TaskProgress, int, error) {
		var req taskProgressRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, 0, errBadBody
		}
		return h.Tracker.AdvanceProgress(ctx, tx, accountID, taskID, req.Progress, now)
	})
}

// Complete handles POST /api/v1/account/tasks/{taskID}/complete.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.mutateProgress(w, r, func(ctx context.Context, tx pgx.Tx, accountID, taskID uuid.UUID, now time.Time) (*models.TaskProgress, int, error) {
		return h.Tracker.Complete(ctx, tx, accountID, taskID, now)
	})
}

var errBadBody = errors.New("invalid JSON body")

func (h *TaskHandler) mutateProgress(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, tx pgx.Tx, accountID, taskID uuid.UUID, now time.Time) (*models.TaskProgress, int, error)) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	taskID, err := uuid.Parse(r.PathValue("taskID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin tx", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer tx.Rollback(r.Context())

	progress, awarded, err := fn(r.Context(), tx, acc.ID, taskID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, errBadBody):
			writeError(w, http.StatusBadRequest, "invalid JSON")
		case errors.Is(err, tasks.ErrUnknownTask):
			writeError(w, http.StatusNotFound, "unknown task")
		default:
			h.Logger.Error("update task progress", "account_id", acc.ID, "task_id", taskID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		h.Logger.Error("commit progress tx", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, taskProgressResponse{Progress: progress, PointsAwarded: awarded})
}
