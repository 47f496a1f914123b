package router

import (
	"net/http"

	"github.com/tapmine/backend/internal/handlers"
)

// New returns an http.Handler serving the API under /api/v1. auth wraps the
// endpoints that require an authenticated account.
func New(
	authHandler *handlers.AuthHandler,
	accountHandler *handlers.AccountHandler,
	boostHandler *handlers.BoostHandler,
	taskHandler *handlers.TaskHandler,
	auth func(http.Handler) http.Handler,
) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	mux.HandleFunc("POST "+base+"/auth/telegram", authHandler.Authenticate)

	// Public catalogs.
	mux.HandleFunc("GET "+base+"/boosts", boostHandler.ListCatalog)
	mux.HandleFunc("GET "+base+"/tasks", taskHandler.ListCatalog)

	// Authenticated account surface.
	mux.Handle("GET "+base+"/account/me", auth(http.HandlerFunc(accountHandler.GetMe)))
	mux.Handle("GET "+base+"/account/ledger", auth(http.HandlerFunc(accountHandler.ListLedger)))
	mux.Handle("GET "+base+"/account/referrals", auth(http.HandlerFunc(accountHandler.ListReferrals)))
	mux.Handle("GET "+base+"/account/boosts", auth(http.HandlerFunc(boostHandler.ListMine)))
	mux.Handle("POST "+base+"/account/boosts", auth(http.HandlerFunc(boostHandler.Purchase)))
	mux.Handle("GET "+base+"/account/tasks", auth(http.HandlerFunc(taskHandler.ListMine)))
	mux.Handle("POST "+base+"/account/tasks/{taskID}/progress", auth(http.HandlerFunc(taskHandler.AdvanceProgress)))
	mux.Handle("POST "+base+"/account/tasks/{taskID}/complete", auth(http.HandlerFunc(taskHandler.Complete)))

	// Maintenance trigger, also run periodically by the job queue.
	mux.HandleFunc("POST "+base+"/maintenance/sweep-expired-boosts", boostHandler.SweepExpired)

	return mux
}
