package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/tapmine/backend/internal/accounts"
	"github.com/tapmine/backend/internal/auth"
	"github.com/tapmine/backend/internal/boosts"
	"github.com/tapmine/backend/internal/cache"
	"github.com/tapmine/backend/internal/config"
	"github.com/tapmine/backend/internal/handlers"
	"github.com/tapmine/backend/internal/middleware"
	"github.com/tapmine/backend/internal/mining"
	"github.com/tapmine/backend/internal/referrals"
	"github.com/tapmine/backend/internal/repository"
	"github.com/tapmine/backend/internal/router"
	"github.com/tapmine/backend/internal/sweep"
	"github.com/tapmine/backend/internal/tasks"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("cannot reach PostgreSQL; ensure it is running (e.g. docker-compose up -d)", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

	// River migrations (job queue tables).
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}

	// Optional catalog cache.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			slog.Error("cannot reach Redis", "error", err)
			os.Exit(1)
		}
		slog.Info("connected to Redis")
	}
	catalogCache := cache.NewCatalogCache(redisClient)

	// Repositories.
	accountRepo := repository.NewAccountRepo(pool)
	boostRepo := repository.NewBoostRepo(pool)
	taskRepo := repository.NewTaskRepo(pool)
	referralRepo := repository.NewReferralRepo(pool)
	pointRepo := repository.NewPointRepo(pool)

	// Core services.
	engine := mining.NewEngine(accountRepo, boostRepo, pointRepo)
	boostSvc := boosts.NewService(accountRepo, boostRepo, pointRepo, engine)
	taskSvc := tasks.NewService(accountRepo, taskRepo, pointRepo)
	referralSvc := referrals.NewService(pool, accountRepo, referralRepo, pointRepo, engine)
	accountSvc := accounts.NewService(pool, accountRepo, boostRepo, referralRepo, engine, referralSvc, logger)

	// Background sweep via River.
	workers := river.NewWorkers()
	river.AddWorker(workers, sweep.NewWorker(boostSvc, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			sweep.PeriodicJob(cfg.SweepInterval),
		},
	})
	if err != nil {
		slog.Error("failed to create River client", "error", err)
		os.Exit(1)
	}

	// Auth & handlers.
	authSvc := auth.NewService(cfg.JWTSecret, cfg.SessionTTL)

	authHandler := &handlers.AuthHandler{BotToken: cfg.BotToken, Accounts: accountSvc, Tokens: authSvc, Logger: logger}
	accountHandler := &handlers.AccountHandler{Accounts: accountSvc, Ledger: pointRepo, Referrals: referralRepo, Logger: logger}
	boostHandler := &handlers.BoostHandler{Pool: pool, Boosts: boostSvc, Repo: boostRepo, Catalog: catalogCache, Logger: logger}
	taskHandler := &handlers.TaskHandler{Pool: pool, Tracker: taskSvc, Repo: taskRepo, Catalog: catalogCache, Logger: logger}

	sessionAuth := middleware.SessionAuth(authSvc, accountRepo)
	apiRouter := router.New(authHandler, accountHandler, boostHandler, taskHandler, sessionAuth)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(apiRouter)

	// Start River client (runs the periodic sweep).
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
