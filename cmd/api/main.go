package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/clawtask/backend/internal/config"
	"github.com/clawtask/backend/internal/db"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. make dev-up or docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	if err := db.Migrate(ctx, pool); err != nil {
		slog.Error("Schema migration failed", "error", err)
		os.Exit(1)
	}

	// River migrations (job queue tables)
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first (e.g. make dev-up)", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	apiHandler, riverClient, err := buildAPI(pool, cfg, logger)
	if err != nil {
		slog.Error("Failed to build API", "error", err)
		os.Exit(1)
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Auth.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Platform-Admin-Key"},
		AllowCredentials: true,
	}).Handler(apiHandler)

	// Start the River client (runs the verification sweep).
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	addr := cfg.Server.Address()
	slog.Info("Starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
