package main

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/clawtask/backend/internal/auth"
	"github.com/clawtask/backend/internal/config"
	"github.com/clawtask/backend/internal/handlers"
	"github.com/clawtask/backend/internal/middleware"
	"github.com/clawtask/backend/internal/repository"
	"github.com/clawtask/backend/internal/router"
	"github.com/clawtask/backend/internal/services"
	"github.com/clawtask/backend/internal/sweep"
)

// buildAPI wires repositories, services, handlers, and the background
// sweep into the API handler and the river client.
func buildAPI(pool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) (http.Handler, *river.Client[pgx.Tx], error) {
	userRepo := repository.NewUserRepo(pool)
	agentRepo := repository.NewAgentRepo(pool)
	taskRepo := repository.NewTaskRepo(pool)
	creditRepo := repository.NewCreditRepo(pool)
	subRepo := repository.NewSubscriptionRepo(pool)
	commissionRepo := repository.NewCommissionRepo(pool)
	clearingRepo := repository.NewClearingRepo(pool)
	rechargeRepo := repository.NewRechargeRepo(pool)
	paymentMethodRepo := repository.NewPaymentMethodRepo(pool)

	ledger := services.NewLedgerService(userRepo, creditRepo, commissionRepo)
	settlement := services.NewSettlementService(taskRepo, agentRepo, ledger)
	dispatcher := services.NewWebhookDispatcher(logger)
	lifecycle := services.NewLifecycleService(pool, taskRepo, agentRepo, subRepo, ledger, settlement, dispatcher, logger)
	recharge := services.NewRechargeService(pool, rechargeRepo, ledger, logger)

	validator, err := services.NewValidator()
	if err != nil {
		return nil, nil, err
	}

	authSvc := auth.NewService(userRepo, cfg.Auth.JWTSecret)
	authHandler := auth.NewHandler(authSvc, logger)

	taskHandler := &handlers.TaskHandler{
		Lifecycle: lifecycle,
		Users:     userRepo,
		Subs:      subRepo,
		Validator: validator,
		Logger:    logger,
	}
	accountHandler := &handlers.AccountHandler{
		Credits:        creditRepo,
		Commissions:    commissionRepo,
		Users:          userRepo,
		PaymentMethods: paymentMethodRepo,
		Recharge:       recharge,
		Logger:         logger,
	}
	agentHandler := &handlers.AgentHandler{Agents: agentRepo, Logger: logger}
	platformHandler := &handlers.PlatformHandler{
		Clearing:    clearingRepo,
		Commissions: commissionRepo,
		Logger:      logger,
	}

	requireUser := middleware.RequireUser(authSvc, userRepo)
	requireAdmin := middleware.RequireAdminKey(cfg.Platform.AdminKey)

	apiHandler := router.New(authHandler, taskHandler, accountHandler, agentHandler, platformHandler, requireUser, requireAdmin)

	workers := river.NewWorkers()
	river.AddWorker(workers, sweep.NewVerificationSweepWorker(taskRepo, lifecycle, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 5},
		},
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{sweep.PeriodicJob(cfg.Sweep.Interval)},
	})
	if err != nil {
		return nil, nil, err
	}

	return apiHandler, riverClient, nil
}
