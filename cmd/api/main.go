package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/microtasks/backend/internal/auth"
	"github.com/microtasks/backend/internal/config"
	"github.com/microtasks/backend/internal/dashboard"
	"github.com/microtasks/backend/internal/handlers"
	"github.com/microtasks/backend/internal/jobs"
	"github.com/microtasks/backend/internal/ledger"
	"github.com/microtasks/backend/internal/middleware"
	"github.com/microtasks/backend/internal/repository"
	"github.com/microtasks/backend/internal/repository/migrations"
	"github.com/microtasks/backend/internal/router"
	"github.com/microtasks/backend/internal/services"
	"github.com/microtasks/backend/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. docker compose up -d", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("Connected to PostgreSQL database successfully!")

	if err := repository.RunMigrations(cfg.DatabaseURL, migrations.FS); err != nil {
		slog.Error("Schema migrations failed", "error", err)
		os.Exit(1)
	}

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Repositories
	accountRepo := repository.NewAccountRepo(pool)
	creditRepo := repository.NewCreditRepo(pool)
	taskRepo := repository.NewTaskRepo(pool)
	submissionRepo := repository.NewSubmissionRepo(pool)
	withdrawalRepo := repository.NewWithdrawalRepo(pool)
	paymentRepo := repository.NewPaymentRepo(pool)
	notificationRepo := repository.NewNotificationRepo(pool)
	statsRepo := repository.NewStatsRepo(pool)

	// Notifications: the insert func is set after the River client exists
	// (the client needs the workers, the ledger needs the emitter).
	emitter := jobs.NewEmitter(logger)

	ledgerSvc := ledger.NewService(pool, ledger.Stores{
		Accounts:    accountRepo,
		Tasks:       taskRepo,
		Submissions: submissionRepo,
		Withdrawals: withdrawalRepo,
		Payments:    paymentRepo,
		Journal:     creditRepo,
	}, emitter, ledger.Options{
		RefundOnTaskDelete: cfg.RefundOnTaskDelete,
		Logger:             logger,
	})

	workers := river.NewWorkers()
	jobs.Register(workers, notificationRepo, cfg.NotificationRetention, logger)

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.RiverMaxWorkers},
		},
		Workers:      workers,
		PeriodicJobs: jobs.PeriodicJobs(cfg.NotificationPurgeInterval),
		Logger:       logger,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}
	emitter.SetInsert(func(ctx context.Context, args river.JobArgs) error {
		_, err := riverClient.Insert(ctx, args, nil)
		return err
	})

	// River gets its own context so a signal drains jobs through Stop
	// instead of cancelling them mid-flight.
	if err := riverClient.Start(context.WithoutCancel(ctx)); err != nil {
		slog.Error("Failed to start River client", "error", err)
		os.Exit(1)
	}

	// Auth
	validator, err := services.NewValidator()
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}
	authSvc := auth.NewService(pool, accountRepo, creditRepo, auth.Options{
		Secret:      cfg.JWTSecret,
		TokenTTL:    cfg.TokenTTL,
		AdminEmails: cfg.AdminEmails,
	})

	// HTTP
	usersSvc := users.NewService(accountRepo, ledgerSvc)
	mux := router.New(router.Handlers{
		Auth:      auth.NewHandler(authSvc, validator, logger),
		Dashboard: dashboard.NewHandler(accountRepo, creditRepo, notificationRepo, statsRepo, validator, logger),
		Tasks: &handlers.TaskHandler{
			Ledger:      ledgerSvc,
			Tasks:       taskRepo,
			Submissions: submissionRepo,
			Validator:   validator,
			Logger:      logger,
		},
		Withdrawals: &handlers.WithdrawalHandler{
			Ledger:      ledgerSvc,
			Withdrawals: withdrawalRepo,
			Validator:   validator,
			Logger:      logger,
		},
		Coins: &handlers.CoinHandler{
			Ledger:    ledgerSvc,
			Payments:  paymentRepo,
			Validator: validator,
			Logger:    logger,
		},
		Users: users.NewHandler(usersSvc, validator, logger),
	}, middleware.SessionAuth(authSvc, accountRepo))
	registerOpsRoutes(mux, pool, logger)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(middleware.Chain(mux, middleware.Instrument(logger), middleware.Recover(logger)))

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			slog.Error("HTTP server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Error("River client stop failed", "error", err)
	}
	slog.Info("Server stopped")
}
