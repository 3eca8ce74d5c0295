package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/charpente-erp/charpente/internal/actuals"
	"github.com/charpente-erp/charpente/internal/app"
	"github.com/charpente-erp/charpente/internal/estimation"
	"github.com/charpente-erp/charpente/internal/inventory"
	"github.com/charpente-erp/charpente/internal/observability"
	"github.com/charpente-erp/charpente/internal/platform/db"
	"github.com/charpente-erp/charpente/internal/projects"
	"github.com/charpente-erp/charpente/internal/purchasing"
	"github.com/charpente-erp/charpente/internal/reconcile"
	"github.com/charpente-erp/charpente/internal/shared"
	"github.com/charpente-erp/charpente/internal/users"
	"github.com/charpente-erp/charpente/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	projectsRepo := projects.NewRepository(pool)
	projectsService := projects.NewService(projectsRepo)
	projectsHandler := projects.NewHandler(logger, projectsService)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	estimationRepo := estimation.NewRepository(pool)
	estimationService := estimation.NewService(estimationRepo, projectsService, auditLogger)
	estimationHandler := estimation.NewHandler(logger, estimationService)

	purchasingRepo := purchasing.NewRepository(pool)
	purchasingService := purchasing.NewService(purchasingRepo, projectsService)
	purchasingHandler := purchasing.NewHandler(logger, purchasingService)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService)

	actualsRepo := actuals.NewRepository(pool)
	actualsService := actuals.NewService(actualsRepo, projectsService, cfg.OverheadRatePerHalfDay)

	reconcileRepo := reconcile.NewRepository(pool)
	reconcileService := reconcile.NewService(reconcileRepo, estimationService, actualsService, projectsService, usersService, redisClient, cfg.MetricsCacheTTL, logger)
	reconcileHandler := reconcile.NewHandler(logger, reconcileService, estimationService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		InventoryHandler:  inventoryHandler,
		EstimationHandler: estimationHandler,
		ProjectsHandler:   projectsHandler,
		PurchasingHandler: purchasingHandler,
		UsersHandler:      usersHandler,
		ReconcileHandler:  reconcileHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
