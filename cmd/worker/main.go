package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/charpente-erp/charpente/internal/actuals"
	"github.com/charpente-erp/charpente/internal/app"
	"github.com/charpente-erp/charpente/internal/estimation"
	"github.com/charpente-erp/charpente/internal/jobmetrics"
	"github.com/charpente-erp/charpente/internal/platform/db"
	"github.com/charpente-erp/charpente/internal/projects"
	"github.com/charpente-erp/charpente/internal/reconcile"
	"github.com/charpente-erp/charpente/internal/shared"
	"github.com/charpente-erp/charpente/internal/users"
	"github.com/charpente-erp/charpente/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

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

	projectsService := projects.NewService(projects.NewRepository(pool))
	estimationService := estimation.NewService(estimation.NewRepository(pool), projectsService, auditLogger)
	usersService := users.NewService(users.NewRepository(pool))
	actualsService := actuals.NewService(actuals.NewRepository(pool), projectsService, cfg.OverheadRatePerHalfDay)
	reconcileService := reconcile.NewService(
		reconcile.NewRepository(pool),
		estimationService,
		actualsService,
		projectsService,
		usersService,
		redisClient,
		cfg.MetricsCacheTTL,
		logger,
	)

	metrics := jobmetrics.NewMetrics(nil)
	sweepJob := jobs.NewReconcileSweepJob(projectsService, estimationService, reconcileService, redisClient, logger, metrics)
	scanJob := jobs.NewDeviationScanJob(reconcileService, logger, metrics)

	sweepTask, err := jobs.NewReconcileSweepTask(jobs.ReconcileSweepPayload{
		MinAgeHours: int(cfg.ReconcileMinAge.Hours()),
	})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}
	scanTask, err := jobs.NewDeviationScanTask(jobs.DeviationScanPayload{
		WindowHours: int(cfg.DeviationScanWindow.Hours()),
	})
	if err != nil {
		logger.Error("build scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReconcileSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskDeviationScan, Handler: scanJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 1 * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueDefault)}},
			{Spec: "0 6 * * *", Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
