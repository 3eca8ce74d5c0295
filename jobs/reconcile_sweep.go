package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/charpente-erp/charpente/internal/estimation"
	"github.com/charpente-erp/charpente/internal/jobmetrics"
	"github.com/charpente-erp/charpente/internal/projects"
	"github.com/charpente-erp/charpente/internal/reconcile"
	"github.com/charpente-erp/charpente/internal/shared"
)

const (
	sweepLockTTL = 30 * time.Minute
	jobLockTTL   = 5 * time.Minute
)

// JobSource lists the jobs eligible for scheduled reconciliation.
type JobSource interface {
	Active(ctx context.Context) ([]projects.Project, error)
}

// EstimationSource resolves the estimation a sweep reconciles against.
type EstimationSource interface {
	LatestValidated(ctx context.Context, jobID int64) (estimation.Estimation, error)
}

// Reconciler is the slice of the reconciliation service the jobs use.
type Reconciler interface {
	CreateComparison(ctx context.Context, in reconcile.CreateInput) (reconcile.Comparison, error)
	LatestForEstimation(ctx context.Context, estimationID int64) (reconcile.Comparison, error)
	ScanDeviations(ctx context.Context, window time.Duration) ([]reconcile.Alert, error)
}

// ReconcileSweepJob reconciles every active job at most once per guard window.
type ReconcileSweepJob struct {
	Jobs        JobSource
	Estimations EstimationSource
	Reconcile   Reconciler
	Redis       *redis.Client
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	clock       func() time.Time
}

// NewReconcileSweepJob initialises the sweep handler.
func NewReconcileSweepJob(jobs JobSource, estimations EstimationSource, reconciler Reconciler, rdb *redis.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileSweepJob {
	return &ReconcileSweepJob{
		Jobs:        jobs,
		Estimations: estimations,
		Reconcile:   reconciler,
		Redis:       rdb,
		Logger:      logger,
		Metrics:     metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one sweep. A redis lock prevents overlapping runs; while a
// previous sweep holds the lock the task is dropped, not retried.
func (j *ReconcileSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("reconcile sweep: handler not configured")
	}
	var payload ReconcileSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.MinAgeHours <= 0 {
		payload.MinAgeHours = 24
	}
	minAge := time.Duration(payload.MinAgeHours) * time.Hour

	logger := j.logger()

	if j.Redis != nil {
		acquired, err := j.Redis.SetNX(ctx, shared.ReconcileSweepLockKey(), j.now().Format(time.RFC3339), sweepLockTTL).Result()
		if err != nil {
			return err
		}
		if !acquired {
			logger.Info("sweep already running, skipping")
			return nil
		}
		defer j.Redis.Del(context.WithoutCancel(ctx), shared.ReconcileSweepLockKey())
	}

	tracker := j.metrics().Track(TaskReconcileSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := j.now()
	logger.Info("starting reconcile sweep", slog.Duration("min_age", minAge))

	active, err := j.Jobs.Active(ctx)
	if err != nil {
		resultErr = err
		logger.Error("list active jobs", slog.Any("error", err))
		return resultErr
	}

	var triggered, skipped, failures int
	for _, job := range active {
		ok, err := j.sweepOne(ctx, job, minAge)
		if err != nil {
			failures++
			logger.Error("job reconciliation failed",
				slog.Int64("job_id", job.ID),
				slog.String("job_number", job.Number),
				slog.Any("error", err),
			)
			continue
		}
		if ok {
			triggered++
		} else {
			skipped++
		}
	}

	logger.Info("completed reconcile sweep",
		slog.Int("jobs", len(active)),
		slog.Int("triggered", triggered),
		slog.Int("skipped", skipped),
		slog.Int("failures", failures),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *ReconcileSweepJob) sweepOne(ctx context.Context, job projects.Project, minAge time.Duration) (bool, error) {
	if j.Redis != nil {
		acquired, err := j.Redis.SetNX(ctx, shared.JobReconcileLockKey(job.ID), j.now().Format(time.RFC3339), jobLockTTL).Result()
		if err != nil {
			return false, err
		}
		if !acquired {
			// Another reconciler holds this job, skip it this run.
			return false, nil
		}
		defer j.Redis.Del(context.WithoutCancel(ctx), shared.JobReconcileLockKey(job.ID))
	}

	est, err := j.Estimations.LatestValidated(ctx, job.ID)
	if err != nil {
		if errors.Is(err, estimation.ErrNoValidated) {
			return false, nil
		}
		return false, err
	}

	latest, err := j.Reconcile.LatestForEstimation(ctx, est.ID)
	switch {
	case err == nil:
		if j.now().Sub(latest.ComparisonDate) < minAge {
			return false, nil
		}
	case errors.Is(err, reconcile.ErrNotFound):
		// No comparison yet, reconcile now.
	default:
		return false, err
	}

	_, err = j.Reconcile.CreateComparison(ctx, reconcile.CreateInput{
		JobID:        job.ID,
		EstimationID: est.ID,
		Type:         reconcile.TypeRealtime,
		ComputedBy:   shared.SystemActor,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (j *ReconcileSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReconcileSweep))
	}
	return slog.Default().With(slog.String("job", TaskReconcileSweep))
}

func (j *ReconcileSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *ReconcileSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
