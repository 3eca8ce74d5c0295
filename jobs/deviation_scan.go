package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/charpente-erp/charpente/internal/jobmetrics"
)

// DeviationScanJob scans recent comparisons and raises severity-graded alerts.
type DeviationScanJob struct {
	Reconcile Reconciler
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewDeviationScanJob initialises the scan handler.
func NewDeviationScanJob(reconciler Reconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *DeviationScanJob {
	return &DeviationScanJob{
		Reconcile: reconciler,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the deviation scan logic.
func (j *DeviationScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("deviation scan: handler not configured")
	}
	var payload DeviationScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowHours <= 0 {
		payload.WindowHours = 168
	}
	window := time.Duration(payload.WindowHours) * time.Hour

	start := j.now()
	tracker := j.metrics().Track(TaskDeviationScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("window_hours", payload.WindowHours))
	logger.Info("starting deviation scan")

	alerts, err := j.Reconcile.ScanDeviations(ctx, window)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	bySeverity := map[string]int{}
	for _, alert := range alerts {
		logger.Warn("estimation deviation detected",
			slog.Int64("job_id", alert.JobID),
			slog.String("severity", string(alert.Severity)),
			slog.String("message", alert.Message),
		)
		bySeverity[string(alert.Severity)]++
	}
	for severity, count := range bySeverity {
		j.metrics().AddAlerts(severity, count)
	}

	logger.Info("completed deviation scan",
		slog.Int("alerts", len(alerts)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *DeviationScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDeviationScan))
	}
	return slog.Default().With(slog.String("job", TaskDeviationScan))
}

func (j *DeviationScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *DeviationScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
