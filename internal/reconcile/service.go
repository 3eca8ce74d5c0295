package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/charpente-erp/charpente/internal/actuals"
	"github.com/charpente-erp/charpente/internal/estimation"
	"github.com/charpente-erp/charpente/internal/projects"
	"github.com/charpente-erp/charpente/internal/users"
)

// RepositoryPort abstracts comparison persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, c Comparison) (int64, error)
	GetByID(ctx context.Context, id int64) (Comparison, error)
	ListForJob(ctx context.Context, jobID int64) ([]Comparison, error)
	LatestForJob(ctx context.Context, jobID int64) (Comparison, error)
	LatestForEstimation(ctx context.Context, estimationID int64) (Comparison, error)
	Since(ctx context.Context, since time.Time) ([]Comparison, error)
	FinalsSince(ctx context.Context, since time.Time) ([]Comparison, error)
	InsertAlert(ctx context.Context, alert Alert) (int64, error)
	ExportRows(ctx context.Context, jobID *int64) ([]ExportRow, error)
}

// EstimationStore supplies estimations to reconcile against.
type EstimationStore interface {
	GetByID(ctx context.Context, id int64) (estimation.Estimation, error)
	LatestValidated(ctx context.Context, jobID int64) (estimation.Estimation, error)
}

// ActualsSource aggregates measured figures.
type ActualsSource interface {
	Compute(ctx context.Context, jobID int64) (actuals.Figures, error)
}

// JobRegistry supplies job summaries for hydration.
type JobRegistry interface {
	Get(ctx context.Context, id int64) (projects.Project, error)
}

// UserDirectory resolves computing-user names for hydration and export.
type UserDirectory interface {
	Get(ctx context.Context, id string) (users.User, error)
}

const performanceCacheKey = "reconcile:metrics:performance"

// Service runs the reconciliation engine against stored estimations and
// measured actuals.
type Service struct {
	repo        RepositoryPort
	estimations EstimationStore
	actuals     ActualsSource
	jobs        JobRegistry
	users       UserDirectory
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds the service. cache may be nil; metrics are then computed
// on every call.
func NewService(repo RepositoryPort, estimations EstimationStore, actualsSource ActualsSource, jobs JobRegistry, directory UserDirectory, cache *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		estimations: estimations,
		actuals:     actualsSource,
		jobs:        jobs,
		users:       directory,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput collects the parameters of a reconciliation run.
type CreateInput struct {
	JobID        int64
	EstimationID int64
	Type         ComparisonType
	ComputedBy   string
	Comment      string
}

// CreateComparison aggregates actuals, computes the six deviations against
// the estimation and persists a new immutable comparison row. Every run
// inserts; existing rows are never touched.
func (s *Service) CreateComparison(ctx context.Context, in CreateInput) (Comparison, error) {
	if !in.Type.Valid() {
		return Comparison{}, fmt.Errorf("%w: %s", ErrInvalidType, in.Type)
	}
	est, err := s.estimations.GetByID(ctx, in.EstimationID)
	if err != nil {
		return Comparison{}, fmt.Errorf("load estimation: %w", err)
	}
	if est.JobID != in.JobID {
		return Comparison{}, fmt.Errorf("%w: estimation %d does not belong to job %d", ErrInvalidType, in.EstimationID, in.JobID)
	}

	figures, err := s.actuals.Compute(ctx, in.JobID)
	if err != nil {
		return Comparison{}, fmt.Errorf("aggregate actuals: %w", err)
	}

	deviations := ComputeDeviations(est, figures)
	comparison := Comparison{
		JobID:          in.JobID,
		EstimationID:   in.EstimationID,
		Type:           in.Type,
		ComputedBy:     in.ComputedBy,
		ComparisonDate: s.now(),
		Actual:         figures,
		Deviations:     deviations,
		Status:         OverallStatus(ClassifyDeviations(deviations)),
		Comment:        in.Comment,
		Metadata: CalculationMetadata{
			Sources:    figures.Consulted,
			ComputedAt: s.now(),
		},
	}
	id, err := s.repo.Insert(ctx, comparison)
	if err != nil {
		return Comparison{}, err
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches one comparison with estimation, job summary and
// computing-user name joined in.
func (s *Service) GetByID(ctx context.Context, id int64) (Comparison, error) {
	comparison, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Comparison{}, err
	}
	s.hydrate(ctx, &comparison)
	return comparison, nil
}

// ListForJob lists a job's comparisons, newest first.
func (s *Service) ListForJob(ctx context.Context, jobID int64) ([]Comparison, error) {
	if _, err := s.jobs.Get(ctx, jobID); err != nil {
		return nil, fmt.Errorf("verify job: %w", err)
	}
	return s.repo.ListForJob(ctx, jobID)
}

// LatestForEstimation returns the most recent comparison for an estimation.
// Used by the scheduled sweep for its 24h guard.
func (s *Service) LatestForEstimation(ctx context.Context, estimationID int64) (Comparison, error) {
	return s.repo.LatestForEstimation(ctx, estimationID)
}

// Summary pairs a job's latest comparison with its classification.
type Summary struct {
	Comparison     Comparison      `json:"comparison"`
	Classification Classification  `json:"classification"`
	Overall        DeviationStatus `json:"overall"`
}

// DeviationSummary classifies the latest comparison of a job.
func (s *Service) DeviationSummary(ctx context.Context, jobID int64) (Summary, error) {
	comparison, err := s.repo.LatestForJob(ctx, jobID)
	if err != nil {
		return Summary{}, err
	}
	s.hydrate(ctx, &comparison)
	classification := ClassifyDeviations(comparison.Deviations)
	return Summary{
		Comparison:     comparison,
		Classification: classification,
		Overall:        OverallStatus(classification),
	}, nil
}

// ScanDeviations inspects comparisons inside the window, synthesizes a
// severity-graded alert for each match and persists it.
func (s *Service) ScanDeviations(ctx context.Context, window time.Duration) ([]Alert, error) {
	since := s.now().Add(-window)
	comparisons, err := s.repo.Since(ctx, since)
	if err != nil {
		return nil, err
	}

	alerts := []Alert{}
	for _, c := range comparisons {
		if !ScanMatch(c.Deviations) {
			continue
		}
		severity := ScanSeverity(c.Deviations)
		alert := Alert{
			JobID:    c.JobID,
			Type:     AlertTypeDeviation,
			Severity: severity,
			Title:    fmt.Sprintf("Estimation deviation on job %d", c.JobID),
			Message: fmt.Sprintf("comparison %d deviates from estimation %d: amount %.1f%%, duration %.1f%%, margin %.1f%%",
				c.ID, c.EstimationID, c.Deviations.Amount, c.Deviations.Duration, c.Deviations.Margin),
			Metadata: map[string]any{
				"comparison_id": c.ID,
				"deviations":    offendingDeviations(c.Deviations),
			},
		}
		id, err := s.repo.InsertAlert(ctx, alert)
		if err != nil {
			return nil, fmt.Errorf("persist alert: %w", err)
		}
		alert.ID = id
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// PerformanceMetrics reports estimation accuracy over the trailing window of
// FINAL comparisons. The report is cached.
func (s *Service) PerformanceMetrics(ctx context.Context, window time.Duration) (PerformanceReport, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, performanceCacheKey).Result(); err == nil {
			var report PerformanceReport
			if err := json.Unmarshal([]byte(cached), &report); err == nil {
				return report, nil
			}
		}
	}

	comparisons, err := s.repo.FinalsSince(ctx, s.now().Add(-window))
	if err != nil {
		return PerformanceReport{}, err
	}

	report := PerformanceReport{
		WindowDays:  int(window.Hours() / 24),
		SampleSize:  len(comparisons),
		Dimensions:  map[string]DimensionMetrics{},
		GeneratedAt: s.now(),
	}
	sums := map[string]float64{}
	for _, c := range comparisons {
		sums["amount"] += math.Abs(c.Deviations.Amount)
		sums["duration"] += math.Abs(c.Deviations.Duration)
		sums["labor"] += math.Abs(c.Deviations.Labor)
		sums["purchasing"] += math.Abs(c.Deviations.Purchasing)
		sums["overhead"] += math.Abs(c.Deviations.Overhead)
		sums["margin"] += math.Abs(c.Deviations.Margin)

		switch abs := math.Abs(c.Deviations.Amount); {
		case abs <= 5:
			report.AmountQuality.Excellent++
		case abs <= 15:
			report.AmountQuality.Good++
		case abs <= 30:
			report.AmountQuality.Medium++
		default:
			report.AmountQuality.Poor++
		}
	}
	for dimension, sum := range sums {
		mad := 0.0
		if len(comparisons) > 0 {
			mad = sum / float64(len(comparisons))
		}
		report.Dimensions[dimension] = DimensionMetrics{
			MeanAbsoluteDeviation: mad,
			Precision:             math.Max(0, 100-mad),
		}
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(report); err == nil {
			if err := s.cache.Set(ctx, performanceCacheKey, encoded, s.cacheTTL).Err(); err != nil && s.logger != nil {
				s.logger.Warn("cache performance report", slog.Any("error", err))
			}
		}
	}
	return report, nil
}

// ExportRows returns flat denormalized comparison rows, optionally limited
// to one job.
func (s *Service) ExportRows(ctx context.Context, jobID *int64) ([]ExportRow, error) {
	return s.repo.ExportRows(ctx, jobID)
}

func (s *Service) hydrate(ctx context.Context, c *Comparison) {
	if est, err := s.estimations.GetByID(ctx, c.EstimationID); err == nil {
		c.Estimation = &est
	} else if !errors.Is(err, estimation.ErrNotFound) && s.logger != nil {
		s.logger.Warn("hydrate estimation", slog.Int64("comparison_id", c.ID), slog.Any("error", err))
	}
	if job, err := s.jobs.Get(ctx, c.JobID); err == nil {
		c.Job = &projects.Summary{ID: job.ID, Number: job.Number, Label: job.Label, Client: job.Client, Status: job.Status}
	}
	if s.users != nil && c.ComputedBy != "" {
		if user, err := s.users.Get(ctx, c.ComputedBy); err == nil {
			c.ComputedByName = user.FullName()
		}
	}
}

func offendingDeviations(d DeviationSet) map[string]float64 {
	out := map[string]float64{}
	if math.Abs(d.Amount) > scanAmount {
		out["amount"] = d.Amount
	}
	if math.Abs(d.Duration) > scanDuration {
		out["duration"] = d.Duration
	}
	if d.Margin < scanMargin {
		out["margin"] = d.Margin
	}
	return out
}
