package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/charpente-erp/charpente/internal/actuals"
	"github.com/charpente-erp/charpente/internal/estimation"
	"github.com/charpente-erp/charpente/internal/projects"
	"github.com/charpente-erp/charpente/internal/users"
)

type memoryRepo struct {
	comparisons []Comparison
	alerts      []Alert
	nextID      int64
}

func (r *memoryRepo) Insert(ctx context.Context, c Comparison) (int64, error) {
	r.nextID++
	c.ID = r.nextID
	r.comparisons = append(r.comparisons, c)
	return c.ID, nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id int64) (Comparison, error) {
	for _, c := range r.comparisons {
		if c.ID == id {
			return c, nil
		}
	}
	return Comparison{}, ErrNotFound
}

func (r *memoryRepo) ListForJob(ctx context.Context, jobID int64) ([]Comparison, error) {
	out := []Comparison{}
	for i := len(r.comparisons) - 1; i >= 0; i-- {
		if r.comparisons[i].JobID == jobID {
			out = append(out, r.comparisons[i])
		}
	}
	return out, nil
}

func (r *memoryRepo) LatestForJob(ctx context.Context, jobID int64) (Comparison, error) {
	for i := len(r.comparisons) - 1; i >= 0; i-- {
		if r.comparisons[i].JobID == jobID {
			return r.comparisons[i], nil
		}
	}
	return Comparison{}, ErrNotFound
}

func (r *memoryRepo) LatestForEstimation(ctx context.Context, estimationID int64) (Comparison, error) {
	for i := len(r.comparisons) - 1; i >= 0; i-- {
		if r.comparisons[i].EstimationID == estimationID {
			return r.comparisons[i], nil
		}
	}
	return Comparison{}, ErrNotFound
}

func (r *memoryRepo) Since(ctx context.Context, since time.Time) ([]Comparison, error) {
	out := []Comparison{}
	for _, c := range r.comparisons {
		if !c.ComparisonDate.Before(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryRepo) FinalsSince(ctx context.Context, since time.Time) ([]Comparison, error) {
	out := []Comparison{}
	for _, c := range r.comparisons {
		if c.Type == TypeFinal && !c.ComparisonDate.Before(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryRepo) InsertAlert(ctx context.Context, alert Alert) (int64, error) {
	r.nextID++
	alert.ID = r.nextID
	r.alerts = append(r.alerts, alert)
	return alert.ID, nil
}

func (r *memoryRepo) ExportRows(ctx context.Context, jobID *int64) ([]ExportRow, error) {
	return nil, nil
}

type stubEstimations struct {
	byID map[int64]estimation.Estimation
}

func (s stubEstimations) GetByID(ctx context.Context, id int64) (estimation.Estimation, error) {
	e, ok := s.byID[id]
	if !ok {
		return estimation.Estimation{}, estimation.ErrNotFound
	}
	return e, nil
}

func (s stubEstimations) LatestValidated(ctx context.Context, jobID int64) (estimation.Estimation, error) {
	var best *estimation.Estimation
	for _, e := range s.byID {
		if e.JobID == jobID && e.Status == estimation.StatusValidated {
			if best == nil || e.Version > best.Version {
				copied := e
				best = &copied
			}
		}
	}
	if best == nil {
		return estimation.Estimation{}, estimation.ErrNoValidated
	}
	return *best, nil
}

type stubActuals struct {
	figures actuals.Figures
}

func (s stubActuals) Compute(ctx context.Context, jobID int64) (actuals.Figures, error) {
	figures := s.figures
	figures.JobID = jobID
	return figures, nil
}

type stubJobs struct{}

func (stubJobs) Get(ctx context.Context, id int64) (projects.Project, error) {
	return projects.Project{ID: id, Number: "AFF-2026-001", Label: "Charpente hangar", Client: "SCI Les Granges", Status: projects.StatusInProgress}, nil
}

type stubUsers struct{}

func (stubUsers) Get(ctx context.Context, id string) (users.User, error) {
	return users.User{ID: id, FirstName: "Paul", LastName: "Martin"}, nil
}

func newTestService(repo *memoryRepo, est stubEstimations, act stubActuals, cache *redis.Client) *Service {
	return NewService(repo, est, act, stubJobs{}, stubUsers{}, cache, time.Minute, nil)
}

func TestCreateComparisonPersistsNewRowEveryRun(t *testing.T) {
	repo := &memoryRepo{}
	est := stubEstimations{byID: map[int64]estimation.Estimation{
		5: {ID: 5, JobID: 7, Version: 2, Status: estimation.StatusValidated, TotalAmount: 10000, Margin: 2000},
	}}
	act := stubActuals{figures: actuals.Figures{
		TotalAmount: 12000,
		Margin:      800,
		Consulted:   actuals.Sources{TimeTracking: true, Purchasing: true},
	}}
	svc := newTestService(repo, est, act, nil)
	ctx := context.Background()

	first, err := svc.CreateComparison(ctx, CreateInput{JobID: 7, EstimationID: 5, Type: TypeRealtime, ComputedBy: "SYSTEM"})
	require.NoError(t, err)
	require.InDelta(t, 20.0, first.Deviations.Amount, 0.0001)
	require.InDelta(t, -60.0, first.Deviations.Margin, 0.0001)
	require.Equal(t, actuals.Sources{TimeTracking: true, Purchasing: true}, first.Metadata.Sources)
	require.NotNil(t, first.Estimation)
	require.Equal(t, int64(5), first.Estimation.ID)
	require.NotNil(t, first.Job)
	require.Equal(t, "AFF-2026-001", first.Job.Number)
	require.Equal(t, "Paul Martin", first.ComputedByName)

	second, err := svc.CreateComparison(ctx, CreateInput{JobID: 7, EstimationID: 5, Type: TypeRealtime, ComputedBy: "SYSTEM"})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.Len(t, repo.comparisons, 2)
	require.Equal(t, first.Deviations, repo.comparisons[0].Deviations)
}

func TestCreateComparisonValidation(t *testing.T) {
	repo := &memoryRepo{}
	est := stubEstimations{byID: map[int64]estimation.Estimation{5: {ID: 5, JobID: 7}}}
	svc := newTestService(repo, est, stubActuals{}, nil)
	ctx := context.Background()

	_, err := svc.CreateComparison(ctx, CreateInput{JobID: 7, EstimationID: 5, Type: "WEEKLY"})
	require.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.CreateComparison(ctx, CreateInput{JobID: 7, EstimationID: 99, Type: TypeSnapshot})
	require.ErrorIs(t, err, estimation.ErrNotFound)

	// Estimation belonging to another job is rejected.
	_, err = svc.CreateComparison(ctx, CreateInput{JobID: 8, EstimationID: 5, Type: TypeSnapshot})
	require.Error(t, err)
	require.Empty(t, repo.comparisons)
}

func TestScanDeviationsPersistsGradedAlerts(t *testing.T) {
	repo := &memoryRepo{}
	now := time.Now().UTC()
	repo.comparisons = []Comparison{
		{ID: 1, JobID: 7, EstimationID: 5, ComparisonDate: now.Add(-2 * 24 * time.Hour), Deviations: DeviationSet{Margin: -60}},
		{ID: 2, JobID: 8, EstimationID: 6, ComparisonDate: now.Add(-time.Hour), Deviations: DeviationSet{Amount: 35}},
		{ID: 3, JobID: 9, EstimationID: 7, ComparisonDate: now.Add(-time.Hour), Deviations: DeviationSet{Amount: 10}},
		{ID: 4, JobID: 10, EstimationID: 8, ComparisonDate: now.Add(-10 * 24 * time.Hour), Deviations: DeviationSet{Margin: -90}},
	}
	repo.nextID = 4
	svc := newTestService(repo, stubEstimations{}, stubActuals{}, nil)

	alerts, err := svc.ScanDeviations(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	require.Equal(t, SeverityCritical, alerts[0].Severity)
	require.Equal(t, SeverityHigh, alerts[1].Severity)
	require.Equal(t, AlertTypeDeviation, alerts[0].Type)
	require.Equal(t, int64(1), alerts[0].Metadata["comparison_id"])
	require.Len(t, repo.alerts, 2)
}

func TestPerformanceMetricsBucketsAndCache(t *testing.T) {
	repo := &memoryRepo{}
	now := time.Now().UTC()
	deviations := []float64{2, -4, 12, 28, 45, -8}
	for i, d := range deviations {
		repo.comparisons = append(repo.comparisons, Comparison{
			ID:             int64(i + 1),
			JobID:          int64(i + 1),
			Type:           TypeFinal,
			ComparisonDate: now.Add(-time.Duration(i) * 24 * time.Hour),
			Deviations:     DeviationSet{Amount: d},
		})
	}
	// REALTIME rows inside the window are excluded.
	repo.comparisons = append(repo.comparisons, Comparison{ID: 99, Type: TypeRealtime, ComparisonDate: now, Deviations: DeviationSet{Amount: 500}})

	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := newTestService(repo, stubEstimations{}, stubActuals{}, cache)

	report, err := svc.PerformanceMetrics(context.Background(), DefaultPerformanceWindow)
	require.NoError(t, err)
	require.Equal(t, 6, report.SampleSize)
	require.Equal(t, QualityDistribution{Excellent: 2, Good: 2, Medium: 1, Poor: 1}, report.AmountQuality)

	mad := (2.0 + 4 + 12 + 28 + 45 + 8) / 6
	require.InDelta(t, mad, report.Dimensions["amount"].MeanAbsoluteDeviation, 0.0001)
	require.InDelta(t, 100-mad, report.Dimensions["amount"].Precision, 0.0001)
	require.InDelta(t, 100.0, report.Dimensions["margin"].Precision, 0.0001)

	// Second call is served from the cache even after the rows change.
	repo.comparisons = nil
	cached, err := svc.PerformanceMetrics(context.Background(), DefaultPerformanceWindow)
	require.NoError(t, err)
	require.Equal(t, report.SampleSize, cached.SampleSize)
}

func TestPerformanceMetricsPrecisionFloor(t *testing.T) {
	repo := &memoryRepo{}
	repo.comparisons = []Comparison{{ID: 1, Type: TypeFinal, ComparisonDate: time.Now().UTC(), Deviations: DeviationSet{Margin: -150}}}
	svc := newTestService(repo, stubEstimations{}, stubActuals{}, nil)

	report, err := svc.PerformanceMetrics(context.Background(), DefaultPerformanceWindow)
	require.NoError(t, err)
	require.Zero(t, report.Dimensions["margin"].Precision)
}
