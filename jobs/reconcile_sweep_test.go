package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/charpente-erp/charpente/internal/estimation"
	"github.com/charpente-erp/charpente/internal/jobmetrics"
	"github.com/charpente-erp/charpente/internal/projects"
	"github.com/charpente-erp/charpente/internal/reconcile"
	"github.com/charpente-erp/charpente/internal/shared"
)

type fakeJobs struct {
	active []projects.Project
}

func (f fakeJobs) Active(ctx context.Context) ([]projects.Project, error) {
	return f.active, nil
}

type fakeEstimations struct {
	byJob map[int64]estimation.Estimation
}

func (f fakeEstimations) LatestValidated(ctx context.Context, jobID int64) (estimation.Estimation, error) {
	e, ok := f.byJob[jobID]
	if !ok {
		return estimation.Estimation{}, estimation.ErrNoValidated
	}
	return e, nil
}

type fakeReconciler struct {
	mu            sync.Mutex
	latest        map[int64]reconcile.Comparison
	failJobs      map[int64]error
	created       []reconcile.CreateInput
	scannedAlerts []reconcile.Alert
}

func (f *fakeReconciler) CreateComparison(ctx context.Context, in reconcile.CreateInput) (reconcile.Comparison, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failJobs[in.JobID]; ok {
		return reconcile.Comparison{}, err
	}
	f.created = append(f.created, in)
	return reconcile.Comparison{ID: int64(len(f.created)), JobID: in.JobID, EstimationID: in.EstimationID}, nil
}

func (f *fakeReconciler) LatestForEstimation(ctx context.Context, estimationID int64) (reconcile.Comparison, error) {
	c, ok := f.latest[estimationID]
	if !ok {
		return reconcile.Comparison{}, reconcile.ErrNotFound
	}
	return c, nil
}

func (f *fakeReconciler) ScanDeviations(ctx context.Context, window time.Duration) ([]reconcile.Alert, error) {
	return f.scannedAlerts, nil
}

func testMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func sweepTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewReconcileSweepTask(ReconcileSweepPayload{MinAgeHours: 24})
	require.NoError(t, err)
	return task
}

func TestSweepTriggersOnlyStaleOrMissingComparisons(t *testing.T) {
	now := time.Now().UTC()
	jobs := fakeJobs{active: []projects.Project{
		{ID: 1, Number: "AFF-1", Status: projects.StatusInProgress},
		{ID: 2, Number: "AFF-2", Status: projects.StatusInProgress},
		{ID: 3, Number: "AFF-3", Status: projects.StatusPlanned},
		{ID: 4, Number: "AFF-4", Status: projects.StatusInProgress},
	}}
	estimations := fakeEstimations{byJob: map[int64]estimation.Estimation{
		1: {ID: 10, JobID: 1, Status: estimation.StatusValidated},
		2: {ID: 20, JobID: 2, Status: estimation.StatusValidated},
		3: {ID: 30, JobID: 3, Status: estimation.StatusValidated},
		// Job 4 has no validated estimation.
	}}
	reconciler := &fakeReconciler{latest: map[int64]reconcile.Comparison{
		20: {ID: 200, EstimationID: 20, ComparisonDate: now.Add(-time.Hour)},
		30: {ID: 300, EstimationID: 30, ComparisonDate: now.Add(-30 * time.Hour)},
	}}

	job := NewReconcileSweepJob(jobs, estimations, reconciler, nil, nil, testMetrics())
	require.NoError(t, job.Handle(context.Background(), sweepTask(t)))

	require.Len(t, reconciler.created, 2)
	require.Equal(t, int64(1), reconciler.created[0].JobID)
	require.Equal(t, int64(3), reconciler.created[1].JobID)
	for _, in := range reconciler.created {
		require.Equal(t, reconcile.TypeRealtime, in.Type)
		require.Equal(t, shared.SystemActor, in.ComputedBy)
	}
}

func TestSweepIsolatesPerJobFailures(t *testing.T) {
	jobs := fakeJobs{active: []projects.Project{
		{ID: 1, Number: "AFF-1"},
		{ID: 2, Number: "AFF-2"},
		{ID: 3, Number: "AFF-3"},
	}}
	estimations := fakeEstimations{byJob: map[int64]estimation.Estimation{
		1: {ID: 10, JobID: 1, Status: estimation.StatusValidated},
		2: {ID: 20, JobID: 2, Status: estimation.StatusValidated},
		3: {ID: 30, JobID: 3, Status: estimation.StatusValidated},
	}}
	reconciler := &fakeReconciler{
		latest:   map[int64]reconcile.Comparison{},
		failJobs: map[int64]error{2: errors.New("boom")},
	}

	job := NewReconcileSweepJob(jobs, estimations, reconciler, nil, nil, testMetrics())
	require.NoError(t, job.Handle(context.Background(), sweepTask(t)))

	// The failing job does not abort the batch.
	require.Len(t, reconciler.created, 2)
	require.Equal(t, int64(1), reconciler.created[0].JobID)
	require.Equal(t, int64(3), reconciler.created[1].JobID)
}

func TestSweepLockPreventsOverlappingRuns(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	jobs := fakeJobs{active: []projects.Project{{ID: 1, Number: "AFF-1"}}}
	estimations := fakeEstimations{byJob: map[int64]estimation.Estimation{
		1: {ID: 10, JobID: 1, Status: estimation.StatusValidated},
	}}
	reconciler := &fakeReconciler{latest: map[int64]reconcile.Comparison{}}
	job := NewReconcileSweepJob(jobs, estimations, reconciler, rdb, nil, testMetrics())

	require.NoError(t, mr.Set(shared.ReconcileSweepLockKey(), "held"))
	require.NoError(t, job.Handle(context.Background(), sweepTask(t)))
	require.Empty(t, reconciler.created)

	mr.Del(shared.ReconcileSweepLockKey())
	require.NoError(t, job.Handle(context.Background(), sweepTask(t)))
	require.Len(t, reconciler.created, 1)

	// The lock is released once the sweep completes.
	require.False(t, mr.Exists(shared.ReconcileSweepLockKey()))
}

func TestSweepSkipsJobsLockedByAnotherReconciler(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	jobs := fakeJobs{active: []projects.Project{
		{ID: 1, Number: "AFF-1"},
		{ID: 2, Number: "AFF-2"},
	}}
	estimations := fakeEstimations{byJob: map[int64]estimation.Estimation{
		1: {ID: 10, JobID: 1, Status: estimation.StatusValidated},
		2: {ID: 20, JobID: 2, Status: estimation.StatusValidated},
	}}
	reconciler := &fakeReconciler{latest: map[int64]reconcile.Comparison{}}
	job := NewReconcileSweepJob(jobs, estimations, reconciler, rdb, nil, testMetrics())

	require.NoError(t, mr.Set(shared.JobReconcileLockKey(1), "held"))
	require.NoError(t, job.Handle(context.Background(), sweepTask(t)))

	require.Len(t, reconciler.created, 1)
	require.Equal(t, int64(2), reconciler.created[0].JobID)

	// Per-job locks taken by the sweep itself are released; the foreign one is not.
	require.True(t, mr.Exists(shared.JobReconcileLockKey(1)))
	require.False(t, mr.Exists(shared.JobReconcileLockKey(2)))
}

func TestDeviationScanHandlesAlerts(t *testing.T) {
	reconciler := &fakeReconciler{scannedAlerts: []reconcile.Alert{
		{JobID: 1, Type: reconcile.AlertTypeDeviation, Severity: reconcile.SeverityCritical, Message: "margin collapsed"},
		{JobID: 2, Type: reconcile.AlertTypeDeviation, Severity: reconcile.SeverityMedium, Message: "duration overrun"},
	}}
	job := NewDeviationScanJob(reconciler, nil, testMetrics())

	task, err := NewDeviationScanTask(DeviationScanPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
}
