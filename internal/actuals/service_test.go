package actuals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charpente-erp/charpente/internal/projects"
)

type stubRepo struct {
	entries     []TimeEntry
	amounts     []float64
	assignments []Assignment
}

func (s stubRepo) TimeEntries(ctx context.Context, jobID int64) ([]TimeEntry, error) {
	return s.entries, nil
}

func (s stubRepo) PurchaseAmounts(ctx context.Context, jobID int64) ([]float64, error) {
	return s.amounts, nil
}

func (s stubRepo) Assignments(ctx context.Context, jobID int64) ([]Assignment, error) {
	return s.assignments, nil
}

type stubJobs struct {
	job projects.Project
}

func (s stubJobs) Get(ctx context.Context, id int64) (projects.Project, error) {
	if s.job.ID != id {
		return projects.Project{}, projects.ErrNotFound
	}
	return s.job, nil
}

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeAggregatesAllSources(t *testing.T) {
	repo := stubRepo{
		entries: []TimeEntry{
			{UserID: "u1", Hours: 7, Rate: 30, EntryDate: day(2)},
			{UserID: "u2", Hours: 4, Rate: 25, EntryDate: day(3)},
		},
		amounts: []float64{1200, 800.5},
		assignments: []Assignment{
			{UserID: "u1", Date: day(2), Type: ActivityFabrication, RatePerHour: 30},
			{UserID: "u1", Date: day(3), Type: ActivityFabrication, RatePerHour: 30},
			{UserID: "u2", Date: day(5), Type: ActivityInstallation, RatePerHour: 25},
		},
	}
	jobs := stubJobs{job: projects.Project{ID: 7, ContractAmount: 10000}}
	svc := NewService(repo, jobs, 180)

	figures, err := svc.Compute(context.Background(), 7)
	require.NoError(t, err)

	require.InDelta(t, 7*30.0+4*25.0, figures.LaborCost, 0.0001)
	require.InDelta(t, 2000.5, figures.PurchasingCost, 0.0001)
	require.Equal(t, 2, figures.FabricationHalfDays)
	require.Equal(t, 1, figures.InstallationHalfDays)
	require.InDelta(t, 3.0, figures.TotalDuration, 0.0001)
	require.InDelta(t, 3*180.0, figures.OverheadCost, 0.0001)
	require.Equal(t, 2, figures.Headcount)
	require.InDelta(t, 27.5, figures.AvgHourlyRate, 0.0001)
	require.NotNil(t, figures.ActualStart)
	require.NotNil(t, figures.ActualEnd)
	require.Equal(t, day(2), *figures.ActualStart)
	require.Equal(t, day(5), *figures.ActualEnd)
	require.InDelta(t, figures.LaborCost+figures.PurchasingCost+figures.OverheadCost, figures.TotalAmount, 0.0001)
	require.InDelta(t, 10000-figures.TotalAmount, figures.Margin, 0.0001)
	require.Equal(t, Sources{TimeTracking: true, Purchasing: true, Overhead: true, Planning: true}, figures.Consulted)
}

func TestComputeZeroActivityJob(t *testing.T) {
	jobs := stubJobs{job: projects.Project{ID: 7}}
	svc := NewService(stubRepo{}, jobs, 180)

	figures, err := svc.Compute(context.Background(), 7)
	require.NoError(t, err)

	require.Zero(t, figures.LaborCost)
	require.Zero(t, figures.PurchasingCost)
	require.Zero(t, figures.OverheadCost)
	require.Zero(t, figures.TotalDuration)
	require.Zero(t, figures.Headcount)
	require.Zero(t, figures.AvgHourlyRate)
	require.Zero(t, figures.Margin)
	require.Nil(t, figures.ActualStart)
	require.Nil(t, figures.ActualEnd)
	require.Equal(t, Sources{}, figures.Consulted)
}

func TestComputeMarginRequiresContractAmount(t *testing.T) {
	repo := stubRepo{amounts: []float64{500}}
	jobs := stubJobs{job: projects.Project{ID: 7}}
	svc := NewService(repo, jobs, 180)

	figures, err := svc.Compute(context.Background(), 7)
	require.NoError(t, err)
	require.InDelta(t, 500.0, figures.PurchasingCost, 0.0001)
	require.Zero(t, figures.Margin)
}

func TestComputeUnknownJob(t *testing.T) {
	svc := NewService(stubRepo{}, stubJobs{job: projects.Project{ID: 1}}, 180)
	_, err := svc.Compute(context.Background(), 99)
	require.ErrorIs(t, err, projects.ErrNotFound)
}
