package actuals

import (
	"context"
	"fmt"
	"time"

	"github.com/charpente-erp/charpente/internal/projects"
)

// RepositoryPort abstracts the operational reads.
type RepositoryPort interface {
	TimeEntries(ctx context.Context, jobID int64) ([]TimeEntry, error)
	PurchaseAmounts(ctx context.Context, jobID int64) ([]float64, error)
	Assignments(ctx context.Context, jobID int64) ([]Assignment, error)
}

// JobRegistry supplies the contract amount for margin computation.
type JobRegistry interface {
	Get(ctx context.Context, id int64) (projects.Project, error)
}

// Service aggregates measured figures for a job. Pure read/compute, no
// persisted state of its own.
type Service struct {
	repo               RepositoryPort
	jobs               JobRegistry
	overheadPerHalfDay float64
}

// NewService builds the service. overheadPerHalfDay is the configured fixed
// overhead rate applied per planning assignment.
func NewService(repo RepositoryPort, jobs JobRegistry, overheadPerHalfDay float64) *Service {
	return &Service{repo: repo, jobs: jobs, overheadPerHalfDay: overheadPerHalfDay}
}

// Compute aggregates labor, purchasing, planning and overhead figures for a
// job. A job with zero activity yields all-zero figures, not an error. Margin
// is contract amount minus costs when the job carries a contract amount.
func (s *Service) Compute(ctx context.Context, jobID int64) (Figures, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return Figures{}, fmt.Errorf("verify job: %w", err)
	}

	entries, err := s.repo.TimeEntries(ctx, jobID)
	if err != nil {
		return Figures{}, fmt.Errorf("load time entries: %w", err)
	}
	amounts, err := s.repo.PurchaseAmounts(ctx, jobID)
	if err != nil {
		return Figures{}, fmt.Errorf("load purchase documents: %w", err)
	}
	assignments, err := s.repo.Assignments(ctx, jobID)
	if err != nil {
		return Figures{}, fmt.Errorf("load planning assignments: %w", err)
	}

	figures := Figures{JobID: jobID}

	for _, e := range entries {
		figures.LaborCost += e.Hours * e.Rate
	}
	for _, a := range amounts {
		figures.PurchasingCost += a
	}

	userRates := map[string]float64{}
	var start, end time.Time
	for _, a := range assignments {
		switch a.Type {
		case ActivityInstallation:
			figures.InstallationHalfDays++
		default:
			figures.FabricationHalfDays++
		}
		userRates[a.UserID] = a.RatePerHour
		if start.IsZero() || a.Date.Before(start) {
			start = a.Date
		}
		if end.IsZero() || a.Date.After(end) {
			end = a.Date
		}
	}
	figures.TotalDuration = float64(figures.FabricationHalfDays + figures.InstallationHalfDays)
	figures.OverheadCost = float64(len(assignments)) * s.overheadPerHalfDay
	figures.Headcount = len(userRates)
	if len(userRates) > 0 {
		var sum float64
		for _, rate := range userRates {
			sum += rate
		}
		figures.AvgHourlyRate = sum / float64(len(userRates))
	}
	if !start.IsZero() {
		figures.ActualStart = &start
		figures.ActualEnd = &end
	}

	figures.TotalAmount = figures.LaborCost + figures.PurchasingCost + figures.OverheadCost
	if job.ContractAmount > 0 {
		figures.Margin = job.ContractAmount - figures.LaborCost - figures.PurchasingCost - figures.OverheadCost
	}

	figures.Consulted = Sources{
		TimeTracking: len(entries) > 0,
		Purchasing:   len(amounts) > 0,
		Overhead:     len(assignments) > 0,
		Planning:     len(assignments) > 0,
	}
	return figures, nil
}
