package projects

import (
	"context"
	"errors"
	"fmt"
)

// RepositoryPort abstracts the store for the service.
type RepositoryPort interface {
	Create(ctx context.Context, project Project) (int64, error)
	Get(ctx context.Context, id int64) (Project, error)
	List(ctx context.Context, statuses []Status) ([]Project, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

// Service coordinates job registry operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds the service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a new job in PLANNED status unless specified otherwise.
func (s *Service) Create(ctx context.Context, project Project) (Project, error) {
	if project.Number == "" || project.Label == "" {
		return Project{}, errors.New("projects: number and label required")
	}
	if project.Status == "" {
		project.Status = StatusPlanned
	}
	if !project.Status.Valid() {
		return Project{}, fmt.Errorf("%w: %s", ErrInvalidStatus, project.Status)
	}
	id, err := s.repo.Create(ctx, project)
	if err != nil {
		return Project{}, err
	}
	return s.repo.Get(ctx, id)
}

// Get fetches one job.
func (s *Service) Get(ctx context.Context, id int64) (Project, error) {
	return s.repo.Get(ctx, id)
}

// List enumerates jobs, optionally filtered by status.
func (s *Service) List(ctx context.Context, statuses []Status) ([]Project, error) {
	for _, st := range statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, st)
		}
	}
	return s.repo.List(ctx, statuses)
}

// Active lists jobs eligible for scheduled reconciliation.
func (s *Service) Active(ctx context.Context) ([]Project, error) {
	return s.repo.List(ctx, []Status{StatusPlanned, StatusInProgress})
}

// UpdateStatus transitions the job lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status) (Project, error) {
	if !status.Valid() {
		return Project{}, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return Project{}, err
	}
	return s.repo.Get(ctx, id)
}
