package purchasing

import (
	"context"
	"fmt"

	"github.com/charpente-erp/charpente/internal/projects"
)

// RepositoryPort abstracts the store for the service.
type RepositoryPort interface {
	Create(ctx context.Context, doc Document) (int64, error)
	Update(ctx context.Context, doc Document) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (Document, error)
	ListForJob(ctx context.Context, jobID int64) ([]Document, error)
}

// JobRegistry verifies job references.
type JobRegistry interface {
	Get(ctx context.Context, id int64) (projects.Project, error)
}

// Service coordinates purchase document operations.
type Service struct {
	repo RepositoryPort
	jobs JobRegistry
}

// NewService builds the service.
func NewService(repo RepositoryPort, jobs JobRegistry) *Service {
	return &Service{repo: repo, jobs: jobs}
}

// Create records a purchase document against a job.
func (s *Service) Create(ctx context.Context, doc Document) (Document, error) {
	if err := validate(doc); err != nil {
		return Document{}, err
	}
	if _, err := s.jobs.Get(ctx, doc.JobID); err != nil {
		return Document{}, fmt.Errorf("verify job: %w", err)
	}
	id, err := s.repo.Create(ctx, doc)
	if err != nil {
		return Document{}, err
	}
	return s.repo.Get(ctx, id)
}

// Update replaces the mutable fields of a document.
func (s *Service) Update(ctx context.Context, doc Document) (Document, error) {
	if err := validate(doc); err != nil {
		return Document{}, err
	}
	if err := s.repo.Update(ctx, doc); err != nil {
		return Document{}, err
	}
	return s.repo.Get(ctx, doc.ID)
}

// Delete removes a document.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Get fetches one document.
func (s *Service) Get(ctx context.Context, id int64) (Document, error) {
	return s.repo.Get(ctx, id)
}

// ListForJob lists a job's documents, newest first.
func (s *Service) ListForJob(ctx context.Context, jobID int64) ([]Document, error) {
	if _, err := s.jobs.Get(ctx, jobID); err != nil {
		return nil, fmt.Errorf("verify job: %w", err)
	}
	return s.repo.ListForJob(ctx, jobID)
}

func validate(doc Document) error {
	if !doc.Type.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidType, doc.Type)
	}
	if doc.AmountExclTax < 0 {
		return ErrInvalidAmount
	}
	return nil
}
