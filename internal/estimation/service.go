package estimation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/charpente-erp/charpente/internal/projects"
	"github.com/charpente-erp/charpente/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByID(ctx context.Context, id int64) (Estimation, error)
	ListForJob(ctx context.Context, jobID int64) ([]Estimation, error)
	LatestValidated(ctx context.Context, jobID int64) (Estimation, error)
	HasComparisons(ctx context.Context, estimationID int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	NextVersion(ctx context.Context, jobID int64) (int, error)
	InsertEstimation(ctx context.Context, e Estimation) (int64, error)
	UpdateEstimation(ctx context.Context, e Estimation) error
	DeleteDetails(ctx context.Context, estimationID int64) error
	InsertDetails(ctx context.Context, estimationID int64, details []Detail) error
	MarkValidated(ctx context.Context, id int64, validatedBy string, validatedAt time.Time) error
}

// JobRegistry verifies job references.
type JobRegistry interface {
	Get(ctx context.Context, id int64) (projects.Project, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates estimation lifecycle operations.
type Service struct {
	repo  RepositoryPort
	jobs  JobRegistry
	audit AuditPort
	now   func() time.Time
}

// NewService builds the service.
func NewService(repo RepositoryPort, jobs JobRegistry, audit AuditPort) *Service {
	return &Service{repo: repo, jobs: jobs, audit: audit, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a new DRAFT estimation and its detail lines in one
// transaction. The version is the next monotonic value for the job.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Estimation, error) {
	if _, err := s.jobs.Get(ctx, req.JobID); err != nil {
		return Estimation{}, fmt.Errorf("verify job: %w", err)
	}
	extended, err := decodeExtended(req.Extended)
	if err != nil {
		return Estimation{}, err
	}

	e := Estimation{
		JobID:          req.JobID,
		Status:         StatusDraft,
		TotalAmount:    req.CanonicalTotalAmount(),
		TotalDuration:  req.TotalDuration,
		LaborCost:      req.LaborCost,
		PurchasingCost: req.PurchasingCost,
		OverheadCost:   req.OverheadCost,
		Margin:         req.Margin,
		Headcount:      req.Headcount,
		AvgHourlyRate:  req.AvgHourlyRate,
		PlannedStart:   req.PlannedStart,
		PlannedEnd:     req.PlannedEnd,
		Extended:       extended,
	}

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		version, err := tx.NextVersion(ctx, req.JobID)
		if err != nil {
			return err
		}
		e.Version = version
		id, err = tx.InsertEstimation(ctx, e)
		if err != nil {
			return err
		}
		return tx.InsertDetails(ctx, id, detailsFromRequests(id, req.Details))
	})
	if err != nil {
		return Estimation{}, err
	}
	return s.repo.GetByID(ctx, id)
}

// Update applies a partial update to a DRAFT estimation. When Details is
// supplied it is a full replace: prior lines are deleted and the new list is
// inserted fresh.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (Estimation, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Estimation{}, err
	}
	if existing.Status != StatusDraft {
		return Estimation{}, ErrNotEditable
	}

	if v := req.CanonicalTotalAmount(); v != nil {
		existing.TotalAmount = *v
	}
	if req.TotalDuration != nil {
		existing.TotalDuration = *req.TotalDuration
	}
	if req.LaborCost != nil {
		existing.LaborCost = *req.LaborCost
	}
	if req.PurchasingCost != nil {
		existing.PurchasingCost = *req.PurchasingCost
	}
	if req.OverheadCost != nil {
		existing.OverheadCost = *req.OverheadCost
	}
	if req.Margin != nil {
		existing.Margin = *req.Margin
	}
	if req.Headcount != nil {
		existing.Headcount = *req.Headcount
	}
	if req.AvgHourlyRate != nil {
		existing.AvgHourlyRate = *req.AvgHourlyRate
	}
	if req.PlannedStart != nil {
		existing.PlannedStart = req.PlannedStart
	}
	if req.PlannedEnd != nil {
		existing.PlannedEnd = req.PlannedEnd
	}
	if len(req.Extended) > 0 {
		extended, err := decodeExtended(req.Extended)
		if err != nil {
			return Estimation{}, err
		}
		existing.Extended = extended
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateEstimation(ctx, existing); err != nil {
			return err
		}
		if req.Details == nil {
			return nil
		}
		if err := tx.DeleteDetails(ctx, id); err != nil {
			return err
		}
		return tx.InsertDetails(ctx, id, detailsFromRequests(id, *req.Details))
	})
	if err != nil {
		return Estimation{}, err
	}
	return s.repo.GetByID(ctx, id)
}

// Validate transitions a DRAFT estimation to VALIDATED, recording the
// validator and timestamp. Validation is one-way: an already VALIDATED
// estimation is returned unchanged, an ARCHIVED one is rejected.
func (s *Service) Validate(ctx context.Context, id int64, validatedBy string) (Estimation, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Estimation{}, err
	}
	switch existing.Status {
	case StatusValidated:
		return existing, nil
	case StatusArchived:
		return Estimation{}, ErrArchived
	}

	validatedAt := s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.MarkValidated(ctx, id, validatedBy, validatedAt)
	})
	if err != nil {
		return Estimation{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  validatedBy,
			Action:   "estimation:validate",
			Entity:   "estimation",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"job_id": existing.JobID, "version": existing.Version},
		})
	}
	return s.repo.GetByID(ctx, id)
}

// Delete removes an estimation. Deletion is blocked while comparisons
// reference it so reconciliation history stays intact.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	referenced, err := s.repo.HasComparisons(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return ErrHasComparisons
	}
	return s.repo.Delete(ctx, id)
}

// GetByID fetches one estimation with details ordered by display order.
func (s *Service) GetByID(ctx context.Context, id int64) (Estimation, error) {
	return s.repo.GetByID(ctx, id)
}

// ListForJob lists a job's estimations, newest version first.
func (s *Service) ListForJob(ctx context.Context, jobID int64) ([]Estimation, error) {
	if _, err := s.jobs.Get(ctx, jobID); err != nil {
		return nil, fmt.Errorf("verify job: %w", err)
	}
	return s.repo.ListForJob(ctx, jobID)
}

// LatestValidated returns the only version that participates in reconciliation.
func (s *Service) LatestValidated(ctx context.Context, jobID int64) (Estimation, error) {
	return s.repo.LatestValidated(ctx, jobID)
}

func detailsFromRequests(estimationID int64, reqs []DetailRequest) []Detail {
	details := make([]Detail, 0, len(reqs))
	for i, r := range reqs {
		d := Detail{
			EstimationID: estimationID,
			Category:     r.Category,
			SubCategory:  r.SubCategory,
			Label:        r.Label,
			Quantity:     r.Quantity,
			Unit:         r.Unit,
			UnitPrice:    r.UnitPrice,
			Amount:       r.Amount,
			Comment:      r.Comment,
			DisplayOrder: r.DisplayOrder,
		}
		if d.DisplayOrder == 0 {
			d.DisplayOrder = i + 1
		}
		details = append(details, d)
	}
	sort.SliceStable(details, func(i, j int) bool { return details[i].DisplayOrder < details[j].DisplayOrder })
	return details
}

func decodeExtended(raw json.RawMessage) (*ExtendedAttributes, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var extended ExtendedAttributes
	if err := json.Unmarshal(raw, &extended); err != nil {
		return nil, fmt.Errorf("estimation: decode extended attributes: %w", err)
	}
	if extended.IsEmpty() {
		return nil, nil
	}
	return &extended, nil
}
