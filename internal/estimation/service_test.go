package estimation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charpente-erp/charpente/internal/projects"
)

type memoryRepo struct {
	estimations map[int64]Estimation
	details     map[int64][]Detail
	referenced  map[int64]bool
	nextID      int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		estimations: make(map[int64]Estimation),
		details:     make(map[int64][]Detail),
		referenced:  make(map[int64]bool),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetByID(ctx context.Context, id int64) (Estimation, error) {
	e, ok := r.estimations[id]
	if !ok {
		return Estimation{}, ErrNotFound
	}
	e.Details = append([]Detail{}, r.details[id]...)
	return e, nil
}

func (r *memoryRepo) ListForJob(ctx context.Context, jobID int64) ([]Estimation, error) {
	out := []Estimation{}
	for id, e := range r.estimations {
		if e.JobID != jobID {
			continue
		}
		e.Details = append([]Detail{}, r.details[id]...)
		out = append(out, e)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Version > out[i].Version {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (r *memoryRepo) LatestValidated(ctx context.Context, jobID int64) (Estimation, error) {
	var best *Estimation
	for id, e := range r.estimations {
		if e.JobID != jobID || e.Status != StatusValidated {
			continue
		}
		if best == nil || e.Version > best.Version {
			copied := e
			copied.Details = append([]Detail{}, r.details[id]...)
			best = &copied
		}
	}
	if best == nil {
		return Estimation{}, ErrNoValidated
	}
	return *best, nil
}

func (r *memoryRepo) HasComparisons(ctx context.Context, estimationID int64) (bool, error) {
	return r.referenced[estimationID], nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.estimations[id]; !ok {
		return ErrNotFound
	}
	delete(r.estimations, id)
	delete(r.details, id)
	return nil
}

func (tx *memoryTx) NextVersion(ctx context.Context, jobID int64) (int, error) {
	max := 0
	for _, e := range tx.repo.estimations {
		if e.JobID == jobID && e.Version > max {
			max = e.Version
		}
	}
	return max + 1, nil
}

func (tx *memoryTx) InsertEstimation(ctx context.Context, e Estimation) (int64, error) {
	tx.repo.nextID++
	e.ID = tx.repo.nextID
	tx.repo.estimations[e.ID] = e
	return e.ID, nil
}

func (tx *memoryTx) UpdateEstimation(ctx context.Context, e Estimation) error {
	existing, ok := tx.repo.estimations[e.ID]
	if !ok {
		return ErrNotFound
	}
	e.Version = existing.Version
	e.Status = existing.Status
	tx.repo.estimations[e.ID] = e
	return nil
}

func (tx *memoryTx) DeleteDetails(ctx context.Context, estimationID int64) error {
	delete(tx.repo.details, estimationID)
	return nil
}

func (tx *memoryTx) InsertDetails(ctx context.Context, estimationID int64, details []Detail) error {
	for i := range details {
		tx.repo.nextID++
		details[i].ID = tx.repo.nextID
		details[i].EstimationID = estimationID
	}
	tx.repo.details[estimationID] = append(tx.repo.details[estimationID], details...)
	return nil
}

func (tx *memoryTx) MarkValidated(ctx context.Context, id int64, validatedBy string, validatedAt time.Time) error {
	e, ok := tx.repo.estimations[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = StatusValidated
	e.ValidatedBy = &validatedBy
	e.ValidatedAt = &validatedAt
	tx.repo.estimations[id] = e
	return nil
}

type stubJobs struct {
	jobs map[int64]projects.Project
}

func (s stubJobs) Get(ctx context.Context, id int64) (projects.Project, error) {
	job, ok := s.jobs[id]
	if !ok {
		return projects.Project{}, projects.ErrNotFound
	}
	return job, nil
}

func newTestService(repo *memoryRepo) *Service {
	jobs := stubJobs{jobs: map[int64]projects.Project{
		1: {ID: 1, Number: "AFF-2026-001", Label: "Charpente hangar", Status: projects.StatusInProgress, ContractAmount: 50000},
	}}
	return NewService(repo, jobs, nil)
}

func ptr[T any](v T) *T { return &v }

func TestCreateAssignsMonotonicVersions(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateRequest{JobID: 1, TotalAmount: ptr(42000.0)})
	require.NoError(t, err)
	require.Equal(t, 1, first.Version)
	require.Equal(t, StatusDraft, first.Status)
	require.InDelta(t, 42000.0, first.TotalAmount, 0.0001)

	second, err := svc.Create(ctx, CreateRequest{JobID: 1, QuoteAmount: ptr(45000.0)})
	require.NoError(t, err)
	require.Equal(t, 2, second.Version)
	require.InDelta(t, 45000.0, second.TotalAmount, 0.0001)

	_, err = svc.Create(ctx, CreateRequest{JobID: 99})
	require.ErrorIs(t, err, projects.ErrNotFound)
}

func TestQuoteAmountAliasCanonicalWins(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), CreateRequest{
		JobID:       1,
		TotalAmount: ptr(42000.0),
		QuoteAmount: ptr(41000.0),
	})
	require.NoError(t, err)
	require.InDelta(t, 42000.0, created.TotalAmount, 0.0001)
}

func TestUpdateReplacesDetailLines(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateRequest{JobID: 1, Details: []DetailRequest{
		{Category: "FABRICATION", Label: "Débit", Amount: 1200},
		{Category: "FABRICATION", Label: "Assemblage", Amount: 2400},
		{Category: "POSE", Label: "Levage", Amount: 900},
	}})
	require.NoError(t, err)
	require.Len(t, created.Details, 3)

	updated, err := svc.Update(ctx, created.ID, UpdateRequest{Details: &[]DetailRequest{
		{Category: "POSE", Label: "Levage grue", Amount: 1500},
	}})
	require.NoError(t, err)
	require.Len(t, updated.Details, 1)
	require.Equal(t, "Levage grue", updated.Details[0].Label)

	// Omitting details leaves the lines untouched.
	unchanged, err := svc.Update(ctx, created.ID, UpdateRequest{TotalAmount: ptr(9000.0)})
	require.NoError(t, err)
	require.Len(t, unchanged.Details, 1)
	require.InDelta(t, 9000.0, unchanged.TotalAmount, 0.0001)
}

func TestUpdateRejectedAfterValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateRequest{JobID: 1})
	require.NoError(t, err)

	_, err = svc.Validate(ctx, created.ID, "chef1")
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, UpdateRequest{TotalAmount: ptr(100.0)})
	require.ErrorIs(t, err, ErrNotEditable)
}

func TestValidateIsOneWay(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateRequest{JobID: 1})
	require.NoError(t, err)

	validated, err := svc.Validate(ctx, created.ID, "chef1")
	require.NoError(t, err)
	require.Equal(t, StatusValidated, validated.Status)
	require.NotNil(t, validated.ValidatedBy)
	require.Equal(t, "chef1", *validated.ValidatedBy)
	require.NotNil(t, validated.ValidatedAt)

	// Validating again is a no-op that keeps the original validator.
	again, err := svc.Validate(ctx, created.ID, "chef2")
	require.NoError(t, err)
	require.Equal(t, "chef1", *again.ValidatedBy)

	archived := repo.estimations[created.ID]
	archived.Status = StatusArchived
	repo.estimations[created.ID] = archived

	_, err = svc.Validate(ctx, created.ID, "chef1")
	require.ErrorIs(t, err, ErrArchived)
}

func TestLatestValidatedPicksHighestVersion(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	v1, err := svc.Create(ctx, CreateRequest{JobID: 1, TotalAmount: ptr(40000.0)})
	require.NoError(t, err)
	v2, err := svc.Create(ctx, CreateRequest{JobID: 1, TotalAmount: ptr(43000.0)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateRequest{JobID: 1, TotalAmount: ptr(46000.0)})
	require.NoError(t, err)

	_, err = svc.LatestValidated(ctx, 1)
	require.ErrorIs(t, err, ErrNoValidated)

	_, err = svc.Validate(ctx, v1.ID, "chef1")
	require.NoError(t, err)
	_, err = svc.Validate(ctx, v2.ID, "chef1")
	require.NoError(t, err)

	latest, err := svc.LatestValidated(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, v2.ID, latest.ID)
	require.Equal(t, 2, latest.Version)
}

func TestDeleteBlockedByComparisons(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateRequest{JobID: 1})
	require.NoError(t, err)

	repo.referenced[created.ID] = true
	require.ErrorIs(t, svc.Delete(ctx, created.ID), ErrHasComparisons)

	repo.referenced[created.ID] = false
	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.GetByID(ctx, created.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExtendedAttributesRoundTrip(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	raw := json.RawMessage(`{
		"fabrication_split": {"atelier": 60, "chantier": 40},
		"purchase_categories": {"bois": 12000, "quincaillerie": 1800},
		"ui_layout": {"collapsed": true}
	}`)
	created, err := svc.Create(ctx, CreateRequest{JobID: 1, Extended: raw})
	require.NoError(t, err)
	require.NotNil(t, created.Extended)
	require.InDelta(t, 60.0, created.Extended.FabricationSplit["atelier"], 0.0001)
	require.Contains(t, created.Extended.Extra, "ui_layout")

	encoded, err := json.Marshal(created.Extended)
	require.NoError(t, err)

	var flat map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(encoded, &flat))
	require.Contains(t, flat, "fabrication_split")
	require.Contains(t, flat, "purchase_categories")
	require.JSONEq(t, `{"collapsed": true}`, string(flat["ui_layout"]))
}

func TestDetailDisplayOrderDefaults(t *testing.T) {
	details := detailsFromRequests(1, []DetailRequest{
		{Category: "POSE", Label: "c", DisplayOrder: 3},
		{Category: "FABRICATION", Label: "a"},
		{Category: "FABRICATION", Label: "b"},
	})
	require.Equal(t, []int{2, 3, 3}, []int{details[0].DisplayOrder, details[1].DisplayOrder, details[2].DisplayOrder})
	require.Equal(t, "a", details[0].Label)
}
