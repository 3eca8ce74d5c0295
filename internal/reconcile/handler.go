package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/charpente-erp/charpente/internal/estimation"
	"github.com/charpente-erp/charpente/internal/platform/httpx"
	"github.com/charpente-erp/charpente/internal/projects"
	"github.com/charpente-erp/charpente/internal/shared"
)

// DefaultPerformanceWindow is the trailing window of the accuracy report.
const DefaultPerformanceWindow = 90 * 24 * time.Hour

// EstimationReader extends EstimationStore with the job-level listing used
// by the dashboard view.
type EstimationReader interface {
	EstimationStore
	ListForJob(ctx context.Context, jobID int64) ([]estimation.Estimation, error)
}

// CreateComparisonRequest triggers a reconciliation run.
type CreateComparisonRequest struct {
	JobID        int64  `json:"job_id" validate:"required,gt=0"`
	EstimationID int64  `json:"estimation_id" validate:"required,gt=0"`
	Type         string `json:"type" validate:"required,oneof=SNAPSHOT REALTIME FINAL"`
	Comment      string `json:"comment,omitempty"`
}

// Handler exposes the reconciliation HTTP surface.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	estimations EstimationReader
	validate    *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, estimations EstimationReader) *Handler {
	return &Handler{logger: logger, service: service, estimations: estimations, validate: validator.New()}
}

func (h *Handler) CreateComparison(w http.ResponseWriter, r *http.Request) {
	var req CreateComparisonRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	comparison, err := h.service.CreateComparison(r.Context(), CreateInput{
		JobID:        req.JobID,
		EstimationID: req.EstimationID,
		Type:         ComparisonType(req.Type),
		ComputedBy:   shared.ActorFromContext(r.Context()),
		Comment:      req.Comment,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, comparison)
}

func (h *Handler) ShowComparison(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	comparison, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, comparison)
}

func (h *Handler) ListForJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.pathID(w, r, "jobID")
	if !ok {
		return
	}
	comparisons, err := h.service.ListForJob(r.Context(), jobID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": comparisons})
}

func (h *Handler) DeviationSummary(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.pathID(w, r, "jobID")
	if !ok {
		return
	}
	summary, err := h.service.DeviationSummary(r.Context(), jobID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

// Dashboard aggregates a job's reconciliation view: the deviation summary,
// the full comparison history and the job's estimations, read in parallel.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.pathID(w, r, "jobID")
	if !ok {
		return
	}

	var (
		summary     Summary
		comparisons []Comparison
		estimations []estimation.Estimation
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		s, err := h.service.DeviationSummary(ctx, jobID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		summary = s
		return nil
	})
	g.Go(func() error {
		var err error
		comparisons, err = h.service.ListForJob(ctx, jobID)
		return err
	})
	g.Go(func() error {
		var err error
		estimations, err = h.estimations.ListForJob(ctx, jobID)
		return err
	})
	if err := g.Wait(); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"summary":     summary,
		"comparisons": comparisons,
		"estimations": estimations,
	})
}

func (h *Handler) PerformanceMetrics(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.PerformanceMetrics(r.Context(), DefaultPerformanceWindow)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var jobID *int64
	if v := r.URL.Query().Get("job_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid job_id")
			return
		}
		jobID = &id
	}
	rows, err := h.service.ExportRows(r.Context(), jobID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="comparisons.csv"`)
	if err := WriteCSV(w, rows); err != nil {
		h.logger.Error("write comparison export", slog.Any("error", err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, estimation.ErrNotFound),
		errors.Is(err, estimation.ErrNoValidated), errors.Is(err, projects.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidType):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("reconcile request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}
