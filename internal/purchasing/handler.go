package purchasing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/charpente-erp/charpente/internal/platform/httpx"
	"github.com/charpente-erp/charpente/internal/projects"
)

// DocumentRequest creates or replaces a purchase document.
type DocumentRequest struct {
	JobID         int64     `json:"job_id" validate:"required,gt=0"`
	Type          string    `json:"type" validate:"required,oneof=ORDER INVOICE"`
	Supplier      string    `json:"supplier" validate:"required,max=255"`
	Reference     string    `json:"reference,omitempty" validate:"max=64"`
	AmountExclTax float64   `json:"amount_excl_tax" validate:"gte=0"`
	DocumentDate  time.Time `json:"document_date" validate:"required"`
}

// Handler exposes the purchasing HTTP surface.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches purchasing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/purchase-documents", h.Create)
	r.Get("/purchase-documents/{id}", h.Show)
	r.Put("/purchase-documents/{id}", h.Update)
	r.Delete("/purchase-documents/{id}", h.Delete)
	r.Get("/jobs/{jobID}/purchase-documents", h.ListForJob)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	doc, err := h.service.Create(r.Context(), Document{
		JobID:         req.JobID,
		Type:          DocumentType(req.Type),
		Supplier:      req.Supplier,
		Reference:     req.Reference,
		AmountExclTax: req.AmountExclTax,
		DocumentDate:  req.DocumentDate,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	doc, err := h.service.Update(r.Context(), Document{
		ID:            id,
		JobID:         req.JobID,
		Type:          DocumentType(req.Type),
		Supplier:      req.Supplier,
		Reference:     req.Reference,
		AmountExclTax: req.AmountExclTax,
		DocumentDate:  req.DocumentDate,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	doc, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) ListForJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.pathID(w, r, "jobID")
	if !ok {
		return
	}
	documents, err := h.service.ListForJob(r.Context(), jobID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": documents})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (DocumentRequest, bool) {
	var req DocumentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, projects.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidType), errors.Is(err, ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("purchasing request failed", slog.Any("error", err))
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
