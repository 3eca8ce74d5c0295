package projects

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/charpente-erp/charpente/internal/platform/httpx"
)

// CreateProjectRequest registers a new job.
type CreateProjectRequest struct {
	Number         string  `json:"number" validate:"required,max=32"`
	Label          string  `json:"label" validate:"required,max=255"`
	Client         string  `json:"client" validate:"required,max=255"`
	Status         string  `json:"status,omitempty" validate:"omitempty,oneof=PLANNED IN_PROGRESS DONE CANCELLED"`
	ContractAmount float64 `json:"contract_amount" validate:"gte=0"`
}

// UpdateStatusRequest transitions a job.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PLANNED IN_PROGRESS DONE CANCELLED"`
}

// Handler exposes the job registry HTTP surface.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches job registry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/jobs", h.List)
	r.Post("/jobs", h.Create)
	r.Get("/jobs/{jobID}", h.Show)
	r.Post("/jobs/{jobID}/status", h.UpdateStatus)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	project, err := h.service.Create(r.Context(), Project{
		Number:         req.Number,
		Label:          req.Label,
		Client:         req.Client,
		Status:         Status(req.Status),
		ContractAmount: req.ContractAmount,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, project)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "jobID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	project, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, project)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var statuses []Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, Status(s))
		}
	}
	projects, err := h.service.List(r.Context(), statuses)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": projects})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "jobID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req UpdateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	project, err := h.service.UpdateStatus(r.Context(), id, Status(req.Status))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, project)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateNumber):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("projects request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
