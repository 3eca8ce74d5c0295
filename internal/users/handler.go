package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/charpente-erp/charpente/internal/platform/httpx"
)

// CreateUserRequest registers a new user.
type CreateUserRequest struct {
	FirstName      string  `json:"first_name" validate:"required,max=100"`
	LastName       string  `json:"last_name" validate:"required,max=100"`
	Email          string  `json:"email" validate:"required,email"`
	Role           string  `json:"role" validate:"required,oneof=ADMIN MANAGER WORKSHOP INSTALLER"`
	HourlyCostRate float64 `json:"hourly_cost_rate" validate:"gte=0"`
	Password       string  `json:"password" validate:"required,min=8"`
}

// SetRateRequest updates the hourly cost rate.
type SetRateRequest struct {
	HourlyCostRate float64 `json:"hourly_cost_rate" validate:"gte=0"`
}

// Handler exposes the user registry HTTP surface.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches user registry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/users", h.List)
	r.Post("/users", h.Create)
	r.Get("/users/{id}", h.Show)
	r.Put("/users/{id}/rate", h.SetRate)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	user, err := h.service.Create(r.Context(), CreateInput{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Role:           Role(req.Role),
		HourlyCostRate: req.HourlyCostRate,
		Password:       req.Password,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": users})
}

func (h *Handler) SetRate(w http.ResponseWriter, r *http.Request) {
	var req SetRateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	user, err := h.service.SetRate(r.Context(), chi.URLParam(r, "id"), req.HourlyCostRate)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateEmail):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidRole):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("users request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
