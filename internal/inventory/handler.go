package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/charpente-erp/charpente/internal/platform/httpx"
	"github.com/charpente-erp/charpente/internal/shared"
)

// Handler exposes the inventory HTTP surface.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func (h *Handler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	var req CreateArticleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	article, err := h.service.CreateArticle(r.Context(), Article{
		Code:         req.Code,
		Designation:  req.Designation,
		Unit:         req.Unit,
		Supplier:     req.Supplier,
		Location:     req.Location,
		CurrentStock: req.InitialStock,
		MinStock:     req.MinStock,
		MaxStock:     req.MaxStock,
		UnitPrice:    req.UnitPrice,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, article)
}

func (h *Handler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateArticleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	article, err := h.service.UpdateArticle(r.Context(), Article{
		ID:          id,
		Designation: req.Designation,
		Unit:        req.Unit,
		Supplier:    req.Supplier,
		Location:    req.Location,
		MinStock:    req.MinStock,
		MaxStock:    req.MaxStock,
		UnitPrice:   req.UnitPrice,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, article)
}

func (h *Handler) DeactivateArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeactivateArticle(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ShowArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	article, err := h.service.GetArticle(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, article)
}

func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	skip, take := paging(r)
	articles, total, err := h.service.ListArticles(r.Context(), ArticleFilter{
		Search:     r.URL.Query().Get("search"),
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Skip:       skip,
		Take:       take,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      articles,
		"pagination": shared.NewPagination(skip, take, total),
	})
}

func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	articles, err := h.service.LowStock(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": articles})
}

func (h *Handler) CreateMovement(w http.ResponseWriter, r *http.Request) {
	var req CreateMovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	movement, err := h.service.RecordMovement(r.Context(), MovementInput{
		ArticleID: req.ArticleID,
		Type:      MovementType(req.Type),
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		Reason:    req.Reason,
		Reference: req.Reference,
		ActorID:   shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	filter := MovementFilter{}
	filter.Skip, filter.Take = paging(r)
	if v := r.URL.Query().Get("article_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid article_id")
			return
		}
		filter.ArticleID = &id
	}
	if v := r.URL.Query().Get("user_id"); v != "" {
		filter.UserID = &v
	}
	if v := r.URL.Query().Get("type"); v != "" {
		t := MovementType(v)
		if !t.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid movement type")
			return
		}
		filter.Type = &t
	}
	filter.From = parseDate(r.URL.Query().Get("from"))
	filter.To = parseDate(r.URL.Query().Get("to"))

	movements, total, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      movements,
		"pagination": shared.NewPagination(filter.Skip, filter.Take, total),
	})
}

func (h *Handler) ShowMovement(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	movement, err := h.service.GetMovement(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movement)
}

func (h *Handler) ArticleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	skip, take := paging(r)
	movements, total, err := h.service.ArticleHistory(r.Context(), id, skip, take)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      movements,
		"pagination": shared.NewPagination(skip, take, total),
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), parseDate(r.URL.Query().Get("from")), parseDate(r.URL.Query().Get("to")))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": stats})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrArticleNotFound), errors.Is(err, ErrMovementNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrDuplicateCode):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidType):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("inventory request failed", slog.Any("error", err))
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

func paging(r *http.Request) (skip, take int) {
	skip, _ = strconv.Atoi(r.URL.Query().Get("skip"))
	take, _ = strconv.Atoi(r.URL.Query().Get("take"))
	p := shared.NewPagination(skip, take, 0)
	return p.Skip, p.Take
}

func parseDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
