package inventory

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches the inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/articles", h.ListArticles)
	r.Post("/articles", h.CreateArticle)
	r.Get("/articles/low-stock", h.LowStock)
	r.Get("/articles/{id}", h.ShowArticle)
	r.Put("/articles/{id}", h.UpdateArticle)
	r.Delete("/articles/{id}", h.DeactivateArticle)
	r.Get("/articles/{id}/movements", h.ArticleHistory)

	r.Post("/movements", h.CreateMovement)
	r.Get("/movements", h.ListMovements)
	r.Get("/movements/stats", h.Stats)
	r.Get("/movements/{id}", h.ShowMovement)
}
