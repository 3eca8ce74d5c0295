package estimation

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches the estimation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/estimations", h.Create)
	r.Get("/estimations/{id}", h.Show)
	r.Put("/estimations/{id}", h.Update)
	r.Delete("/estimations/{id}", h.Delete)
	r.Post("/estimations/{id}/validate", h.Validate)

	r.Get("/jobs/{jobID}/estimations", h.ListForJob)
	r.Get("/jobs/{jobID}/estimations/latest-validated", h.LatestValidated)
}
