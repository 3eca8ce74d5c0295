package reconcile

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// MountRoutes attaches the reconciliation routes. The export endpoint gets
// its own tighter rate limit since it scans the whole comparisons table.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/comparisons", h.CreateComparison)
	r.Get("/comparisons/{id}", h.ShowComparison)
	r.With(httprate.Limit(6, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
		Get("/comparisons/export", h.Export)

	r.Get("/jobs/{jobID}/comparisons", h.ListForJob)
	r.Get("/jobs/{jobID}/deviation-summary", h.DeviationSummary)
	r.Get("/jobs/{jobID}/reconciliation-dashboard", h.Dashboard)

	r.Get("/performance-metrics", h.PerformanceMetrics)
}
