package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/charpente-erp/charpente/internal/estimation"
	"github.com/charpente-erp/charpente/internal/inventory"
	"github.com/charpente-erp/charpente/internal/observability"
	"github.com/charpente-erp/charpente/internal/projects"
	"github.com/charpente-erp/charpente/internal/purchasing"
	"github.com/charpente-erp/charpente/internal/reconcile"
	"github.com/charpente-erp/charpente/internal/users"
	"github.com/charpente-erp/charpente/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	InventoryHandler  *inventory.Handler
	EstimationHandler *estimation.Handler
	ProjectsHandler   *projects.Handler
	PurchasingHandler *purchasing.Handler
	UsersHandler      *users.Handler
	ReconcileHandler  *reconcile.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Charpente defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		params.ProjectsHandler.MountRoutes(r)
		params.InventoryHandler.MountRoutes(r)
		params.EstimationHandler.MountRoutes(r)
		params.PurchasingHandler.MountRoutes(r)
		params.UsersHandler.MountRoutes(r)
		params.ReconcileHandler.MountRoutes(r)
	})

	if params.JobHandler != nil {
		r.Route("/jobs-queue", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
