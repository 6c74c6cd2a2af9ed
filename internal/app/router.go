package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dukahub/dukahub/internal/analytics"
	"github.com/dukahub/dukahub/internal/auth"
	"github.com/dukahub/dukahub/internal/billing"
	"github.com/dukahub/dukahub/internal/expenses"
	"github.com/dukahub/dukahub/internal/inventory"
	"github.com/dukahub/dukahub/internal/masterdata"
	"github.com/dukahub/dukahub/internal/observability"
	"github.com/dukahub/dukahub/internal/sales"
	"github.com/dukahub/dukahub/internal/shared"
	"github.com/dukahub/dukahub/internal/stock"
	"github.com/dukahub/dukahub/internal/team"
	"github.com/dukahub/dukahub/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthService      *auth.Service
	IdempotencyStore *shared.IdempotencyStore

	AuthHandler       *auth.Handler
	StockHandler      *stock.Handler
	BillingHandler    *billing.Handler
	SalesHandler      *sales.Handler
	ExpensesHandler   *expenses.Handler
	MasterDataHandler *masterdata.Handler
	InventoryHandler  *inventory.Handler
	AnalyticsHandler  *analytics.Handler
	TeamHandler       *team.Handler
	JobHandler        *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter builds the chi router. Everything under /api/v1 except login sits
// behind the bearer-token middleware.
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
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			params.AuthHandler.MountRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(params.AuthService.Middleware)
				params.AuthHandler.MountProtectedRoutes(r)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(params.AuthService.Middleware)
			if params.IdempotencyStore != nil {
				r.Use(Idempotency(params.IdempotencyStore, params.Logger))
			}

			r.Route("/stock", params.StockHandler.MountRoutes)
			params.BillingHandler.MountRoutes(r)
			r.Route("/sales", params.SalesHandler.MountRoutes)
			r.Route("/expenses", params.ExpensesHandler.MountRoutes)
			params.MasterDataHandler.MountRoutes(r)
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
			r.Route("/analytics", params.AnalyticsHandler.MountRoutes)
			r.Route("/users", params.TeamHandler.MountRoutes)
			if params.JobHandler != nil {
				r.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	return r
}
