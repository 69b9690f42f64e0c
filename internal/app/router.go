package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/velora-oms/velora-oms/internal/attachments"
	"github.com/velora-oms/velora-oms/internal/catalog"
	"github.com/velora-oms/velora-oms/internal/customers"
	"github.com/velora-oms/velora-oms/internal/dispatch"
	"github.com/velora-oms/velora-oms/internal/observability"
	"github.com/velora-oms/velora-oms/internal/orders"
	"github.com/velora-oms/velora-oms/internal/outstanding"
	"github.com/velora-oms/velora-oms/internal/pricelists"
	"github.com/velora-oms/velora-oms/internal/users"
	"github.com/velora-oms/velora-oms/jobs"
	"github.com/velora-oms/velora-oms/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthService *users.Service

	UsersHandler       *users.Handler
	CustomersHandler   *customers.Handler
	CatalogHandler     *catalog.Handler
	PriceListsHandler  *pricelists.Handler
	AttachmentsHandler *attachments.Handler
	OrdersHandler      *orders.Handler
	DispatchHandler    *dispatch.Handler
	OutstandingHandler *outstanding.Handler
	ReportHandler      *report.Handler
	JobsHandler        *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter builds the chi router. Login, health and metrics are public;
// everything else sits behind bearer-token authentication.
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
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	params.UsersHandler.MountRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(users.AuthMiddleware(params.AuthService))

		params.CustomersHandler.MountRoutes(r)
		params.CatalogHandler.MountRoutes(r)
		params.PriceListsHandler.MountRoutes(r)
		params.AttachmentsHandler.MountRoutes(r)
		params.OrdersHandler.MountRoutes(r)
		params.DispatchHandler.MountRoutes(r)
		params.OutstandingHandler.MountRoutes(r)
		if params.ReportHandler != nil {
			params.ReportHandler.MountRoutes(r)
		}
		if params.JobsHandler != nil {
			params.JobsHandler.MountRoutes(r)
		}
	})

	return r
}
