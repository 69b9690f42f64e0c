package outstanding

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/velora-oms/velora-oms/internal/platform/httpx"
	"github.com/velora-oms/velora-oms/internal/rbac"
)

// Handler exposes the reconciliation views.
type Handler struct {
	service *Service
	guard   rbac.Middleware
	logger  *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, guard rbac.Middleware, logger *slog.Logger) *Handler {
	return &Handler{service: service, guard: guard, logger: logger}
}

// MountRoutes registers outstanding routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/outstanding", func(r chi.Router) {
		r.Use(h.guard.RequireAny(rbac.PermOutstandingView))
		r.Get("/by-customer", h.byCustomer)
		r.Get("/by-item", h.byItem)
		r.Get("/summary", h.summary)
	})
}

func (h *Handler) byCustomer(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ByCustomer(r.Context())
	if err != nil {
		h.logger.Error("outstanding by customer", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (h *Handler) byItem(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ByItem(r.Context())
	if err != nil {
		h.logger.Error("outstanding by item", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.Summary(r.Context())
	if err != nil {
		h.logger.Error("outstanding summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}
