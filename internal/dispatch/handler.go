package dispatch

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/velora-oms/velora-oms/internal/platform/httpx"
	"github.com/velora-oms/velora-oms/internal/rbac"
)

// Handler exposes dispatch endpoints.
type Handler struct {
	service  *Service
	guard    rbac.Middleware
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, guard rbac.Middleware, logger *slog.Logger) *Handler {
	return &Handler{service: service, guard: guard, validate: validator.New(), logger: logger}
}

type createLineRequest struct {
	OrderItemID uuid.UUID `json:"order_item_id" validate:"required"`
	InventoryID uuid.UUID `json:"inventory_id" validate:"required"`
	Quantity    int       `json:"quantity" validate:"required,gt=0"`
}

type createDispatchRequest struct {
	OrderID        uuid.UUID           `json:"order_id" validate:"required"`
	InvoiceRef     *string             `json:"invoice_ref"`
	DispatchDate   *time.Time          `json:"dispatch_date"`
	CourierName    string              `json:"courier_name"`
	TrackingNumber string              `json:"tracking_number"`
	Notes          string              `json:"notes"`
	Items          []createLineRequest `json:"items" validate:"required,min=1,dive"`
}

// MountRoutes registers dispatch routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/dispatches", func(r chi.Router) {
		r.With(h.guard.RequireAny(rbac.PermDispatchCreate)).Post("/", h.create)
		r.With(h.guard.RequireAny(rbac.PermDispatchView)).Get("/{id}", h.get)
		r.With(h.guard.RequireAny(rbac.PermDispatchView)).Get("/order/{orderID}", h.listForOrder)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createDispatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := CreateInput{
		OrderID:        req.OrderID,
		InvoiceRef:     req.InvoiceRef,
		CourierName:    req.CourierName,
		TrackingNumber: req.TrackingNumber,
		Notes:          req.Notes,
	}
	if req.DispatchDate != nil {
		in.DispatchDate = *req.DispatchDate
	}
	for _, l := range req.Items {
		in.Lines = append(in.Lines, CreateLineInput{OrderLineID: l.OrderItemID, InventoryID: l.InventoryID, Quantity: l.Quantity})
	}
	created, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.logger.Error("create dispatch", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid dispatch id")
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) listForOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	items, err := h.service.ListForOrder(r.Context(), orderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}
