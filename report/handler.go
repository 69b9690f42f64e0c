package report

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/velora-oms/velora-oms/internal/catalog"
	"github.com/velora-oms/velora-oms/internal/customers"
	"github.com/velora-oms/velora-oms/internal/dispatch"
	"github.com/velora-oms/velora-oms/internal/orders"
	"github.com/velora-oms/velora-oms/internal/platform/httpx"
	"github.com/velora-oms/velora-oms/internal/rbac"
	"github.com/velora-oms/velora-oms/internal/shared"
)

// OrderSource resolves the order an actor may see.
type OrderSource interface {
	Get(ctx context.Context, id uuid.UUID) (*orders.Order, error)
}

// DispatchSource resolves a dispatch with its lines.
type DispatchSource interface {
	Get(ctx context.Context, id uuid.UUID) (*dispatch.Dispatch, error)
}

// CustomerSource resolves the customer printed on documents.
type CustomerSource interface {
	Get(ctx context.Context, id uuid.UUID) (*customers.Customer, error)
}

// CatalogSource resolves catalog detail for line SKUs.
type CatalogSource interface {
	Get(ctx context.Context, id uuid.UUID) (*catalog.Item, error)
}

// Handler renders order and dispatch documents as PDFs.
type Handler struct {
	renderer   *Renderer
	orders     OrderSource
	dispatches DispatchSource
	customers  CustomerSource
	catalog    CatalogSource
	guard      rbac.Middleware
	logger     *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(renderer *Renderer, orderSrc OrderSource, dispatchSrc DispatchSource,
	customerSrc CustomerSource, catalogSrc CatalogSource, guard rbac.Middleware, logger *slog.Logger) *Handler {
	return &Handler{
		renderer:   renderer,
		orders:     orderSrc,
		dispatches: dispatchSrc,
		customers:  customerSrc,
		catalog:    catalogSrc,
		guard:      guard,
		logger:     logger,
	}
}

// MountRoutes registers the document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.With(h.guard.RequireAny(rbac.PermOrderView)).
			Get("/orders/{id}/quotation", h.quotation)
		r.With(h.guard.RequireAny(rbac.PermDispatchView)).
			Get("/dispatches/{id}/delivery-note", h.deliveryNote)
	})
}

func (h *Handler) quotation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !order.IsFullyDecoded() {
		httpx.RespondError(w, fmt.Errorf("%w: order is not fully decoded", shared.ErrValidation))
		return
	}
	customer, err := h.customers.Get(r.Context(), order.CustomerID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := Quotation{
		Number:       order.OrderNumber,
		Date:         order.UpdatedAt,
		CustomerName: customer.Name,
		Address:      customerAddress(customer),
		GSTNumber:    customer.GSTNumber,
	}
	if order.DiscountPct != nil {
		q.DiscountPct = *order.DiscountPct
	}
	for _, line := range order.Lines {
		dl := DocumentLine{Description: line.Description, Quantity: line.Quantity}
		if line.UnitPrice != nil {
			dl.UnitPrice = *line.UnitPrice
		}
		if line.TaxRate != nil {
			dl.TaxRate = *line.TaxRate
		}
		if line.InventoryID != nil {
			item, err := h.catalog.Get(r.Context(), *line.InventoryID)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			dl.SKU = item.SKU
		}
		q.Lines = append(q.Lines, dl)
	}
	pdf, err := h.renderer.QuotationPDF(r.Context(), q)
	if err != nil {
		h.logger.Error("render quotation", slog.String("order", order.OrderNumber), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Render Failed", "document service unavailable")
		return
	}
	servePDF(w, fmt.Sprintf("quotation-%s.pdf", order.OrderNumber), pdf)
}

func (h *Handler) deliveryNote(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid dispatch id")
		return
	}
	d, err := h.dispatches.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.orders.Get(r.Context(), d.OrderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	customer, err := h.customers.Get(r.Context(), order.CustomerID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	note := DeliveryNote{
		Number:         d.DispatchNumber,
		Date:           d.DispatchDate,
		OrderNumber:    order.OrderNumber,
		CustomerName:   customer.Name,
		Address:        customerAddress(customer),
		CourierName:    d.CourierName,
		TrackingNumber: d.TrackingNumber,
	}
	for _, line := range d.Lines {
		note.Lines = append(note.Lines, DeliveryLine{SKU: line.ItemSKU, Name: line.ItemName, Quantity: line.Quantity})
	}
	pdf, err := h.renderer.DeliveryNotePDF(r.Context(), note)
	if err != nil {
		h.logger.Error("render delivery note", slog.String("dispatch", d.DispatchNumber), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Render Failed", "document service unavailable")
		return
	}
	servePDF(w, fmt.Sprintf("delivery-note-%s.pdf", d.DispatchNumber), pdf)
}

func customerAddress(c *customers.Customer) string {
	addr := c.Address
	if c.City != "" {
		addr += ", " + c.City
	}
	if c.State != "" {
		addr += ", " + c.State
	}
	return addr
}

func servePDF(w http.ResponseWriter, filename string, pdf []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
