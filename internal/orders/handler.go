package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/velora-oms/velora-oms/internal/approvals"
	"github.com/velora-oms/velora-oms/internal/platform/httpx"
	"github.com/velora-oms/velora-oms/internal/rbac"
	"github.com/velora-oms/velora-oms/internal/shared"
)

// ApprovalLister exposes the audit history of an order's approvals.
type ApprovalLister interface {
	ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]approvals.Approval, error)
}

// Handler exposes the order workflow endpoints.
type Handler struct {
	service   *Service
	approvals ApprovalLister
	guard     rbac.Middleware
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, approvalLister ApprovalLister, guard rbac.Middleware, logger *slog.Logger) *Handler {
	return &Handler{service: service, approvals: approvalLister, guard: guard, validate: validator.New(), logger: logger}
}

type createLineRequest struct {
	ItemDescription string `json:"item_description" validate:"required"`
	Quantity        int    `json:"quantity" validate:"required,gt=0"`
	Notes           string `json:"notes"`
}

type createOrderRequest struct {
	CustomerID uuid.UUID           `json:"customer_id" validate:"required"`
	Priority   string              `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Source     string              `json:"source"`
	Notes      string              `json:"notes"`
	Items      []createLineRequest `json:"items" validate:"required,min=1,dive"`
}

type decodeItemRequest struct {
	InventoryID uuid.UUID `json:"inventory_id" validate:"required"`
	Quantity    int       `json:"quantity" validate:"required,gt=0"`
	UnitPrice   *float64  `json:"unit_price" validate:"omitempty,gte=0"`
	TaxRate     *float64  `json:"tax_rate" validate:"omitempty,gte=0,lte=100"`
}

type decodeMultipleRequest struct {
	Items []decodeItemRequest `json:"items" validate:"required,min=1,dive"`
}

type approveRequest struct {
	Comments string `json:"comments"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type quotationRequest struct {
	PriceListID *uuid.UUID `json:"price_list_id"`
	DiscountPct *float64   `json:"discount_percentage" validate:"omitempty,gte=0,lte=100"`
}

type poApprovalRequest struct {
	PONumber string     `json:"po_number"`
	PODate   *time.Time `json:"po_date"`
	POAmount *float64   `json:"po_amount" validate:"omitempty,gte=0"`
}

// MountRoutes registers order routes with permission gates.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.With(h.guard.RequireAny(rbac.PermOrderView)).Get("/", h.list)
		r.With(h.guard.RequireAny(rbac.PermOrderCreate)).Post("/", h.create)
		r.Route("/{id}", func(r chi.Router) {
			r.With(h.guard.RequireAny(rbac.PermOrderView)).Get("/", h.get)
			r.With(h.guard.RequireAny(rbac.PermOrderDelete)).Delete("/", h.cancel)
			r.With(h.guard.RequireAny(rbac.PermOrderView)).Get("/approvals", h.listApprovals)

			r.With(h.guard.RequireAny(rbac.PermOrderDecode)).Post("/items/{itemID}/decode", h.decode)
			r.With(h.guard.RequireAny(rbac.PermOrderDecode)).Post("/items/{itemID}/decode-multiple", h.decodeMultiple)
			r.With(h.guard.RequireAny(rbac.PermOrderDecode)).Put("/decoded-items", h.replaceDecoded)
			r.With(h.guard.RequireAny(rbac.PermOrderDecode)).Post("/submit-for-approval", h.submit)

			r.With(h.guard.RequireAny(rbac.PermOrderApprove)).Post("/approve", h.approve)
			r.With(h.guard.RequireAny(rbac.PermOrderApprove)).Post("/reject", h.reject)

			r.With(h.guard.RequireAny(rbac.PermOrderQuote)).Post("/quotation/generate", h.quotationGenerated)
			r.With(h.guard.RequireAny(rbac.PermOrderQuote)).Post("/quotation/mark-sent", h.quoteSent)
			r.With(h.guard.RequireAny(rbac.PermOrderUpdate)).Post("/request-po-approval", h.requestPOApproval)
			r.With(h.guard.RequireAny(rbac.PermOrderUpdate)).Post("/payment-received", h.paymentReceived)
		})
	})
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondOrder(w http.ResponseWriter, order *Order, err error) {
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := CreateInput{CustomerID: req.CustomerID, Priority: req.Priority, Source: req.Source, Notes: req.Notes}
	for _, l := range req.Items {
		in.Lines = append(in.Lines, CreateLineInput{Description: l.ItemDescription, Quantity: l.Quantity, Notes: l.Notes})
	}
	order, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.logger.Error("create order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Status: q.Get("status"),
		Stage:  q.Get("workflow_stage"),
		Page:   shared.PaginationFromRequest(r),
	}
	if raw := q.Get("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid customer id")
			return
		}
		filter.CustomerID = &id
	}
	summaries, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": summaries, "page": filter.Page.Page, "page_size": filter.Page.Limit()})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, err := h.service.Get(r.Context(), id)
	h.respondOrder(w, order, err)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, err := h.service.Cancel(r.Context(), id)
	h.respondOrder(w, order, err)
}

func (h *Handler) listApprovals(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	history, err := h.approvals.ListForEntity(r.Context(), shared.EntityOrder, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": history})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order item id")
		return
	}
	var req decodeItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.DecodeLine(r.Context(), id, itemID, DecodeItem{
		InventoryID: req.InventoryID, Quantity: req.Quantity, UnitPrice: req.UnitPrice, TaxRate: req.TaxRate,
	})
	h.respondOrder(w, order, err)
}

func (h *Handler) decodeMultiple(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order item id")
		return
	}
	var req decodeMultipleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.DecodeLineSplit(r.Context(), id, itemID, decodeItems(req.Items))
	h.respondOrder(w, order, err)
}

func (h *Handler) replaceDecoded(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req decodeMultipleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.ReplaceDecodedLines(r.Context(), id, decodeItems(req.Items))
	h.respondOrder(w, order, err)
}

func decodeItems(reqs []decodeItemRequest) []DecodeItem {
	items := make([]DecodeItem, 0, len(reqs))
	for _, it := range reqs {
		items = append(items, DecodeItem{
			InventoryID: it.InventoryID, Quantity: it.Quantity, UnitPrice: it.UnitPrice, TaxRate: it.TaxRate,
		})
	}
	return items
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, err := h.service.SubmitForApproval(r.Context(), id)
	h.respondOrder(w, order, err)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	order, err := h.service.Approve(r.Context(), id, req.Comments)
	h.respondOrder(w, order, err)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.Reject(r.Context(), id, req.Reason)
	h.respondOrder(w, order, err)
}

func (h *Handler) quotationGenerated(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req quotationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.MarkQuotationGenerated(r.Context(), id, QuotationInput{PriceListID: req.PriceListID, DiscountPct: req.DiscountPct})
	h.respondOrder(w, order, err)
}

func (h *Handler) quoteSent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, err := h.service.MarkQuoteSent(r.Context(), id)
	h.respondOrder(w, order, err)
}

func (h *Handler) requestPOApproval(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req poApprovalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.RequestPOApproval(r.Context(), id, POInput{PONumber: req.PONumber, PODate: req.PODate, POAmount: req.POAmount})
	h.respondOrder(w, order, err)
}

func (h *Handler) paymentReceived(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, err := h.service.MarkPaymentReceived(r.Context(), id)
	h.respondOrder(w, order, err)
}
