package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/velora-oms/velora-oms/internal/platform/httpx"
	"github.com/velora-oms/velora-oms/internal/shared"
)

// Handler exposes catalog endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, validate: validator.New(), logger: logger}
}

type createItemRequest struct {
	SKU           string   `json:"sku" validate:"required"`
	Name          string   `json:"name" validate:"required"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	UnitPrice     float64  `json:"unit_price" validate:"gte=0"`
	TaxRate       *float64 `json:"tax_rate" validate:"omitempty,gte=0,lte=100"`
	OnHand        int      `json:"on_hand" validate:"gte=0"`
	ReorderLevel  int      `json:"reorder_level" validate:"gte=0"`
	UnitOfMeasure string   `json:"unit_of_measure"`
}

type updateItemRequest struct {
	Name          string  `json:"name" validate:"required"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	UnitPrice     float64 `json:"unit_price" validate:"gte=0"`
	TaxRate       float64 `json:"tax_rate" validate:"gte=0,lte=100"`
	ReorderLevel  int     `json:"reorder_level" validate:"gte=0"`
	UnitOfMeasure string  `json:"unit_of_measure"`
}

type receiveStockRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/catalog/items", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Post("/{id}/receive", h.receiveStock)
		r.Post("/{id}/deactivate", h.deactivate)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page := shared.PaginationFromRequest(r)
	activeOnly := r.URL.Query().Get("include_inactive") != "true"
	items, err := h.service.List(r.Context(), r.URL.Query().Get("search"), activeOnly, page)
	if err != nil {
		h.logger.Error("list catalog items", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "page": page.Page, "page_size": page.Limit()})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.Create(r.Context(), CreateInput{
		SKU:           req.SKU,
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		UnitPrice:     req.UnitPrice,
		TaxRate:       req.TaxRate,
		OnHand:        req.OnHand,
		ReorderLevel:  req.ReorderLevel,
		UnitOfMeasure: req.UnitOfMeasure,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	var req updateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.Update(r.Context(), id, UpdateInput{
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		UnitPrice:     req.UnitPrice,
		TaxRate:       req.TaxRate,
		ReorderLevel:  req.ReorderLevel,
		UnitOfMeasure: req.UnitOfMeasure,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) receiveStock(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	var req receiveStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.ReceiveStock(r.Context(), id, req.Quantity)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
