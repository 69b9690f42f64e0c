package pricelists

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/velora-oms/velora-oms/internal/platform/httpx"
)

// Handler exposes price list endpoints.
type Handler struct {
	repo     *Repository
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(repo *Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, validate: validator.New(), logger: logger}
}

type createListRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	IsDefault   bool   `json:"is_default"`
}

type upsertEntryRequest struct {
	InventoryID uuid.UUID `json:"inventory_id" validate:"required"`
	UnitPrice   float64   `json:"unit_price" validate:"gte=0"`
	TaxRate     *float64  `json:"tax_rate" validate:"omitempty,gte=0,lte=100"`
}

// MountRoutes registers price list routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/price-lists", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}/items", h.upsertEntry)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	lists, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("list price lists", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": lists})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid price list id")
		return
	}
	pl, err := h.repo.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.repo.Entries(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"price_list": pl, "items": entries})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pl := &PriceList{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		IsDefault:   req.IsDefault,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.repo.Create(r.Context(), pl); err != nil {
		h.logger.Error("create price list", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pl)
}

func (h *Handler) upsertEntry(w http.ResponseWriter, r *http.Request) {
	listID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid price list id")
		return
	}
	var req upsertEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry := &Entry{
		ID:          uuid.New(),
		PriceListID: listID,
		InventoryID: req.InventoryID,
		UnitPrice:   req.UnitPrice,
		TaxRate:     req.TaxRate,
	}
	if err := h.repo.UpsertEntry(r.Context(), entry); err != nil {
		h.logger.Error("upsert price list entry", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}
