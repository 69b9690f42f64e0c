package attachments

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/velora-oms/velora-oms/internal/platform/httpx"
	"github.com/velora-oms/velora-oms/internal/shared"
)

// Handler exposes attachment metadata endpoints.
type Handler struct {
	repo     *Repository
	audit    *shared.AuditLogger
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs a Handler. The audit logger may be nil.
func NewHandler(repo *Repository, audit *shared.AuditLogger, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, audit: audit, validate: validator.New(), logger: logger}
}

type createAttachmentRequest struct {
	EntityType  string    `json:"entity_type" validate:"required,oneof=order dispatch"`
	EntityID    uuid.UUID `json:"entity_id" validate:"required"`
	FileName    string    `json:"file_name" validate:"required"`
	FilePath    string    `json:"file_path" validate:"required"`
	ContentType string    `json:"content_type"`
}

// MountRoutes registers attachment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/attachments", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/{entityType}/{entityID}", h.listForEntity)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createAttachmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	att := &Attachment{
		ID:          uuid.New(),
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		FileName:    req.FileName,
		FilePath:    req.FilePath,
		ContentType: req.ContentType,
		UploadedBy:  actor.ID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.repo.Create(r.Context(), att); err != nil {
		h.logger.Error("create attachment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if h.audit != nil {
		entry := shared.AuditLog{
			ActorID:  actor.ID.String(),
			Action:   "attachment.create",
			Entity:   att.EntityType,
			EntityID: att.EntityID.String(),
			Meta:     map[string]any{"file_name": att.FileName},
			At:       att.CreatedAt,
		}
		if err := h.audit.Record(r.Context(), entry); err != nil {
			h.logger.Warn("audit attachment create", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusCreated, att)
}

func (h *Handler) listForEntity(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entityType")
	entityID, err := uuid.Parse(chi.URLParam(r, "entityID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entity id")
		return
	}
	items, err := h.repo.ListForEntity(r.Context(), entityType, entityID)
	if err != nil {
		h.logger.Error("list attachments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}
