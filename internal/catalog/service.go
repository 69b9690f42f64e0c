package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/velora-oms/velora-oms/internal/shared"
)

// Store is the persistence port the service depends on.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Item, error)
	List(ctx context.Context, search string, activeOnly bool, page shared.Pagination) ([]Item, error)
	Create(ctx context.Context, it *Item) error
	Update(ctx context.Context, it *Item) error
	ReceiveStock(ctx context.Context, id uuid.UUID, qty int) (*Item, error)
	Decrement(ctx context.Context, id uuid.UUID, qty int) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// Service implements the inventory ledger rules on top of a Store.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// CreateInput carries the fields for a new catalog item.
type CreateInput struct {
	SKU           string
	Name          string
	Description   string
	Category      string
	UnitPrice     float64
	TaxRate       *float64
	OnHand        int
	ReorderLevel  int
	UnitOfMeasure string
}

// Create validates and persists a new item.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Item, error) {
	if in.UnitPrice < 0 {
		return nil, fmt.Errorf("%w: unit price must not be negative", shared.ErrValidation)
	}
	if in.OnHand < 0 {
		return nil, fmt.Errorf("%w: on-hand quantity must not be negative", shared.ErrValidation)
	}
	taxRate := DefaultTaxRate
	if in.TaxRate != nil {
		taxRate = *in.TaxRate
	}
	if taxRate < 0 || taxRate > 100 {
		return nil, fmt.Errorf("%w: tax rate must be between 0 and 100", shared.ErrValidation)
	}
	now := s.now().UTC()
	item := &Item{
		ID:            uuid.New(),
		SKU:           in.SKU,
		Name:          in.Name,
		Description:   in.Description,
		Category:      in.Category,
		UnitPrice:     in.UnitPrice,
		TaxRate:       taxRate,
		OnHand:        in.OnHand,
		ReorderLevel:  in.ReorderLevel,
		UnitOfMeasure: in.UnitOfMeasure,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, item); err != nil {
		return nil, err
	}
	s.logger.Info("catalog item created", slog.String("sku", item.SKU), slog.String("id", item.ID.String()))
	return item, nil
}

// UpdateInput carries the mutable fields of an item.
type UpdateInput struct {
	Name          string
	Description   string
	Category      string
	UnitPrice     float64
	TaxRate       float64
	ReorderLevel  int
	UnitOfMeasure string
}

// Update rewrites an item's descriptive and pricing fields.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Item, error) {
	if in.UnitPrice < 0 {
		return nil, fmt.Errorf("%w: unit price must not be negative", shared.ErrValidation)
	}
	if in.TaxRate < 0 || in.TaxRate > 100 {
		return nil, fmt.Errorf("%w: tax rate must be between 0 and 100", shared.ErrValidation)
	}
	item, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	item.Name = in.Name
	item.Description = in.Description
	item.Category = in.Category
	item.UnitPrice = in.UnitPrice
	item.TaxRate = in.TaxRate
	item.ReorderLevel = in.ReorderLevel
	item.UnitOfMeasure = in.UnitOfMeasure
	item.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Get loads a single item.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.store.Get(ctx, id)
}

// List searches items.
func (s *Service) List(ctx context.Context, search string, activeOnly bool, page shared.Pagination) ([]Item, error) {
	return s.store.List(ctx, search, activeOnly, page)
}

// ReceiveStock records an inbound stock receipt.
func (s *Service) ReceiveStock(ctx context.Context, id uuid.UUID, qty int) (*Item, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: receive quantity must be positive", shared.ErrValidation)
	}
	item, err := s.store.ReceiveStock(ctx, id, qty)
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock received", slog.String("sku", item.SKU), slog.Int("qty", qty), slog.Int("on_hand", item.OnHand))
	return item, nil
}

// Deactivate retires an item from new orders without deleting history.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.store.SetActive(ctx, id, false)
}
