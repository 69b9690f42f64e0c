package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/velora-oms/velora-oms/internal/shared"
)

type memoryStore struct {
	items map[uuid.UUID]*Item
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: make(map[uuid.UUID]*Item)}
}

func (s *memoryStore) Get(_ context.Context, id uuid.UUID) (*Item, error) {
	it, ok := s.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *it
	return &clone, nil
}

func (s *memoryStore) List(_ context.Context, _ string, _ bool, _ shared.Pagination) ([]Item, error) {
	out := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, *it)
	}
	return out, nil
}

func (s *memoryStore) Create(_ context.Context, it *Item) error {
	clone := *it
	s.items[it.ID] = &clone
	return nil
}

func (s *memoryStore) Update(_ context.Context, it *Item) error {
	if _, ok := s.items[it.ID]; !ok {
		return shared.ErrNotFound
	}
	clone := *it
	s.items[it.ID] = &clone
	return nil
}

func (s *memoryStore) ReceiveStock(_ context.Context, id uuid.UUID, qty int) (*Item, error) {
	it, ok := s.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	it.OnHand += qty
	clone := *it
	return &clone, nil
}

func (s *memoryStore) Decrement(_ context.Context, id uuid.UUID, qty int) error {
	it, ok := s.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	if it.OnHand < qty {
		return shared.NewQuantityError("available stock", qty, it.OnHand)
	}
	it.OnHand -= qty
	return nil
}

func (s *memoryStore) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	it, ok := s.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	it.IsActive = active
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateDefaultsTaxRate(t *testing.T) {
	svc := NewService(newMemoryStore(), testLogger())
	item, err := svc.Create(context.Background(), CreateInput{SKU: "GLV-01", Name: "Nitrile Gloves", UnitPrice: 120})
	require.NoError(t, err)
	require.InDelta(t, DefaultTaxRate, item.TaxRate, 0.0001)
	require.True(t, item.IsActive)
}

func TestCreateRejectsNegativePrice(t *testing.T) {
	svc := NewService(newMemoryStore(), testLogger())
	_, err := svc.Create(context.Background(), CreateInput{SKU: "X", Name: "X", UnitPrice: -1})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestReceiveStockRequiresPositiveQty(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, testLogger())
	item, err := svc.Create(context.Background(), CreateInput{SKU: "SYR-05", Name: "Syringe 5ml", UnitPrice: 8, OnHand: 3})
	require.NoError(t, err)

	_, err = svc.ReceiveStock(context.Background(), item.ID, 0)
	require.ErrorIs(t, err, shared.ErrValidation)

	updated, err := svc.ReceiveStock(context.Background(), item.ID, 7)
	require.NoError(t, err)
	require.Equal(t, 10, updated.OnHand)
}

func TestDecrementNeverGoesNegative(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, testLogger())
	item, err := svc.Create(context.Background(), CreateInput{SKU: "MSK-02", Name: "N95 Mask", UnitPrice: 45, OnHand: 5})
	require.NoError(t, err)

	err = store.Decrement(context.Background(), item.ID, 6)
	require.ErrorIs(t, err, shared.ErrQuantityViolation)

	got, err := svc.Get(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, 5, got.OnHand)

	require.NoError(t, store.Decrement(context.Background(), item.ID, 5))
	got, err = svc.Get(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.OnHand)
}

func TestDeactivateKeepsItem(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, testLogger())
	item, err := svc.Create(context.Background(), CreateInput{SKU: "BPM-01", Name: "BP Monitor", UnitPrice: 2100})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), item.ID))
	got, err := svc.Get(context.Background(), item.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
}
