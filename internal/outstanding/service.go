package outstanding

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/velora-oms/velora-oms/internal/platform/cache"
)

// Cache keys for the three projections.
const (
	keyByCustomer = "outstanding:by-customer"
	keyByItem     = "outstanding:by-item"
	keySummary    = "outstanding:summary"
)

// Store recomputes the projections from the database.
type Store interface {
	ByCustomer(ctx context.Context) ([]CustomerRow, error)
	ByItem(ctx context.Context) ([]ItemRow, error)
	Totals(ctx context.Context) (*Summary, error)
}

// Service serves the reconciliation views through a short-TTL JSON cache.
// Concurrent recomputations of the same projection collapse into one query.
type Service struct {
	store  Store
	cache  *cache.JSONCache
	group  singleflight.Group
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(store Store, jsonCache *cache.JSONCache, logger *slog.Logger) *Service {
	return &Service{store: store, cache: jsonCache, logger: logger}
}

// ByCustomer returns one row per outstanding order line.
func (s *Service) ByCustomer(ctx context.Context) ([]CustomerRow, error) {
	var rows []CustomerRow
	err := s.cache.Fetch(ctx, keyByCustomer, &rows, func(ctx context.Context) (interface{}, error) {
		v, err, _ := s.group.Do(keyByCustomer, func() (interface{}, error) {
			return s.store.ByCustomer(ctx)
		})
		return v, err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ByItem returns outstanding demand grouped per catalog item.
func (s *Service) ByItem(ctx context.Context) ([]ItemRow, error) {
	var rows []ItemRow
	err := s.cache.Fetch(ctx, keyByItem, &rows, func(ctx context.Context) (interface{}, error) {
		v, err, _ := s.group.Do(keyByItem, func() (interface{}, error) {
			return s.store.ByItem(ctx)
		})
		return v, err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Summary totals the open book.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	var sum Summary
	err := s.cache.Fetch(ctx, keySummary, &sum, func(ctx context.Context) (interface{}, error) {
		v, err, _ := s.group.Do(keySummary, func() (interface{}, error) {
			return s.store.Totals(ctx)
		})
		return v, err
	})
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// Refresh drops the cached projections and recomputes them. Used by the
// background warmup job and after bulk imports.
func (s *Service) Refresh(ctx context.Context) error {
	if err := s.cache.Invalidate(ctx, keyByCustomer, keyByItem, keySummary); err != nil {
		s.logger.Warn("outstanding cache invalidate", slog.Any("error", err))
	}
	if _, err := s.ByCustomer(ctx); err != nil {
		return err
	}
	if _, err := s.ByItem(ctx); err != nil {
		return err
	}
	_, err := s.Summary(ctx)
	return err
}
