package pricelists

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velora-oms/velora-oms/internal/shared"
)

// Repository persists price lists in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads a price list header.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*PriceList, error) {
	var pl PriceList
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, is_default, is_active, created_at
FROM price_lists WHERE id = $1`, id).
		Scan(&pl.ID, &pl.Name, &pl.Description, &pl.IsDefault, &pl.IsActive, &pl.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("pricelists: get: %w", err)
	}
	return &pl, nil
}

// List returns active price lists, default list first.
func (r *Repository) List(ctx context.Context) ([]PriceList, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, is_default, is_active, created_at
FROM price_lists WHERE is_active ORDER BY is_default DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("pricelists: list: %w", err)
	}
	defer rows.Close()
	var out []PriceList
	for rows.Next() {
		var pl PriceList
		if err := rows.Scan(&pl.ID, &pl.Name, &pl.Description, &pl.IsDefault, &pl.IsActive, &pl.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

// Create inserts a list header. Marking a list default clears the previous default.
func (r *Repository) Create(ctx context.Context, pl *PriceList) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pricelists: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if pl.IsDefault {
		if _, err := tx.Exec(ctx, `UPDATE price_lists SET is_default = false WHERE is_default`); err != nil {
			return fmt.Errorf("pricelists: clear default: %w", err)
		}
	}
	_, err = tx.Exec(ctx, `INSERT INTO price_lists (id, name, description, is_default, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		pl.ID, pl.Name, pl.Description, pl.IsDefault, pl.IsActive, pl.CreatedAt)
	if err != nil {
		return fmt.Errorf("pricelists: create: %w", err)
	}
	return tx.Commit(ctx)
}

// Entries returns the item overrides of a list.
func (r *Repository) Entries(ctx context.Context, listID uuid.UUID) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, price_list_id, inventory_id, unit_price, tax_rate
FROM price_list_items WHERE price_list_id = $1`, listID)
	if err != nil {
		return nil, fmt.Errorf("pricelists: entries: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.PriceListID, &e.InventoryID, &e.UnitPrice, &e.TaxRate); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertEntry sets the price of one item in a list.
func (r *Repository) UpsertEntry(ctx context.Context, e *Entry) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO price_list_items (id, price_list_id, inventory_id, unit_price, tax_rate)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (price_list_id, inventory_id)
DO UPDATE SET unit_price = EXCLUDED.unit_price, tax_rate = EXCLUDED.tax_rate`,
		e.ID, e.PriceListID, e.InventoryID, e.UnitPrice, e.TaxRate)
	if err != nil {
		return fmt.Errorf("pricelists: upsert entry: %w", err)
	}
	return nil
}

// LookupPrice resolves the price of an item in a list. shared.ErrNotFound
// means the item is not listed and catalog pricing applies.
func (r *Repository) LookupPrice(ctx context.Context, listID, inventoryID uuid.UUID) (*Price, error) {
	var p Price
	err := r.pool.QueryRow(ctx, `SELECT unit_price, tax_rate
FROM price_list_items WHERE price_list_id = $1 AND inventory_id = $2`, listID, inventoryID).
		Scan(&p.UnitPrice, &p.TaxRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("pricelists: lookup: %w", err)
	}
	return &p, nil
}
