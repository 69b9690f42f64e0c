package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velora-oms/velora-oms/internal/shared"
)

// Repository persists catalog items in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemColumns = `id, sku, name, description, category, unit_price, tax_rate, on_hand, reorder_level, unit_of_measure, is_active, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.SKU, &it.Name, &it.Description, &it.Category,
		&it.UnitPrice, &it.TaxRate, &it.OnHand, &it.ReorderLevel, &it.UnitOfMeasure,
		&it.IsActive, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("catalog: scan: %w", err)
	}
	return &it, nil
}

// Get loads an item by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM catalog_items WHERE id = $1`, id)
	return scanItem(row)
}

// List returns items matching the optional search term across sku/name/category.
func (r *Repository) List(ctx context.Context, search string, activeOnly bool, page shared.Pagination) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+`
FROM catalog_items
WHERE ($1 = '' OR sku ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%' OR category ILIKE '%' || $1 || '%')
  AND (NOT $2 OR is_active)
ORDER BY name
LIMIT $3 OFFSET $4`, search, activeOnly, page.Limit(), page.Offset())
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.SKU, &it.Name, &it.Description, &it.Category,
			&it.UnitPrice, &it.TaxRate, &it.OnHand, &it.ReorderLevel, &it.UnitOfMeasure,
			&it.IsActive, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Create inserts an item. Duplicate SKUs surface as validation errors.
func (r *Repository) Create(ctx context.Context, it *Item) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO catalog_items (`+itemColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		it.ID, it.SKU, it.Name, it.Description, it.Category, it.UnitPrice, it.TaxRate,
		it.OnHand, it.ReorderLevel, it.UnitOfMeasure, it.IsActive, it.CreatedAt, it.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: sku %q already exists", shared.ErrValidation, it.SKU)
		}
		return fmt.Errorf("catalog: create: %w", err)
	}
	return nil
}

// Update rewrites the descriptive and pricing fields of an item.
func (r *Repository) Update(ctx context.Context, it *Item) error {
	tag, err := r.pool.Exec(ctx, `UPDATE catalog_items
SET name = $2, description = $3, category = $4, unit_price = $5, tax_rate = $6,
    reorder_level = $7, unit_of_measure = $8, updated_at = $9
WHERE id = $1`,
		it.ID, it.Name, it.Description, it.Category, it.UnitPrice, it.TaxRate,
		it.ReorderLevel, it.UnitOfMeasure, it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ReceiveStock adds quantity to an item's on-hand balance.
func (r *Repository) ReceiveStock(ctx context.Context, id uuid.UUID, qty int) (*Item, error) {
	row := r.pool.QueryRow(ctx, `UPDATE catalog_items
SET on_hand = on_hand + $2, updated_at = now()
WHERE id = $1
RETURNING `+itemColumns, id, qty)
	return scanItem(row)
}

// Decrement subtracts quantity only when enough stock is on hand. Zero rows
// affected means the balance would have gone negative.
func (r *Repository) Decrement(ctx context.Context, id uuid.UUID, qty int) error {
	tag, err := r.pool.Exec(ctx, `UPDATE catalog_items
SET on_hand = on_hand - $2, updated_at = now()
WHERE id = $1 AND on_hand >= $2`, id, qty)
	if err != nil {
		return fmt.Errorf("catalog: decrement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewQuantityError("available stock", qty, 0)
	}
	return nil
}

// SetActive flips the active flag. Items are never deleted.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE catalog_items SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("catalog: set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
