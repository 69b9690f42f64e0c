package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velora-oms/velora-oms/internal/shared"
)

// Repository persists customers in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, name, contact_person, email, phone, address, city, state, gst_number, is_active, created_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.ContactPerson, &c.Email, &c.Phone,
		&c.Address, &c.City, &c.State, &c.GSTNumber, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("customers: scan: %w", err)
	}
	return &c, nil
}

// Get loads a customer by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Customer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	return scanCustomer(row)
}

// List returns active customers ordered by name, optionally filtered by a
// case-insensitive name search.
func (r *Repository) List(ctx context.Context, search string, page shared.Pagination) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+customerColumns+`
FROM customers
WHERE is_active AND ($1 = '' OR name ILIKE '%' || $1 || '%')
ORDER BY name
LIMIT $2 OFFSET $3`, search, page.Limit(), page.Offset())
	if err != nil {
		return nil, fmt.Errorf("customers: list: %w", err)
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.ContactPerson, &c.Email, &c.Phone,
			&c.Address, &c.City, &c.State, &c.GSTNumber, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create inserts a customer.
func (r *Repository) Create(ctx context.Context, c *Customer) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO customers
(id, name, contact_person, email, phone, address, city, state, gst_number, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.Name, c.ContactPerson, c.Email, c.Phone, c.Address, c.City, c.State, c.GSTNumber, c.IsActive, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("customers: create: %w", err)
	}
	return nil
}

// Exists reports whether an active customer with the id is on file.
func (r *Repository) Exists(ctx context.Context, id uuid.UUID) error {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1 AND is_active)`, id).Scan(&ok)
	if err != nil {
		return fmt.Errorf("customers: exists: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: customer %s", shared.ErrNotFound, id)
	}
	return nil
}
