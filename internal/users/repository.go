package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velora-oms/velora-oms/internal/shared"
)

// Repository persists users in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `u.id, u.username, u.full_name, u.email, r.name, u.password_hash, u.is_active, u.created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.Role, &u.PasswordHash, &u.IsActive, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("users: scan: %w", err)
	}
	return &u, nil
}

// GetByID loads a user by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+`
FROM users u JOIN roles r ON r.id = u.role_id
WHERE u.id = $1`, id)
	return scanUser(row)
}

// GetByUsername loads a user by username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+`
FROM users u JOIN roles r ON r.id = u.role_id
WHERE u.username = $1`, username)
	return scanUser(row)
}
