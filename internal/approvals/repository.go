package approvals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes an approval row.
func (r *Repository) Insert(ctx context.Context, a *Approval) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO approvals
(id, entity_type, entity_id, stage, status, requested_by, comments, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.EntityType, a.EntityID, a.Stage, a.Status, a.RequestedBy, a.Comments, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("approvals: insert: %w", err)
	}
	return nil
}

// NewestPending returns the most recent pending approval for the entity.
func (r *Repository) NewestPending(ctx context.Context, entityType string, entityID uuid.UUID) (*Approval, error) {
	var a Approval
	err := r.pool.QueryRow(ctx, `SELECT id, entity_type, entity_id, stage, status, requested_by, decided_by, comments, created_at, decided_at
FROM approvals
WHERE entity_type = $1 AND entity_id = $2 AND status = 'pending'
ORDER BY created_at DESC
LIMIT 1`, entityType, entityID).
		Scan(&a.ID, &a.EntityType, &a.EntityID, &a.Stage, &a.Status, &a.RequestedBy, &a.DecidedBy, &a.Comments, &a.CreatedAt, &a.DecidedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("approvals: newest pending: %w", err)
	}
	return &a, nil
}

// MarkDecided closes an approval with the decision and audit fields.
func (r *Repository) MarkDecided(ctx context.Context, id uuid.UUID, stage, decision string, decidedBy uuid.UUID, comments string, decidedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE approvals
SET status = $2, stage = $3, decided_by = $4, comments = $5, decided_at = $6
WHERE id = $1`, id, decision, stage, decidedBy, comments, decidedAt)
	if err != nil {
		return fmt.Errorf("approvals: mark decided: %w", err)
	}
	return nil
}

// ListPendingOlderThan returns pending approvals requested before the cutoff,
// oldest first. Used by the reminder sweep.
func (r *Repository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]Approval, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, entity_type, entity_id, stage, status, requested_by, decided_by, comments, created_at, decided_at
FROM approvals
WHERE status = 'pending' AND created_at < $1
ORDER BY created_at ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("approvals: list stale pending: %w", err)
	}
	defer rows.Close()
	var out []Approval
	for rows.Next() {
		var a Approval
		if err := rows.Scan(&a.ID, &a.EntityType, &a.EntityID, &a.Stage, &a.Status, &a.RequestedBy, &a.DecidedBy, &a.Comments, &a.CreatedAt, &a.DecidedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListForEntity returns all approvals of an entity, newest first.
func (r *Repository) ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]Approval, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, entity_type, entity_id, stage, status, requested_by, decided_by, comments, created_at, decided_at
FROM approvals
WHERE entity_type = $1 AND entity_id = $2
ORDER BY created_at DESC`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("approvals: list: %w", err)
	}
	defer rows.Close()
	var out []Approval
	for rows.Next() {
		var a Approval
		if err := rows.Scan(&a.ID, &a.EntityType, &a.EntityID, &a.Stage, &a.Status, &a.RequestedBy, &a.DecidedBy, &a.Comments, &a.CreatedAt, &a.DecidedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
