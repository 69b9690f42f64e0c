package attachments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists attachment metadata in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an attachment row.
func (r *Repository) Create(ctx context.Context, a *Attachment) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO attachments
(id, entity_type, entity_id, file_name, file_path, content_type, uploaded_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.EntityType, a.EntityID, a.FileName, a.FilePath, a.ContentType, a.UploadedBy, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("attachments: create: %w", err)
	}
	return nil
}

// ListForEntity returns attachments of one entity, newest first.
func (r *Repository) ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]Attachment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, entity_type, entity_id, file_name, file_path, content_type, uploaded_by, created_at
FROM attachments WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at DESC`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("attachments: list: %w", err)
	}
	defer rows.Close()
	var out []Attachment
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.EntityType, &a.EntityID, &a.FileName, &a.FilePath, &a.ContentType, &a.UploadedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountForEntity returns how many attachments an entity carries.
func (r *Repository) CountForEntity(ctx context.Context, entityType string, entityID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM attachments WHERE entity_type = $1 AND entity_id = $2`,
		entityType, entityID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("attachments: count: %w", err)
	}
	return n, nil
}
