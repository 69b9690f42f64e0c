package rbac

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velora-oms/velora-oms/internal/shared"
)

// Service resolves effective permissions for users.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// EffectivePermissions returns the permission names granted to the user via its role.
func (s *Service) EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT p.name
FROM users u
JOIN roles r ON r.id = u.role_id
JOIN role_permissions rp ON rp.role_id = r.id
JOIN permissions p ON p.id = rp.permission_id
WHERE u.id = $1 AND u.is_active`, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: effective permissions: %w", err)
	}
	defer rows.Close()
	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}

// Authorize returns shared.ErrAuthorizationDenied unless the user holds the permission.
func (s *Service) Authorize(ctx context.Context, userID uuid.UUID, permission string) error {
	granted, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return err
	}
	for _, p := range granted {
		if p == permission {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", shared.ErrAuthorizationDenied, permission)
}
