package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/velora-oms/velora-oms/internal/platform/httpx"
	"github.com/velora-oms/velora-oms/internal/shared"
)

// PermissionSource abstracts the lookup so handlers can be tested without a database.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Source PermissionSource
	Logger *slog.Logger
}

// RequireAny ensures the current actor has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.require(perms, func(granted map[string]struct{}, required []string) bool {
		for _, p := range required {
			if _, ok := granted[p]; ok {
				return true
			}
		}
		return len(required) == 0
	})
}

// RequireAll ensures the current actor has all required permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.require(perms, func(granted map[string]struct{}, required []string) bool {
		for _, p := range required {
			if _, ok := granted[p]; !ok {
				return false
			}
		}
		return true
	})
}

func (m Middleware) require(perms []string, check func(map[string]struct{}, []string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actor := shared.ActorFromContext(r.Context())
			if actor == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			names, err := m.Source.EffectivePermissions(r.Context(), actor.ID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac lookup", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			granted := make(map[string]struct{}, len(names))
			for _, n := range names {
				granted[n] = struct{}{}
			}
			if !check(granted, perms) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing permission")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
