package shared

import (
	"context"

	"github.com/google/uuid"
)

// Actor identifies the authenticated user performing a request.
type Actor struct {
	ID       uuid.UUID
	Name     string
	Role     string
	FullName string
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}
