package approvals

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence port of the tracker.
type Store interface {
	Insert(ctx context.Context, a *Approval) error
	// NewestPending returns the most recent pending approval for the entity,
	// or nil when none exists.
	NewestPending(ctx context.Context, entityType string, entityID uuid.UUID) (*Approval, error)
	MarkDecided(ctx context.Context, id uuid.UUID, stage, decision string, decidedBy uuid.UUID, comments string, decidedAt time.Time) error
	ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]Approval, error)
}

// Tracker records approval requests and decisions. Resolution targets the
// newest pending record of the entity; the stage is written for audit, not
// used for lookup.
type Tracker struct {
	store Store
	now   func() time.Time
}

// NewTracker constructs a Tracker.
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// Open records a pending approval for the entity at the given stage.
func (t *Tracker) Open(ctx context.Context, entityType string, entityID uuid.UUID, stage string, requestedBy uuid.UUID) error {
	return t.store.Insert(ctx, &Approval{
		ID:          uuid.New(),
		EntityType:  entityType,
		EntityID:    entityID,
		Stage:       stage,
		Status:      StatusPending,
		RequestedBy: requestedBy,
		CreatedAt:   t.now().UTC(),
	})
}

// Resolve decides the newest pending approval of the entity. When nothing is
// pending the call is a no-op so workflow transitions stay best-effort on
// approval bookkeeping.
func (t *Tracker) Resolve(ctx context.Context, entityType string, entityID uuid.UUID, stage, decision string, decidedBy uuid.UUID, comments string) error {
	pending, err := t.store.NewestPending(ctx, entityType, entityID)
	if err != nil {
		return err
	}
	if pending == nil {
		return nil
	}
	return t.store.MarkDecided(ctx, pending.ID, stage, decision, decidedBy, comments, t.now().UTC())
}

// ListForEntity returns the full approval history of an entity.
func (t *Tracker) ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]Approval, error) {
	return t.store.ListForEntity(ctx, entityType, entityID)
}
