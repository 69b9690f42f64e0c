package approvals

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	rows []*Approval
}

func (s *memoryStore) Insert(_ context.Context, a *Approval) error {
	clone := *a
	s.rows = append(s.rows, &clone)
	return nil
}

func (s *memoryStore) NewestPending(_ context.Context, entityType string, entityID uuid.UUID) (*Approval, error) {
	var newest *Approval
	for _, a := range s.rows {
		if a.EntityType != entityType || a.EntityID != entityID || a.Status != StatusPending {
			continue
		}
		if newest == nil || a.CreatedAt.After(newest.CreatedAt) {
			newest = a
		}
	}
	if newest == nil {
		return nil, nil
	}
	clone := *newest
	return &clone, nil
}

func (s *memoryStore) MarkDecided(_ context.Context, id uuid.UUID, stage, decision string, decidedBy uuid.UUID, comments string, decidedAt time.Time) error {
	for _, a := range s.rows {
		if a.ID == id {
			a.Status = decision
			a.Stage = stage
			a.DecidedBy = &decidedBy
			a.Comments = comments
			a.DecidedAt = &decidedAt
		}
	}
	return nil
}

func (s *memoryStore) ListForEntity(_ context.Context, entityType string, entityID uuid.UUID) ([]Approval, error) {
	var out []Approval
	for _, a := range s.rows {
		if a.EntityType == entityType && a.EntityID == entityID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func TestResolveDecidesNewestPending(t *testing.T) {
	store := &memoryStore{}
	tracker := NewTracker(store)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	tracker.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	entityID := uuid.New()
	requester := uuid.New()
	approver := uuid.New()
	ctx := context.Background()

	require.NoError(t, tracker.Open(ctx, "order", entityID, "decoding_approval", requester))
	require.NoError(t, tracker.Open(ctx, "order", entityID, "po_approval", requester))
	require.NoError(t, tracker.Resolve(ctx, "order", entityID, "po_approval", DecisionApproved, approver, "ok"))

	history, err := tracker.ListForEntity(ctx, "order", entityID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// The newer record got the decision, the older stays pending.
	var decided, pending int
	for _, a := range history {
		switch a.Status {
		case DecisionApproved:
			decided++
			require.Equal(t, "po_approval", a.Stage)
			require.NotNil(t, a.DecidedBy)
			require.Equal(t, approver, *a.DecidedBy)
			require.NotNil(t, a.DecidedAt)
		case StatusPending:
			pending++
		}
	}
	require.Equal(t, 1, decided)
	require.Equal(t, 1, pending)
}

func TestResolveWithNothingPendingIsNoOp(t *testing.T) {
	store := &memoryStore{}
	tracker := NewTracker(store)
	ctx := context.Background()
	entityID := uuid.New()

	require.NoError(t, tracker.Resolve(ctx, "order", entityID, "decoding_approval", DecisionRejected, uuid.New(), "nothing to do"))
	history, err := tracker.ListForEntity(ctx, "order", entityID)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestResolveIsIdempotentPerDecision(t *testing.T) {
	store := &memoryStore{}
	tracker := NewTracker(store)
	ctx := context.Background()
	entityID := uuid.New()
	requester := uuid.New()
	approver := uuid.New()

	require.NoError(t, tracker.Open(ctx, "order", entityID, "decoding_approval", requester))
	require.NoError(t, tracker.Resolve(ctx, "order", entityID, "decoding_approval", DecisionApproved, approver, ""))
	// Second resolve finds nothing pending and changes nothing.
	require.NoError(t, tracker.Resolve(ctx, "order", entityID, "decoding_approval", DecisionRejected, approver, "late"))

	history, err := tracker.ListForEntity(ctx, "order", entityID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, DecisionApproved, history[0].Status)
}
