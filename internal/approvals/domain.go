package approvals

import (
	"time"

	"github.com/google/uuid"
)

// Decision values for a resolved approval.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// StatusPending marks an approval awaiting a decision.
const StatusPending = "pending"

// Approval is one pending or decided review of an entity at a workflow stage.
type Approval struct {
	ID          uuid.UUID  `json:"id"`
	EntityType  string     `json:"entity_type"`
	EntityID    uuid.UUID  `json:"entity_id"`
	Stage       string     `json:"stage"`
	Status      string     `json:"status"`
	RequestedBy uuid.UUID  `json:"requested_by"`
	DecidedBy   *uuid.UUID `json:"decided_by,omitempty"`
	Comments    string     `json:"comments,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}
