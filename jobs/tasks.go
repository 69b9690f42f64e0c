package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/velora-oms/velora-oms/internal/approvals"
	jobmetrics "github.com/velora-oms/velora-oms/internal/jobs"
)

const (
	// QueueDefault is the queue all background jobs run on.
	QueueDefault = "default"
	// TaskOutstandingRefresh recomputes the outstanding reconciliation cache.
	TaskOutstandingRefresh = "outstanding:refresh"
	// TaskApprovalReminder sweeps for approvals left pending too long.
	TaskApprovalReminder = "approvals:remind"
	// TaskAuditPrune trims old audit log rows.
	TaskAuditPrune = "audit:prune"
)

// OutstandingRefresher is satisfied by outstanding.Service.
type OutstandingRefresher interface {
	Refresh(ctx context.Context) error
}

// PendingApprovalSource lists approvals still pending past a cutoff.
type PendingApprovalSource interface {
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]approvals.Approval, error)
}

// AuditPruner removes audit rows older than the retention window.
type AuditPruner interface {
	Prune(ctx context.Context, olderThan time.Duration) error
}

// ApprovalReminderPayload carries the reminder age for one sweep.
type ApprovalReminderPayload struct {
	MaxAgeHours int `json:"max_age_hours"`
}

// AuditPrunePayload carries the retention window for one prune run.
type AuditPrunePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewOutstandingRefreshTask constructs the refresh task.
func NewOutstandingRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskOutstandingRefresh, nil)
}

// NewApprovalReminderTask constructs a reminder sweep task.
func NewApprovalReminderTask(payload ApprovalReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskApprovalReminder, data), nil
}

// NewAuditPruneTask constructs a prune task.
func NewAuditPruneTask(payload AuditPrunePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, data), nil
}

// Tasks bundles the dependencies of the task handlers.
type Tasks struct {
	Outstanding OutstandingRefresher
	Approvals   PendingApprovalSource
	Audit       AuditPruner
	Metrics     *jobmetrics.Metrics
	Logger      *slog.Logger
}

// HandleOutstandingRefresh recomputes the outstanding projections so API reads
// stay warm between dispatches.
func (t *Tasks) HandleOutstandingRefresh(ctx context.Context, _ *asynq.Task) error {
	tracker := t.Metrics.Track("outstanding_refresh")
	err := t.Outstanding.Refresh(ctx)
	if err != nil {
		t.Logger.Error("outstanding refresh", slog.Any("error", err))
	} else {
		t.Logger.Info("outstanding refresh complete")
	}
	return tracker.End(err)
}

// HandleApprovalReminder logs approvals that have been waiting on a decision
// longer than the configured age and updates the stale gauge.
func (t *Tasks) HandleApprovalReminder(ctx context.Context, task *asynq.Task) error {
	var payload ApprovalReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.MaxAgeHours <= 0 {
		payload.MaxAgeHours = 24
	}
	tracker := t.Metrics.Track("approval_reminder")
	cutoff := time.Now().UTC().Add(-time.Duration(payload.MaxAgeHours) * time.Hour)
	stale, err := t.Approvals.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		t.Logger.Error("approval reminder sweep", slog.Any("error", err))
		return tracker.End(err)
	}
	t.Metrics.SetStaleApprovals(len(stale))
	for _, a := range stale {
		t.Logger.Warn("approval pending past reminder age",
			slog.String("entity_type", a.EntityType),
			slog.String("entity_id", a.EntityID.String()),
			slog.String("stage", a.Stage),
			slog.Time("requested_at", a.CreatedAt))
	}
	return tracker.End(nil)
}

// HandleAuditPrune trims audit rows past the retention window.
func (t *Tasks) HandleAuditPrune(ctx context.Context, task *asynq.Task) error {
	var payload AuditPrunePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionDays <= 0 {
		payload.RetentionDays = 365
	}
	tracker := t.Metrics.Track("audit_prune")
	err := t.Audit.Prune(ctx, time.Duration(payload.RetentionDays)*24*time.Hour)
	if err != nil {
		t.Logger.Error("audit prune", slog.Any("error", err))
	} else {
		t.Logger.Info("audit prune complete", slog.Int("retention_days", payload.RetentionDays))
	}
	return tracker.End(err)
}
