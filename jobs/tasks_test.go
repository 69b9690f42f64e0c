package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/velora-oms/velora-oms/internal/approvals"
	jobmetrics "github.com/velora-oms/velora-oms/internal/jobs"
	"github.com/velora-oms/velora-oms/internal/shared"
)

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) Refresh(context.Context) error {
	f.calls++
	return f.err
}

type fakeApprovalSource struct {
	gotCutoff time.Time
	rows      []approvals.Approval
}

func (f *fakeApprovalSource) ListPendingOlderThan(_ context.Context, cutoff time.Time) ([]approvals.Approval, error) {
	f.gotCutoff = cutoff
	return f.rows, nil
}

func newTasks(refresher *fakeRefresher, source *fakeApprovalSource) *Tasks {
	return &Tasks{
		Outstanding: refresher,
		Approvals:   source,
		Metrics:     jobmetrics.NewMetrics(prometheus.NewRegistry()),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestHandleOutstandingRefresh(t *testing.T) {
	refresher := &fakeRefresher{}
	tasks := newTasks(refresher, &fakeApprovalSource{})

	require.NoError(t, tasks.HandleOutstandingRefresh(context.Background(), NewOutstandingRefreshTask()))
	require.Equal(t, 1, refresher.calls)
}

func TestHandleOutstandingRefreshPropagatesError(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("redis down")}
	tasks := newTasks(refresher, &fakeApprovalSource{})

	err := tasks.HandleOutstandingRefresh(context.Background(), NewOutstandingRefreshTask())
	require.EqualError(t, err, "redis down")
}

func TestHandleApprovalReminderUsesPayloadAge(t *testing.T) {
	source := &fakeApprovalSource{rows: []approvals.Approval{{
		ID: uuid.New(), EntityType: shared.EntityOrder, EntityID: uuid.New(),
		Stage: "po_approval", Status: approvals.StatusPending,
		CreatedAt: time.Now().UTC().Add(-72 * time.Hour),
	}}}
	tasks := newTasks(&fakeRefresher{}, source)

	task, err := NewApprovalReminderTask(ApprovalReminderPayload{MaxAgeHours: 48})
	require.NoError(t, err)
	require.NoError(t, tasks.HandleApprovalReminder(context.Background(), task))

	wantCutoff := time.Now().UTC().Add(-48 * time.Hour)
	require.WithinDuration(t, wantCutoff, source.gotCutoff, 5*time.Second)
}

func TestHandleApprovalReminderDefaultsTo24Hours(t *testing.T) {
	source := &fakeApprovalSource{}
	tasks := newTasks(&fakeRefresher{}, source)

	task, err := NewApprovalReminderTask(ApprovalReminderPayload{})
	require.NoError(t, err)
	require.NoError(t, tasks.HandleApprovalReminder(context.Background(), task))

	wantCutoff := time.Now().UTC().Add(-24 * time.Hour)
	require.WithinDuration(t, wantCutoff, source.gotCutoff, 5*time.Second)
}

type fakePruner struct {
	gotWindow time.Duration
}

func (f *fakePruner) Prune(_ context.Context, olderThan time.Duration) error {
	f.gotWindow = olderThan
	return nil
}

func TestHandleAuditPruneDefaultsToOneYear(t *testing.T) {
	pruner := &fakePruner{}
	tasks := newTasks(&fakeRefresher{}, &fakeApprovalSource{})
	tasks.Audit = pruner

	task, err := NewAuditPruneTask(AuditPrunePayload{})
	require.NoError(t, err)
	require.NoError(t, tasks.HandleAuditPrune(context.Background(), task))
	require.Equal(t, 365*24*time.Hour, pruner.gotWindow)
}
