package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mtlprog/worklog/internal/domain"
	"github.com/mtlprog/worklog/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorkLogStore struct {
	logs []*domain.WorkLog
}

func (f *fakeWorkLogStore) Create(_ context.Context, _ pgx.Tx, w *domain.WorkLog) error {
	w.ID = int64(len(f.logs) + 1)
	f.logs = append(f.logs, w)
	return nil
}

func (f *fakeWorkLogStore) LatestOpenForUpdate(_ context.Context, _ pgx.Tx, taskID, userID int64) (*domain.WorkLog, error) {
	for i := len(f.logs) - 1; i >= 0; i-- {
		w := f.logs[i]
		if w.TaskID != nil && *w.TaskID == taskID && w.UserID == userID && w.IsOpen() {
			return w, nil
		}
	}
	return nil, domain.ErrWorkLogNotFound
}

func (f *fakeWorkLogStore) Finalize(context.Context, pgx.Tx, *domain.WorkLog) error {
	return nil
}

func TestWorkLogGenerator_StartThenComplete(t *testing.T) {
	t0 := time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)
	clock := t0
	m := fixedMachineFunc(&clock)
	store := &fakeWorkLogStore{}
	gen := service.NewWorkLogGenerator(store)
	ctx := context.Background()

	task := domain.Task{ID: 11, Title: "Index rebuild", Status: domain.TaskStatusAssigned, TeamID: 2, CreatorID: 1, AssigneeID: domain.Int64Ptr(7)}

	started, err := m.Start(task, 7)
	require.NoError(t, err)
	require.NoError(t, gen.Handle(ctx, nil, started.Events))

	require.Len(t, store.logs, 1)
	w := store.logs[0]
	assert.Equal(t, int64(7), w.UserID)
	assert.Equal(t, t0, w.StartTime)
	assert.Nil(t, w.EndTime)
	assert.Equal(t, domain.WorkStatusInProgress, w.WorkStatus)

	clock = t0.Add(2 * time.Hour)
	completed, err := m.Complete(started.Task, 7)
	require.NoError(t, err)
	require.NoError(t, gen.Handle(ctx, nil, completed.Events))

	require.Len(t, store.logs, 1)
	require.NotNil(t, w.EndTime)
	assert.Equal(t, clock, *w.EndTime)
	assert.InDelta(t, 2.0, w.Duration, 1e-6)
	assert.InDelta(t, completed.Task.ActualHours, w.Duration, 1e-6)
	assert.Equal(t, 100, w.ProgressPercentage)
	assert.Equal(t, domain.WorkStatusCompleted, w.WorkStatus)
}

func TestWorkLogGenerator_CompleteWithoutOpenLogCreatesClosedEntry(t *testing.T) {
	now := time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC)
	m := fixedMachine(now)
	store := &fakeWorkLogStore{}
	gen := service.NewWorkLogGenerator(store)

	started := now.Add(-30 * time.Minute)
	task := domain.Task{
		ID: 4, Title: "x", Status: domain.TaskStatusReview, TeamID: 1, CreatorID: 1,
		AssigneeID: domain.Int64Ptr(3), StartedAt: &started,
	}
	res, err := m.Approve(task, 1, "")
	require.NoError(t, err)
	require.NoError(t, gen.Handle(context.Background(), nil, res.Events))

	require.Len(t, store.logs, 1)
	w := store.logs[0]
	assert.Equal(t, int64(3), w.UserID, "owner is the assignee, not the approver")
	assert.Equal(t, started, w.StartTime)
	assert.InDelta(t, 0.5, w.Duration, 1e-6)
	assert.Equal(t, domain.WorkStatusCompleted, w.WorkStatus)
}

func TestWorkLogGenerator_OwnerFallsBackToActor(t *testing.T) {
	m := fixedMachine(time.Now())
	store := &fakeWorkLogStore{}
	gen := service.NewWorkLogGenerator(store)

	res, err := m.Start(domain.Task{ID: 8, Title: "x", Status: domain.TaskStatusPending, TeamID: 1}, 9)
	require.NoError(t, err)
	require.NoError(t, gen.Handle(context.Background(), nil, res.Events))

	require.Len(t, store.logs, 1)
	assert.Equal(t, int64(9), store.logs[0].UserID)
}

func TestWorkLogGenerator_IgnoresOtherEvents(t *testing.T) {
	store := &fakeWorkLogStore{}
	gen := service.NewWorkLogGenerator(store)

	err := gen.Handle(context.Background(), nil, []domain.Event{{Kind: domain.EventTaskCommentAdded}})
	require.NoError(t, err)
	assert.Empty(t, store.logs)
}

func TestHoursBetween(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.InDelta(t, 1.5, domain.HoursBetween(t0, t0.Add(90*time.Minute)), 1e-9)
	assert.Equal(t, 0.0, domain.HoursBetween(t0, t0.Add(-time.Hour)))
}
