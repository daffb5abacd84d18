package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mtlprog/worklog/internal/domain"
	"github.com/mtlprog/worklog/internal/lifecycle"
	"github.com/mtlprog/worklog/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuditStore struct {
	logs    []domain.TaskLog
	changes []domain.TaskStatusChange
	failOn  domain.LogAction
}

func (f *fakeAuditStore) CreateLog(_ context.Context, _ pgx.Tx, log *domain.TaskLog) error {
	if f.failOn != "" && log.Action == f.failOn {
		return errors.New("disk full")
	}
	log.ID = int64(len(f.logs) + 1)
	f.logs = append(f.logs, *log)
	return nil
}

func (f *fakeAuditStore) CreateStatusChange(_ context.Context, _ pgx.Tx, change *domain.TaskStatusChange) error {
	change.ID = int64(len(f.changes) + 1)
	f.changes = append(f.changes, *change)
	return nil
}

func fixedMachine(now time.Time) *lifecycle.Machine {
	return lifecycle.NewMachine(func() time.Time { return now })
}

func TestBuildRows_AssignFromPending(t *testing.T) {
	m := fixedMachine(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
	task := domain.Task{ID: 5, Title: "t", Status: domain.TaskStatusPending, TeamID: 1, CreatorID: 1}

	res, err := m.Assign(task, 1, 7)
	require.NoError(t, err)

	logs, changes, err := service.BuildRows(res.Events)
	require.NoError(t, err)

	require.Len(t, logs, 2)
	assert.Equal(t, domain.LogActionAssignmentChange, logs[0].Action)
	assert.JSONEq(t, `{"assignee_id":null}`, string(logs[0].OldValue))
	assert.JSONEq(t, `{"assignee_id":7}`, string(logs[0].NewValue))

	assert.Equal(t, domain.LogActionStatusChange, logs[1].Action)
	assert.JSONEq(t, `{"status":"PENDING"}`, string(logs[1].OldValue))
	assert.JSONEq(t, `{"status":"ASSIGNED"}`, string(logs[1].NewValue))

	var meta map[string]any
	require.NoError(t, json.Unmarshal(logs[1].Metadata, &meta))
	assert.EqualValues(t, 1, meta["schema_version"])
	assert.Equal(t, domain.ReasonAutoCorrection, meta["reason"])

	require.Len(t, changes, 1)
	assert.Equal(t, int64(5), changes[0].TaskID)
	assert.Equal(t, domain.TaskStatusPending, changes[0].OldStatus)
	assert.Equal(t, domain.TaskStatusAssigned, changes[0].NewStatus)
}

func TestBuildRows_EveryTransitionHasOneStatusChange(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	m := fixedMachine(now)
	task := domain.Task{ID: 9, Title: "t", Status: domain.TaskStatusPending, TeamID: 1, CreatorID: 1}

	steps := []func(domain.Task) (lifecycle.Result, error){
		func(t domain.Task) (lifecycle.Result, error) { return m.Claim(t, 7) },
		func(t domain.Task) (lifecycle.Result, error) { return m.Start(t, 7) },
		func(t domain.Task) (lifecycle.Result, error) { return m.SubmitReview(t, 7, "") },
		func(t domain.Task) (lifecycle.Result, error) { return m.Reject(t, 1, "needs more work") },
		func(t domain.Task) (lifecycle.Result, error) { return m.SubmitReview(t, 7, "") },
		func(t domain.Task) (lifecycle.Result, error) { return m.Approve(t, 1, "") },
	}

	for i, step := range steps {
		res, err := step(task)
		require.NoError(t, err, "step %d", i)

		logs, changes, err := service.BuildRows(res.Events)
		require.NoError(t, err)
		require.Len(t, changes, 1, "step %d", i)
		assert.Equal(t, task.Status, changes[0].OldStatus)
		assert.Equal(t, res.Task.Status, changes[0].NewStatus)
		assert.NotEmpty(t, logs)
		task = res.Task
	}
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
}

func TestBuildRows_RejectRecordsReason(t *testing.T) {
	m := fixedMachine(time.Now())
	task := domain.Task{ID: 3, Title: "t", Status: domain.TaskStatusReview, TeamID: 1, CreatorID: 1}

	res, err := m.Reject(task, 1, "needs more work")
	require.NoError(t, err)

	logs, _, err := service.BuildRows(res.Events)
	require.NoError(t, err)
	require.Equal(t, domain.LogActionTaskRejected, logs[0].Action)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(logs[0].Metadata, &meta))
	assert.Equal(t, "needs more work", meta["reason"])
}

func TestBuildRows_UnknownKind(t *testing.T) {
	_, _, err := service.BuildRows([]domain.Event{{Kind: "task_exploded"}})
	assert.Error(t, err)
}

func TestAuditLogger_Append(t *testing.T) {
	store := &fakeAuditStore{}
	audit := service.NewAuditLogger(store, nil)

	m := fixedMachine(time.Now())
	res, err := m.Claim(domain.Task{ID: 1, Title: "t", Status: domain.TaskStatusPending, TeamID: 1}, 2)
	require.NoError(t, err)

	require.NoError(t, audit.Append(context.Background(), nil, res.Events))
	assert.Len(t, store.logs, 2)
	assert.Len(t, store.changes, 1)
	assert.Equal(t, domain.LogActionTaskClaimed, store.logs[0].Action)
}

func TestAuditLogger_AppendFailure(t *testing.T) {
	store := &fakeAuditStore{failOn: domain.LogActionStatusChange}
	audit := service.NewAuditLogger(store, nil)

	m := fixedMachine(time.Now())
	res, err := m.Claim(domain.Task{ID: 1, Title: "t", Status: domain.TaskStatusPending, TeamID: 1}, 2)
	require.NoError(t, err)

	err = audit.Append(context.Background(), nil, res.Events)
	assert.Error(t, err)
}

func TestNormalizePage(t *testing.T) {
	limit, offset, err := service.NormalizePage(0, 0)
	require.NoError(t, err)
	assert.Equal(t, service.DefaultAuditLimit, limit)
	assert.Equal(t, 0, offset)

	_, _, err = service.NormalizePage(101, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = service.NormalizePage(10, -1)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
