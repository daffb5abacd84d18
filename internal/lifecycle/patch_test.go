package lifecycle_test

import (
	"time"

	"github.com/mtlprog/worklog/internal/domain"
	"github.com/mtlprog/worklog/internal/lifecycle"
)

func (s *MachineTestSuite) TestPatch_SetAssigneeAutoCorrectsToAssigned() {
	res, err := s.machine.Patch(s.pendingTask(), 1, lifecycle.PatchInput{
		Assignee: &lifecycle.AssigneeChange{ID: domain.Int64Ptr(7)},
	})
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusAssigned, res.Task.Status)

	change, ok := domain.FindKind(res.Events, domain.EventTaskStatusChanged)
	s.Require().True(ok)
	s.Equal(domain.TaskStatusPending, change.OldStatus)
	s.Equal(domain.TaskStatusAssigned, change.NewStatus)
	s.Equal(domain.ReasonAutoCorrection, change.Reason)
}

func (s *MachineTestSuite) TestPatch_ClearAssigneeAutoCorrectsToPending() {
	task := s.pendingTask()
	task.Status = domain.TaskStatusAssigned
	task.AssigneeID = domain.Int64Ptr(7)

	res, err := s.machine.Patch(task, 1, lifecycle.PatchInput{
		Assignee: &lifecycle.AssigneeChange{},
	})
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusPending, res.Task.Status)
	s.Nil(res.Task.AssigneeID)

	assigned, ok := domain.FindKind(res.Events, domain.EventTaskAssigned)
	s.Require().True(ok)
	s.Equal(int64(7), *assigned.OldAssignee)
	s.Nil(assigned.NewAssignee)
}

func (s *MachineTestSuite) TestPatch_ExplicitStatusWins() {
	status := domain.TaskStatusPending
	task := s.pendingTask()
	task.Status = domain.TaskStatusAssigned
	task.AssigneeID = domain.Int64Ptr(7)

	// Explicit PENDING while keeping the assignee leaves the pair as requested.
	res, err := s.machine.Patch(task, 1, lifecycle.PatchInput{Status: &status})
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusPending, res.Task.Status)
	s.True(res.Task.IsAssignedTo(7))

	change, ok := domain.FindKind(res.Events, domain.EventTaskStatusChanged)
	s.Require().True(ok)
	s.Empty(change.Reason)
}

func (s *MachineTestSuite) TestPatch_ExplicitStatusSameAsCurrentSkipsAutoCorrection() {
	status := domain.TaskStatusPending
	res, err := s.machine.Patch(s.pendingTask(), 1, lifecycle.PatchInput{
		Status:   &status,
		Assignee: &lifecycle.AssigneeChange{ID: domain.Int64Ptr(7)},
	})
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusPending, res.Task.Status)
	s.False(domain.HasKind(res.Events, domain.EventTaskStatusChanged))
}

func (s *MachineTestSuite) TestPatch_IllegalStatusEdge() {
	status := domain.TaskStatusCompleted
	_, err := s.machine.Patch(s.pendingTask(), 1, lifecycle.PatchInput{Status: &status})
	s.ErrorIs(err, domain.ErrInvalidTransition)

	unknown := domain.TaskStatus("DONE")
	_, err = s.machine.Patch(s.pendingTask(), 1, lifecycle.PatchInput{Status: &unknown})
	s.ErrorIs(err, domain.ErrInvalidStatus)
}

func (s *MachineTestSuite) TestPatch_StatusCompletedHasSameSideEffects() {
	task := s.pendingTask()
	task.Status = domain.TaskStatusInProgress
	task.AssigneeID = domain.Int64Ptr(7)
	started := s.clock.Add(-3 * time.Hour)
	task.StartedAt = &started

	status := domain.TaskStatusCompleted
	res, err := s.machine.Patch(task, 7, lifecycle.PatchInput{Status: &status})
	s.Require().NoError(err)
	s.Require().NotNil(res.Task.CompletedAt)
	s.InDelta(3.0, res.Task.ActualHours, 1e-6)
	s.True(domain.HasKind(res.Events, domain.EventTaskCompleted))
}

func (s *MachineTestSuite) TestPatch_StatusInProgressSetsStartedAt() {
	status := domain.TaskStatusInProgress
	res, err := s.machine.Patch(s.pendingTask(), 1, lifecycle.PatchInput{Status: &status})
	s.Require().NoError(err)
	s.Require().NotNil(res.Task.StartedAt)
	s.Equal(s.clock, *res.Task.StartedAt)
	s.True(domain.HasKind(res.Events, domain.EventTaskStarted))
}

func (s *MachineTestSuite) TestPatch_FieldChangesRecorded() {
	title := "Write quarterly report"
	priority := domain.TaskPriorityUrgent
	res, err := s.machine.Patch(s.pendingTask(), 1, lifecycle.PatchInput{
		Title:    &title,
		Priority: &priority,
	})
	s.Require().NoError(err)
	s.Require().Len(res.Events, 1)
	s.Equal(domain.EventTaskUpdated, res.Events[0].Kind)
	s.Equal(domain.FieldChange{Old: "Write report", New: title}, res.Events[0].Changes["title"])
	s.Contains(res.Events[0].Changes, "priority")
	s.Equal(domain.TaskStatusPending, res.Task.Status)
}

func (s *MachineTestSuite) TestPatch_Empty() {
	_, err := s.machine.Patch(s.pendingTask(), 1, lifecycle.PatchInput{})
	s.ErrorIs(err, domain.ErrValidation)
}

func (s *MachineTestSuite) TestPatch_NoOpProducesNoEvents() {
	title := "Write report"
	res, err := s.machine.Patch(s.pendingTask(), 1, lifecycle.PatchInput{Title: &title})
	s.Require().NoError(err)
	s.Empty(res.Events)
}

func (s *MachineTestSuite) TestPatch_ReassignTerminalFails() {
	task := s.pendingTask()
	task.Status = domain.TaskStatusCompleted
	task.AssigneeID = domain.Int64Ptr(7)
	_, err := s.machine.Patch(task, 1, lifecycle.PatchInput{
		Assignee: &lifecycle.AssigneeChange{ID: domain.Int64Ptr(8)},
	})
	s.ErrorIs(err, domain.ErrInvalidTransition)
}

func (s *MachineTestSuite) TestCanTransition() {
	s.True(lifecycle.CanTransition(domain.TaskStatusReview, domain.TaskStatusInProgress))
	s.True(lifecycle.CanTransition(domain.TaskStatusAssigned, domain.TaskStatusPending))
	s.False(lifecycle.CanTransition(domain.TaskStatusCompleted, domain.TaskStatusInProgress))
	s.False(lifecycle.CanTransition(domain.TaskStatusCancelled, domain.TaskStatusPending))
	s.False(lifecycle.CanTransition(domain.TaskStatusPending, domain.TaskStatusReview))
}
