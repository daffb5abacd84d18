package domain

import "time"

// EventKind identifies a lifecycle event emitted by the task state machine.
type EventKind string

const (
	EventTaskCreated       EventKind = "task_created"
	EventTaskAssigned      EventKind = "task_assigned"
	EventTaskClaimed       EventKind = "task_claimed"
	EventTaskStarted       EventKind = "task_started"
	EventTaskSubmitted     EventKind = "task_submitted"
	EventTaskApproved      EventKind = "task_approved"
	EventTaskRejected      EventKind = "task_rejected"
	EventTaskCompleted     EventKind = "task_completed"
	EventTaskStatusChanged EventKind = "task_status_changed"
	EventTaskCommentAdded  EventKind = "task_comment_added"
	EventTaskUpdated       EventKind = "task_updated"
)

// ReasonAutoCorrection marks status changes applied to restore the
// assignee/status invariant rather than requested by the caller.
const ReasonAutoCorrection = "auto_correction"

// FieldChange records a single patched field.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Event is a task lifecycle event. Kind selects which optional fields are set:
//   - task_status_changed: OldStatus, NewStatus, Reason, Comment
//   - task_assigned / task_claimed: OldAssignee, NewAssignee
//   - task_rejected: Reason
//   - task_comment_added: Comment, CommentID (after persistence)
//   - task_updated: Changes
//   - task_started / task_completed: Task snapshot carries the timestamps
type Event struct {
	Kind        EventKind
	TaskID      int64
	ActorID     int64
	OccurredAt  time.Time
	OldStatus   TaskStatus
	NewStatus   TaskStatus
	OldAssignee *int64
	NewAssignee *int64
	Reason      string
	Comment     string
	CommentID   int64
	Changes     map[string]FieldChange
	Task        Task
}

// IsStatusChange reports whether the event records a status transition.
func (e Event) IsStatusChange() bool {
	return e.Kind == EventTaskStatusChanged
}

// HasKind reports whether events contains at least one event of kind.
func HasKind(events []Event, kind EventKind) bool {
	for _, e := range events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// FindKind returns the first event of kind and whether one was found.
func FindKind(events []Event, kind EventKind) (Event, bool) {
	for _, e := range events {
		if e.Kind == kind {
			return e, true
		}
	}
	return Event{}, false
}
