package domain

import (
	"encoding/json"
	"time"
)

// AuditSchemaVersion tags the shape of TaskLog metadata.
const AuditSchemaVersion = 1

// LogAction names a TaskLog row.
type LogAction string

const (
	LogActionTaskCreated      LogAction = "task_created"
	LogActionStatusChange     LogAction = "status_change"
	LogActionAssignmentChange LogAction = "assignment_change"
	LogActionTaskUpdated      LogAction = "task_updated"
	LogActionTaskClaimed      LogAction = "task_claimed"
	LogActionTaskStarted      LogAction = "task_started"
	LogActionTaskSubmitted    LogAction = "task_submitted"
	LogActionTaskApproved     LogAction = "task_approved"
	LogActionTaskRejected     LogAction = "task_rejected"
	LogActionTaskCompleted    LogAction = "task_completed"
	LogActionCommentAdded     LogAction = "comment_added"
)

// TaskLog is an append-only audit row for a task mutation.
type TaskLog struct {
	ID        int64
	TaskID    int64
	ActorID   int64
	Action    LogAction
	OldValue  json.RawMessage
	NewValue  json.RawMessage
	Metadata  json.RawMessage
	CreatedAt time.Time
}

// TaskStatusChange is an append-only record of one status transition.
type TaskStatusChange struct {
	ID        int64
	TaskID    int64
	ActorID   int64
	OldStatus TaskStatus
	NewStatus TaskStatus
	Reason    string
	Comment   string
	CreatedAt time.Time
}

// ActivityKind tags entries of the merged activity stream.
type ActivityKind string

const (
	ActivityOperation    ActivityKind = "operation"
	ActivityStatusChange ActivityKind = "status_change"
)

// ActivityEntry is one row of the merged audit stream.
type ActivityEntry struct {
	Kind         ActivityKind
	Log          *TaskLog
	StatusChange *TaskStatusChange
	CreatedAt    time.Time
}
