package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mtlprog/worklog/internal/domain"
)

const (
	// DefaultAuditLimit is the page size used when none is given.
	DefaultAuditLimit = 50
	// MaxAuditLimit caps audit page sizes.
	MaxAuditLimit = 100
)

// AuditStore persists audit rows. Implementations must only append.
type AuditStore interface {
	CreateLog(ctx context.Context, tx pgx.Tx, log *domain.TaskLog) error
	CreateStatusChange(ctx context.Context, tx pgx.Tx, change *domain.TaskStatusChange) error
}

// AuditReader reads the audit streams.
type AuditReader interface {
	ListLogs(ctx context.Context, taskID int64, limit, offset int) ([]*domain.TaskLog, error)
	ListStatusChanges(ctx context.Context, taskID int64, limit, offset int) ([]*domain.TaskStatusChange, error)
	Activity(ctx context.Context, taskID int64, limit, offset int) ([]domain.ActivityEntry, error)
}

// AuditLogger turns lifecycle events into TaskLog and TaskStatusChange rows.
type AuditLogger struct {
	store  AuditStore
	reader AuditReader
	logger *slog.Logger
}

// NewAuditLogger creates a new AuditLogger.
func NewAuditLogger(store AuditStore, reader AuditReader) *AuditLogger {
	return &AuditLogger{
		store:  store,
		reader: reader,
		logger: slog.With("component", "audit"),
	}
}

// auditMetadata is the versioned metadata stored with every TaskLog row.
type auditMetadata struct {
	SchemaVersion int    `json:"schema_version"`
	Event         string `json:"event"`
	Reason        string `json:"reason,omitempty"`
	Comment       string `json:"comment,omitempty"`
}

type statusValue struct {
	Status domain.TaskStatus `json:"status"`
}

type assigneeValue struct {
	AssigneeID *int64 `json:"assignee_id"`
}

type startedValue struct {
	Status    domain.TaskStatus `json:"status"`
	StartedAt *time.Time        `json:"started_at"`
}

type completedValue struct {
	Status      domain.TaskStatus `json:"status"`
	CompletedAt *time.Time        `json:"completed_at"`
	ActualHours float64           `json:"actual_hours"`
}

type commentValue struct {
	CommentID int64  `json:"comment_id,omitempty"`
	Content   string `json:"content"`
}

type taskSnapshot struct {
	Title          string              `json:"title"`
	Status         domain.TaskStatus   `json:"status"`
	Priority       domain.TaskPriority `json:"priority"`
	TeamID         int64               `json:"team_id"`
	ProjectID      *int64              `json:"project_id"`
	AssigneeID     *int64              `json:"assignee_id"`
	DueDate        *time.Time          `json:"due_date"`
	EstimatedHours float64             `json:"estimated_hours"`
}

// BuildRows maps events to audit rows: one TaskLog per event and one
// TaskStatusChange per status change event.
func BuildRows(events []domain.Event) ([]domain.TaskLog, []domain.TaskStatusChange, error) {
	logs := make([]domain.TaskLog, 0, len(events))
	var changes []domain.TaskStatusChange

	for _, e := range events {
		meta := auditMetadata{SchemaVersion: domain.AuditSchemaVersion, Event: string(e.Kind)}
		var (
			action   domain.LogAction
			oldValue any
			newValue any
		)

		switch e.Kind {
		case domain.EventTaskCreated:
			action = domain.LogActionTaskCreated
			newValue = taskSnapshot{
				Title:          e.Task.Title,
				Status:         e.NewStatus,
				Priority:       e.Task.Priority,
				TeamID:         e.Task.TeamID,
				ProjectID:      e.Task.ProjectID,
				AssigneeID:     e.Task.AssigneeID,
				DueDate:        e.Task.DueDate,
				EstimatedHours: e.Task.EstimatedHours,
			}
		case domain.EventTaskAssigned:
			action = domain.LogActionAssignmentChange
			oldValue = assigneeValue{AssigneeID: e.OldAssignee}
			newValue = assigneeValue{AssigneeID: e.NewAssignee}
		case domain.EventTaskClaimed:
			action = domain.LogActionTaskClaimed
			oldValue = assigneeValue{AssigneeID: e.OldAssignee}
			newValue = assigneeValue{AssigneeID: e.NewAssignee}
		case domain.EventTaskStarted:
			action = domain.LogActionTaskStarted
			newValue = startedValue{Status: e.Task.Status, StartedAt: e.Task.StartedAt}
		case domain.EventTaskSubmitted:
			action = domain.LogActionTaskSubmitted
			meta.Comment = e.Comment
		case domain.EventTaskApproved:
			action = domain.LogActionTaskApproved
			meta.Comment = e.Comment
		case domain.EventTaskRejected:
			action = domain.LogActionTaskRejected
			meta.Reason = e.Reason
		case domain.EventTaskCompleted:
			action = domain.LogActionTaskCompleted
			newValue = completedValue{
				Status:      e.Task.Status,
				CompletedAt: e.Task.CompletedAt,
				ActualHours: e.Task.ActualHours,
			}
		case domain.EventTaskStatusChanged:
			action = domain.LogActionStatusChange
			oldValue = statusValue{Status: e.OldStatus}
			newValue = statusValue{Status: e.NewStatus}
			meta.Reason = e.Reason
			meta.Comment = e.Comment
			changes = append(changes, domain.TaskStatusChange{
				TaskID:    e.TaskID,
				ActorID:   e.ActorID,
				OldStatus: e.OldStatus,
				NewStatus: e.NewStatus,
				Reason:    e.Reason,
				Comment:   e.Comment,
			})
		case domain.EventTaskCommentAdded:
			action = domain.LogActionCommentAdded
			newValue = commentValue{CommentID: e.CommentID, Content: e.Comment}
		case domain.EventTaskUpdated:
			action = domain.LogActionTaskUpdated
			olds := make(map[string]any, len(e.Changes))
			news := make(map[string]any, len(e.Changes))
			for field, c := range e.Changes {
				olds[field] = c.Old
				news[field] = c.New
			}
			oldValue, newValue = olds, news
		default:
			return nil, nil, fmt.Errorf("unknown event kind %q", e.Kind)
		}

		row := domain.TaskLog{TaskID: e.TaskID, ActorID: e.ActorID, Action: action}
		var err error
		if row.OldValue, err = marshalValue(oldValue); err != nil {
			return nil, nil, err
		}
		if row.NewValue, err = marshalValue(newValue); err != nil {
			return nil, nil, err
		}
		if row.Metadata, err = json.Marshal(meta); err != nil {
			return nil, nil, fmt.Errorf("marshal audit metadata: %w", err)
		}
		logs = append(logs, row)
	}

	return logs, changes, nil
}

func marshalValue(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal audit value: %w", err)
	}
	return raw, nil
}

// Append writes the audit rows for events within tx.
func (a *AuditLogger) Append(ctx context.Context, tx pgx.Tx, events []domain.Event) error {
	logs, changes, err := BuildRows(events)
	if err != nil {
		return err
	}

	for i := range logs {
		if err := a.store.CreateLog(ctx, tx, &logs[i]); err != nil {
			return fmt.Errorf("append task log: %w", err)
		}
	}
	for i := range changes {
		if err := a.store.CreateStatusChange(ctx, tx, &changes[i]); err != nil {
			return fmt.Errorf("append status change: %w", err)
		}
	}

	a.logger.Debug("audit rows appended", "logs", len(logs), "status_changes", len(changes))
	return nil
}

// NormalizePage validates audit pagination and applies the default limit.
func NormalizePage(limit, offset int) (int, int, error) {
	if limit == 0 {
		limit = DefaultAuditLimit
	}
	if limit < 1 || limit > MaxAuditLimit {
		return 0, 0, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, MaxAuditLimit)
	}
	if offset < 0 {
		return 0, 0, fmt.Errorf("%w: offset must not be negative", domain.ErrValidation)
	}
	return limit, offset, nil
}

// Logs lists the operation log of a task, newest first.
func (a *AuditLogger) Logs(ctx context.Context, taskID int64, limit, offset int) ([]*domain.TaskLog, error) {
	limit, offset, err := NormalizePage(limit, offset)
	if err != nil {
		return nil, err
	}
	return a.reader.ListLogs(ctx, taskID, limit, offset)
}

// StatusChanges lists the status history of a task, newest first.
func (a *AuditLogger) StatusChanges(ctx context.Context, taskID int64, limit, offset int) ([]*domain.TaskStatusChange, error) {
	limit, offset, err := NormalizePage(limit, offset)
	if err != nil {
		return nil, err
	}
	return a.reader.ListStatusChanges(ctx, taskID, limit, offset)
}

// Activity merges both audit streams sorted by time, newest first.
func (a *AuditLogger) Activity(ctx context.Context, taskID int64, limit, offset int) ([]domain.ActivityEntry, error) {
	limit, offset, err := NormalizePage(limit, offset)
	if err != nil {
		return nil, err
	}
	return a.reader.Activity(ctx, taskID, limit, offset)
}
