package lifecycle

import (
	"fmt"
	"time"

	"github.com/mtlprog/worklog/internal/domain"
)

// AssigneeChange sets or clears the assignee in a patch. A nil ID clears it.
type AssigneeChange struct {
	ID *int64
}

// PatchInput is a generic field update. Nil fields are left untouched.
type PatchInput struct {
	Title          *string
	Description    *string
	Priority       *domain.TaskPriority
	DueDate        *time.Time
	EstimatedHours *float64
	ProjectID      *int64
	Status         *domain.TaskStatus
	Assignee       *AssigneeChange
}

// IsEmpty reports whether the patch names no field at all.
func (p PatchInput) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.DueDate == nil && p.EstimatedHours == nil && p.ProjectID == nil &&
		p.Status == nil && p.Assignee == nil
}

// Patch applies a generic field update.
//
// A status named in the patch must be a legal edge from the current status
// and gets the same side effects as the named operation reaching it. When no
// status is given, assignee changes are auto-corrected. An explicit status
// always wins over auto-correction.
func (m *Machine) Patch(task domain.Task, actorID int64, in PatchInput) (Result, error) {
	if err := checkExists(task); err != nil {
		return Result{}, err
	}
	if in.IsEmpty() {
		return Result{}, fmt.Errorf("%w: no fields to update", domain.ErrValidation)
	}

	next := task.Clone()
	changes := map[string]domain.FieldChange{}

	if in.Title != nil {
		title, err := validateTitle(*in.Title)
		if err != nil {
			return Result{}, err
		}
		if title != next.Title {
			changes["title"] = domain.FieldChange{Old: next.Title, New: title}
			next.Title = title
		}
	}
	if in.Description != nil && *in.Description != next.Description {
		changes["description"] = domain.FieldChange{Old: next.Description, New: *in.Description}
		next.Description = *in.Description
	}
	if in.Priority != nil {
		if !in.Priority.IsValid() {
			return Result{}, fmt.Errorf("%w: %q", domain.ErrInvalidPriority, *in.Priority)
		}
		if *in.Priority != next.Priority {
			changes["priority"] = domain.FieldChange{Old: next.Priority, New: *in.Priority}
			next.Priority = *in.Priority
		}
	}
	if in.DueDate != nil && (next.DueDate == nil || !next.DueDate.Equal(*in.DueDate)) {
		changes["due_date"] = domain.FieldChange{Old: next.DueDate, New: *in.DueDate}
		due := *in.DueDate
		next.DueDate = &due
	}
	if in.EstimatedHours != nil {
		if *in.EstimatedHours < 0 {
			return Result{}, fmt.Errorf("%w: estimated hours must not be negative", domain.ErrValidation)
		}
		if *in.EstimatedHours != next.EstimatedHours {
			changes["estimated_hours"] = domain.FieldChange{Old: next.EstimatedHours, New: *in.EstimatedHours}
			next.EstimatedHours = *in.EstimatedHours
		}
	}
	if in.ProjectID != nil && !domain.SameInt64(next.ProjectID, in.ProjectID) {
		changes["project_id"] = domain.FieldChange{Old: next.ProjectID, New: *in.ProjectID}
		next.ProjectID = domain.Int64Ptr(*in.ProjectID)
	}
	if in.Status != nil && !in.Status.IsValid() {
		return Result{}, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, *in.Status)
	}

	now := m.now()
	var events []domain.Event
	if len(changes) > 0 {
		events = append(events, domain.Event{Kind: domain.EventTaskUpdated, Changes: changes})
	}

	if in.Assignee != nil && !domain.SameInt64(next.AssigneeID, in.Assignee.ID) {
		if next.Status.IsTerminal() {
			return Result{}, invalidTransition("reassign", next.Status)
		}
		old := next.AssigneeID
		if in.Assignee.ID != nil {
			next.AssigneeID = domain.Int64Ptr(*in.Assignee.ID)
		} else {
			next.AssigneeID = nil
		}
		events = append(events, domain.Event{
			Kind:        domain.EventTaskAssigned,
			OldAssignee: old,
			NewAssignee: next.AssigneeID,
		})
	}

	switch {
	case in.Status != nil && *in.Status != next.Status:
		if !CanTransition(next.Status, *in.Status) {
			return Result{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, next.Status, *in.Status)
		}
		events = append(events, applyStatus(&next, *in.Status, now, "", "")...)
	case in.Status == nil:
		events = append(events, autoCorrect(&next, now)...)
	}

	if len(events) == 0 {
		return Result{Task: task.Clone()}, nil
	}
	return m.finish(next, actorID, now, events), nil
}
