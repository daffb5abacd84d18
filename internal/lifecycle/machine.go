// Package lifecycle implements the task state machine.
//
// Every operation takes a task value and returns a new value together with
// the events it produced. Inputs are never mutated, so callers can persist
// the result and its audit trail as one unit or discard both.
package lifecycle

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mtlprog/worklog/internal/domain"
)

const maxTitleLength = 200

// Result is the outcome of an accepted operation.
type Result struct {
	Task   domain.Task
	Events []domain.Event
}

// BindTaskID stamps a freshly persisted task id onto the result and its events.
func (r *Result) BindTaskID(id int64) {
	r.Task.ID = id
	for i := range r.Events {
		r.Events[i].TaskID = id
		r.Events[i].Task.ID = id
	}
}

// Machine validates and applies task transitions.
type Machine struct {
	now func() time.Time
}

// NewMachine creates a Machine. A nil clock defaults to time.Now.
func NewMachine(now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{now: now}
}

// CreateInput holds the fields of a new task.
type CreateInput struct {
	Title          string
	Description    string
	Priority       domain.TaskPriority
	TeamID         int64
	ProjectID      *int64
	AssigneeID     *int64
	DueDate        *time.Time
	EstimatedHours float64
}

// QuickCreateInput builds the defaults used by quick task creation: only a
// title and priority are supplied, admins leave the task unassigned and
// everybody else becomes the assignee.
func QuickCreateInput(actorID int64, title string, priority domain.TaskPriority, teamID int64, actorIsAdmin bool) CreateInput {
	in := CreateInput{
		Title:    title,
		Priority: priority,
		TeamID:   teamID,
	}
	if !actorIsAdmin {
		in.AssigneeID = domain.Int64Ptr(actorID)
	}
	return in
}

// Create builds a new PENDING task, or ASSIGNED when an assignee is given.
func (m *Machine) Create(actorID int64, in CreateInput) (Result, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return Result{}, err
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.TaskPriorityMedium
	}
	if !priority.IsValid() {
		return Result{}, fmt.Errorf("%w: %q", domain.ErrInvalidPriority, priority)
	}
	if in.EstimatedHours < 0 {
		return Result{}, fmt.Errorf("%w: estimated hours must not be negative", domain.ErrValidation)
	}
	if in.TeamID <= 0 {
		return Result{}, fmt.Errorf("%w: team is required", domain.ErrValidation)
	}

	now := m.now()
	task := domain.Task{
		Title:          title,
		Description:    in.Description,
		Status:         domain.TaskStatusPending,
		Priority:       priority,
		TeamID:         in.TeamID,
		ProjectID:      in.ProjectID,
		CreatorID:      actorID,
		AssigneeID:     in.AssigneeID,
		DueDate:        in.DueDate,
		EstimatedHours: in.EstimatedHours,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	task = task.Clone()

	events := []domain.Event{{Kind: domain.EventTaskCreated, NewStatus: domain.TaskStatusPending}}
	if task.AssigneeID != nil {
		task.Status = domain.TaskStatusAssigned
		events[0].NewStatus = domain.TaskStatusAssigned
		events = append(events, domain.Event{
			Kind:        domain.EventTaskAssigned,
			NewAssignee: task.AssigneeID,
		})
	}

	return m.finish(task, actorID, now, events), nil
}

// Claim makes the actor the assignee of a free PENDING task.
func (m *Machine) Claim(task domain.Task, actorID int64) (Result, error) {
	if err := checkExists(task); err != nil {
		return Result{}, err
	}
	if task.AssigneeID != nil {
		return Result{}, fmt.Errorf("%w: task %d is assigned to user %d", domain.ErrTaskAlreadyClaimed, task.ID, *task.AssigneeID)
	}
	if task.Status != domain.TaskStatusPending {
		return Result{}, invalidTransition("claim", task.Status)
	}

	now := m.now()
	next := task.Clone()
	next.AssigneeID = domain.Int64Ptr(actorID)
	events := []domain.Event{{
		Kind:        domain.EventTaskClaimed,
		NewAssignee: next.AssigneeID,
	}}
	events = append(events, applyStatus(&next, domain.TaskStatusAssigned, now, "", "")...)

	return m.finish(next, actorID, now, events), nil
}

// Assign sets the assignee. A PENDING task moves to ASSIGNED.
func (m *Machine) Assign(task domain.Task, actorID, assigneeID int64) (Result, error) {
	if err := checkExists(task); err != nil {
		return Result{}, err
	}
	if task.Status.IsTerminal() {
		return Result{}, invalidTransition("assign", task.Status)
	}
	if task.IsAssignedTo(assigneeID) {
		return Result{}, fmt.Errorf("%w: task is already assigned to user %d", domain.ErrValidation, assigneeID)
	}

	now := m.now()
	next := task.Clone()
	next.AssigneeID = domain.Int64Ptr(assigneeID)
	events := []domain.Event{{
		Kind:        domain.EventTaskAssigned,
		OldAssignee: task.AssigneeID,
		NewAssignee: next.AssigneeID,
	}}
	events = append(events, autoCorrect(&next, now)...)

	return m.finish(next, actorID, now, events), nil
}

// Start moves an ASSIGNED or PENDING task to IN_PROGRESS and records started_at.
func (m *Machine) Start(task domain.Task, actorID int64) (Result, error) {
	if err := checkExists(task); err != nil {
		return Result{}, err
	}
	if task.Status != domain.TaskStatusAssigned && task.Status != domain.TaskStatusPending {
		return Result{}, invalidTransition("start", task.Status)
	}

	now := m.now()
	next := task.Clone()
	events := applyStatus(&next, domain.TaskStatusInProgress, now, "", "")

	return m.finish(next, actorID, now, events), nil
}

// SubmitReview moves an IN_PROGRESS task to REVIEW.
func (m *Machine) SubmitReview(task domain.Task, actorID int64, comment string) (Result, error) {
	if err := checkExists(task); err != nil {
		return Result{}, err
	}
	if task.Status != domain.TaskStatusInProgress {
		return Result{}, invalidTransition("submit for review", task.Status)
	}

	now := m.now()
	next := task.Clone()
	events := []domain.Event{{Kind: domain.EventTaskSubmitted, Comment: comment}}
	events = append(events, applyStatus(&next, domain.TaskStatusReview, now, "", comment)...)

	return m.finish(next, actorID, now, events), nil
}

// Approve completes a task under review.
func (m *Machine) Approve(task domain.Task, actorID int64, comment string) (Result, error) {
	if err := checkExists(task); err != nil {
		return Result{}, err
	}
	if task.Status != domain.TaskStatusReview {
		return Result{}, invalidTransition("approve", task.Status)
	}

	now := m.now()
	next := task.Clone()
	events := []domain.Event{{Kind: domain.EventTaskApproved, Comment: comment}}
	events = append(events, applyStatus(&next, domain.TaskStatusCompleted, now, "", comment)...)

	return m.finish(next, actorID, now, events), nil
}

// Reject sends a task under review back to IN_PROGRESS. A reason is required.
func (m *Machine) Reject(task domain.Task, actorID int64, reason string) (Result, error) {
	if err := checkExists(task); err != nil {
		return Result{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Result{}, domain.ErrEmptyReason
	}
	if task.Status != domain.TaskStatusReview {
		return Result{}, invalidTransition("reject", task.Status)
	}

	now := m.now()
	next := task.Clone()
	events := []domain.Event{{Kind: domain.EventTaskRejected, Reason: reason}}
	events = append(events, applyStatus(&next, domain.TaskStatusInProgress, now, reason, "")...)

	return m.finish(next, actorID, now, events), nil
}

// Complete moves an IN_PROGRESS task straight to COMPLETED.
func (m *Machine) Complete(task domain.Task, actorID int64) (Result, error) {
	if err := checkExists(task); err != nil {
		return Result{}, err
	}
	if task.Status != domain.TaskStatusInProgress {
		return Result{}, invalidTransition("complete", task.Status)
	}

	now := m.now()
	next := task.Clone()
	events := applyStatus(&next, domain.TaskStatusCompleted, now, "", "")

	return m.finish(next, actorID, now, events), nil
}

// Comment records a comment. The task itself is unchanged.
func (m *Machine) Comment(task domain.Task, actorID int64, content string) (Result, error) {
	if err := checkExists(task); err != nil {
		return Result{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Result{}, domain.ErrEmptyComment
	}

	now := m.now()
	events := []domain.Event{{Kind: domain.EventTaskCommentAdded, Comment: content}}
	res := Result{Task: task.Clone()}
	res.Events = stamp(events, res.Task, actorID, now)
	return res, nil
}

// finish stamps events with the final task snapshot and bumps updated_at.
func (m *Machine) finish(next domain.Task, actorID int64, now time.Time, events []domain.Event) Result {
	next.UpdatedAt = now
	return Result{Task: next, Events: stamp(events, next, actorID, now)}
}

func stamp(events []domain.Event, task domain.Task, actorID int64, now time.Time) []domain.Event {
	for i := range events {
		events[i].TaskID = task.ID
		events[i].ActorID = actorID
		events[i].OccurredAt = now
		events[i].Task = task
	}
	return events
}

// applyStatus moves t to status `to` and performs the side effects tied to
// entering that status. It returns the status change event followed by any
// started/completed events.
func applyStatus(t *domain.Task, to domain.TaskStatus, now time.Time, reason, comment string) []domain.Event {
	from := t.Status
	t.Status = to
	events := []domain.Event{{
		Kind:      domain.EventTaskStatusChanged,
		OldStatus: from,
		NewStatus: to,
		Reason:    reason,
		Comment:   comment,
	}}

	switch to {
	case domain.TaskStatusInProgress:
		if t.StartedAt == nil {
			started := now
			t.StartedAt = &started
			events = append(events, domain.Event{Kind: domain.EventTaskStarted})
		}
	case domain.TaskStatusCompleted:
		completed := now
		t.CompletedAt = &completed
		if t.StartedAt != nil {
			t.ActualHours = domain.HoursBetween(*t.StartedAt, completed)
		} else {
			t.ActualHours = 0
		}
		events = append(events, domain.Event{Kind: domain.EventTaskCompleted})
	}
	return events
}

// autoCorrect restores the assignee/status invariant:
// an assignee implies not PENDING, no assignee implies not ASSIGNED.
func autoCorrect(t *domain.Task, now time.Time) []domain.Event {
	switch {
	case t.Status == domain.TaskStatusPending && t.AssigneeID != nil:
		return applyStatus(t, domain.TaskStatusAssigned, now, domain.ReasonAutoCorrection, "")
	case t.Status == domain.TaskStatusAssigned && t.AssigneeID == nil:
		return applyStatus(t, domain.TaskStatusPending, now, domain.ReasonAutoCorrection, "")
	default:
		return nil
	}
}

func checkExists(task domain.Task) error {
	if task.IsDeleted {
		return fmt.Errorf("%w: task %d", domain.ErrTaskNotFound, task.ID)
	}
	return nil
}

func invalidTransition(op string, from domain.TaskStatus) error {
	return fmt.Errorf("%w: cannot %s a task in status %s", domain.ErrInvalidTransition, op, from)
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", fmt.Errorf("%w: title must be at most %d characters", domain.ErrValidation, maxTitleLength)
	}
	return title, nil
}
