package dto

import (
	"bytes"
	"encoding/json"
	"time"
)

// CreateTaskRequest represents the request body for POST /tasks.
type CreateTaskRequest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Priority       string     `json:"priority,omitempty"`
	TeamID         int64      `json:"team_id"`
	ProjectID      *int64     `json:"project_id,omitempty"`
	AssigneeID     *int64     `json:"assignee_id,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	EstimatedHours float64    `json:"estimated_hours,omitempty"`
}

// QuickCreateTaskRequest represents the request body for POST /tasks/quick.
// TeamID defaults to the caller's first team.
type QuickCreateTaskRequest struct {
	Title    string `json:"title"`
	Priority string `json:"priority,omitempty"`
	TeamID   int64  `json:"team_id,omitempty"`
}

// NullableInt64 distinguishes an absent field from an explicit null.
type NullableInt64 struct {
	Set   bool
	Value *int64
}

// UnmarshalJSON records that the field was present.
func (n *NullableInt64) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(data, []byte("null")) {
		n.Value = nil
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// UpdateTaskRequest represents the request body for PATCH /tasks/:id.
// Omitted fields are left unchanged; "assignee_id": null unassigns.
type UpdateTaskRequest struct {
	Title          *string       `json:"title,omitempty"`
	Description    *string       `json:"description,omitempty"`
	Priority       *string       `json:"priority,omitempty"`
	Status         *string       `json:"status,omitempty"`
	ProjectID      *int64        `json:"project_id,omitempty"`
	DueDate        *time.Time    `json:"due_date,omitempty"`
	EstimatedHours *float64      `json:"estimated_hours,omitempty"`
	AssigneeID     NullableInt64 `json:"assignee_id"`
}

// AssignTaskRequest represents the request body for POST /tasks/:id/assign.
type AssignTaskRequest struct {
	AssigneeID int64 `json:"assignee_id"`
}

// ReviewTaskRequest is the optional body of submit-review and approve.
type ReviewTaskRequest struct {
	Comment string `json:"comment"`
}

// RejectTaskRequest represents the request body for POST /tasks/:id/reject.
type RejectTaskRequest struct {
	Reason string `json:"reason"`
}

// CommentTaskRequest represents the request body for POST /tasks/:id/comments.
type CommentTaskRequest struct {
	Content string `json:"content"`
}

// AddMemberRequest represents the request body for POST /teams/:id/members.
type AddMemberRequest struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

// ListMessagesFilters represents query parameters for GET /messages.
type ListMessagesFilters struct {
	Types      []string // ?type=task,reminder
	Priorities []string // ?priority=high,urgent
	UnreadOnly bool     // ?unread=true
	Sort       []string // ?sort=-created_at
	Limit      int      // ?limit=20
	Offset     int      // ?offset=0
}
