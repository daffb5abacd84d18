package dto

import (
	"encoding/json"
	"time"

	"github.com/mtlprog/worklog/internal/domain"
	"github.com/mtlprog/worklog/internal/notification"
	"github.com/mtlprog/worklog/internal/service"
)

// TaskResponse represents the full task object.
type TaskResponse struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	TeamID         int64      `json:"team_id"`
	ProjectID      *int64     `json:"project_id"`
	CreatorID      int64      `json:"creator_id"`
	AssigneeID     *int64     `json:"assignee_id"`
	DueDate        *time.Time `json:"due_date"`
	EstimatedHours float64    `json:"estimated_hours"`
	ActualHours    float64    `json:"actual_hours"`
	StartedAt      *time.Time `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	IsOverdue      bool       `json:"is_overdue"`
	TimeRemaining  *string    `json:"time_remaining"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CommentResponse represents a task comment.
type CommentResponse struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	UserID    int64     `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskLogResponse represents one operation log row.
type TaskLogResponse struct {
	ID        int64           `json:"id"`
	TaskID    int64           `json:"task_id"`
	ActorID   int64           `json:"actor_id"`
	Action    string          `json:"action"`
	OldValue  json.RawMessage `json:"old_value"`
	NewValue  json.RawMessage `json:"new_value"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// StatusChangeResponse represents one status history row.
type StatusChangeResponse struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	ActorID   int64     `json:"actor_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	Reason    string    `json:"reason"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityResponse is one entry of the merged activity stream. Exactly one
// of Operation and StatusChange is set, as named by LogType.
type ActivityResponse struct {
	LogType      string                `json:"log_type"`
	CreatedAt    time.Time             `json:"created_at"`
	Operation    *TaskLogResponse      `json:"operation,omitempty"`
	StatusChange *StatusChangeResponse `json:"status_change,omitempty"`
}

// WorkLogResponse represents a work log entry.
type WorkLogResponse struct {
	ID                 int64      `json:"id"`
	UserID             int64      `json:"user_id"`
	TaskID             *int64     `json:"task_id"`
	ProjectID          *int64     `json:"project_id"`
	TeamID             *int64     `json:"team_id"`
	Content            string     `json:"content"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            *time.Time `json:"end_time"`
	Duration           float64    `json:"duration"`
	WorkStatus         string     `json:"work_status"`
	ProgressPercentage int        `json:"progress_percentage"`
}

// MessageResponse is the inbox shape of a message.
type MessageResponse = notification.WireMessage

// MessagesListResponse represents the response for GET /messages.
type MessagesListResponse struct {
	Messages []MessageResponse `json:"messages"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// UnreadCountResponse represents the response for GET /messages/unread-count.
type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}

// MarkAllReadResponse represents the response for POST /messages/read-all.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// MessageStatsResponse represents inbox statistics.
type MessageStatsResponse struct {
	Total      int            `json:"total"`
	Unread     int            `json:"unread"`
	ByType     map[string]int `json:"by_type"`
	ByPriority map[string]int `json:"by_priority"`
}

// ToTaskResponse converts domain.Task to TaskResponse.
func ToTaskResponse(task *domain.Task, now time.Time) TaskResponse {
	resp := TaskResponse{
		ID:             task.ID,
		Title:          task.Title,
		Description:    task.Description,
		Status:         string(task.Status),
		Priority:       string(task.Priority),
		TeamID:         task.TeamID,
		ProjectID:      task.ProjectID,
		CreatorID:      task.CreatorID,
		AssigneeID:     task.AssigneeID,
		DueDate:        task.DueDate,
		EstimatedHours: task.EstimatedHours,
		ActualHours:    task.ActualHours,
		StartedAt:      task.StartedAt,
		CompletedAt:    task.CompletedAt,
		IsOverdue:      service.IsOverdue(task, now),
		CreatedAt:      task.CreatedAt,
		UpdatedAt:      task.UpdatedAt,
	}
	if task.DueDate != nil && !task.Status.IsTerminal() {
		left := service.TimeRemaining(*task.DueDate, now)
		resp.TimeRemaining = &left
	}
	return resp
}

// ToCommentResponse converts domain.TaskComment to CommentResponse.
func ToCommentResponse(c *domain.TaskComment) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		TaskID:    c.TaskID,
		UserID:    c.UserID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}

// ToTaskLogResponse converts domain.TaskLog to TaskLogResponse.
func ToTaskLogResponse(l *domain.TaskLog) TaskLogResponse {
	return TaskLogResponse{
		ID:        l.ID,
		TaskID:    l.TaskID,
		ActorID:   l.ActorID,
		Action:    string(l.Action),
		OldValue:  nullJSON(l.OldValue),
		NewValue:  nullJSON(l.NewValue),
		Metadata:  nullJSON(l.Metadata),
		CreatedAt: l.CreatedAt,
	}
}

// ToStatusChangeResponse converts domain.TaskStatusChange to StatusChangeResponse.
func ToStatusChangeResponse(c *domain.TaskStatusChange) StatusChangeResponse {
	return StatusChangeResponse{
		ID:        c.ID,
		TaskID:    c.TaskID,
		ActorID:   c.ActorID,
		OldStatus: string(c.OldStatus),
		NewStatus: string(c.NewStatus),
		Reason:    c.Reason,
		Comment:   c.Comment,
		CreatedAt: c.CreatedAt,
	}
}

// ToActivityResponse converts a merged activity entry.
func ToActivityResponse(e domain.ActivityEntry) ActivityResponse {
	resp := ActivityResponse{LogType: string(e.Kind), CreatedAt: e.CreatedAt}
	switch {
	case e.Log != nil:
		op := ToTaskLogResponse(e.Log)
		resp.Operation = &op
	case e.StatusChange != nil:
		sc := ToStatusChangeResponse(e.StatusChange)
		resp.StatusChange = &sc
	}
	return resp
}

// ToWorkLogResponse converts domain.WorkLog to WorkLogResponse.
func ToWorkLogResponse(w *domain.WorkLog) WorkLogResponse {
	return WorkLogResponse{
		ID:                 w.ID,
		UserID:             w.UserID,
		TaskID:             w.TaskID,
		ProjectID:          w.ProjectID,
		TeamID:             w.TeamID,
		Content:            w.Content,
		StartTime:          w.StartTime,
		EndTime:            w.EndTime,
		Duration:           w.Duration,
		WorkStatus:         string(w.WorkStatus),
		ProgressPercentage: w.ProgressPercentage,
	}
}

// ToMessageStatsResponse converts domain.MessageStats to MessageStatsResponse.
func ToMessageStatsResponse(s *domain.MessageStats) MessageStatsResponse {
	resp := MessageStatsResponse{
		Total:      s.Total,
		Unread:     s.Unread,
		ByType:     make(map[string]int, len(s.ByType)),
		ByPriority: make(map[string]int, len(s.ByPriority)),
	}
	for k, v := range s.ByType {
		resp.ByType[string(k)] = v
	}
	for k, v := range s.ByPriority {
		resp.ByPriority[string(k)] = v
	}
	return resp
}

func nullJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
