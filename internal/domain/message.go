package domain

import (
	"encoding/json"
	"slices"
	"time"
)

// NotificationKind names a notification and the template that renders it.
type NotificationKind string

const (
	NotifyTaskCreated       NotificationKind = "task_created"
	NotifyTaskAssigned      NotificationKind = "task_assigned"
	NotifyTaskStatusChanged NotificationKind = "task_status_changed"
	NotifyTaskCommentAdded  NotificationKind = "task_comment_added"
	NotifyTaskCompleted     NotificationKind = "task_completed"
	NotifyTeamMemberJoined  NotificationKind = "team_member_joined"
	NotifyTeamMemberLeft    NotificationKind = "team_member_left"
	NotifyWorklogSubmitted  NotificationKind = "worklog_submitted"
	NotifyTaskDueReminder   NotificationKind = "task_due_reminder"
	NotifyWorklogReminder   NotificationKind = "worklog_reminder"
	NotifyDailySummary      NotificationKind = "daily_summary"
)

// MessageType classifies a message in the inbox.
type MessageType string

const (
	MessageTypeSystem       MessageType = "system"
	MessageTypeTask         MessageType = "task"
	MessageTypeTeam         MessageType = "team"
	MessageTypeWorklog      MessageType = "worklog"
	MessageTypeReminder     MessageType = "reminder"
	MessageTypeNotification MessageType = "notification"
)

// IsValid reports whether t is a known message type.
func (t MessageType) IsValid() bool {
	switch t {
	case MessageTypeSystem, MessageTypeTask, MessageTypeTeam,
		MessageTypeWorklog, MessageTypeReminder, MessageTypeNotification:
		return true
	}
	return false
}

// MessagePriority is the urgency of a message.
type MessagePriority string

const (
	MessagePriorityLow    MessagePriority = "low"
	MessagePriorityNormal MessagePriority = "normal"
	MessagePriorityHigh   MessagePriority = "high"
	MessagePriorityUrgent MessagePriority = "urgent"
)

// IsValid reports whether p is a known message priority.
func (p MessagePriority) IsValid() bool {
	switch p {
	case MessagePriorityLow, MessagePriorityNormal, MessagePriorityHigh, MessagePriorityUrgent:
		return true
	}
	return false
}

// Message is a persisted notification addressed to one or more recipients.
// Read and delete state is tracked per recipient.
type Message struct {
	ID              int64
	Title           string
	Content         string
	MessageType     MessageType
	Priority        MessagePriority
	SenderID        *int64
	Recipients      []int64
	ReadBy          []int64
	DeletedBy       []int64
	SentViaEmail    bool
	SentViaRealtime bool
	SentViaDesktop  bool
	Data            json.RawMessage
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsReadBy reports whether userID has marked the message read.
func (m *Message) IsReadBy(userID int64) bool {
	return slices.Contains(m.ReadBy, userID)
}

// IsDeletedBy reports whether userID has deleted the message from their inbox.
func (m *Message) IsDeletedBy(userID int64) bool {
	return slices.Contains(m.DeletedBy, userID)
}

// IsAddressedTo reports whether userID is among the recipients.
func (m *Message) IsAddressedTo(userID int64) bool {
	return slices.Contains(m.Recipients, userID)
}

// MessageTemplate is administrator-managed text for one notification kind.
type MessageTemplate struct {
	Name            NotificationKind
	TitleTemplate   string
	ContentTemplate string
	MessageType     MessageType
	Priority        MessagePriority
	Variables       []string
	SendViaEmail    bool
	SendViaRealtime bool
	SendViaDesktop  bool
	IsActive        bool
}

// MessageStats summarises a user's inbox.
type MessageStats struct {
	Total      int
	Unread     int
	ByType     map[MessageType]int
	ByPriority map[MessagePriority]int
}
