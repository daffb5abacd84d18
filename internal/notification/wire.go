package notification

import (
	"encoding/json"
	"time"

	"github.com/mtlprog/worklog/internal/domain"
)

// Realtime frame types pushed to clients.
const (
	FrameMessage = "message"
	FrameDesktop = "desktop_notification"
)

// WireMessage is the external shape of a message as seen by one recipient.
type WireMessage struct {
	ID              int64                  `json:"id"`
	Title           string                 `json:"title"`
	Content         string                 `json:"content"`
	MessageType     domain.MessageType     `json:"message_type"`
	Priority        domain.MessagePriority `json:"priority"`
	Recipients      []int64                `json:"recipients"`
	SenderID        *int64                 `json:"sender_id,omitempty"`
	IsRead          bool                   `json:"is_read"`
	CreatedAt       time.Time              `json:"created_at"`
	SentViaEmail    bool                   `json:"sent_via_email"`
	SentViaRealtime bool                   `json:"sent_via_realtime"`
	SentViaDesktop  bool                   `json:"sent_via_desktop"`
	Data            json.RawMessage        `json:"data"`
}

// NewWireMessage renders m for viewerID; is_read reflects the viewer's own state.
func NewWireMessage(m *domain.Message, viewerID int64) WireMessage {
	data := m.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	return WireMessage{
		ID:              m.ID,
		Title:           m.Title,
		Content:         m.Content,
		MessageType:     m.MessageType,
		Priority:        m.Priority,
		Recipients:      m.Recipients,
		SenderID:        m.SenderID,
		IsRead:          m.IsReadBy(viewerID),
		CreatedAt:       m.CreatedAt,
		SentViaEmail:    m.SentViaEmail,
		SentViaRealtime: m.SentViaRealtime,
		SentViaDesktop:  m.SentViaDesktop,
		Data:            data,
	}
}

// MessageFrame carries a new inbox message.
type MessageFrame struct {
	Type string      `json:"type"`
	Data WireMessage `json:"data"`
}

// DesktopFrame asks the client to raise a desktop notification.
type DesktopFrame struct {
	Type      string                 `json:"type"`
	MessageID int64                  `json:"message_id"`
	Title     string                 `json:"title"`
	Content   string                 `json:"content"`
	Priority  domain.MessagePriority `json:"priority"`
}
