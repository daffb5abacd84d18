package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mtlprog/worklog/internal/domain"
)

// TemplateStore resolves active templates by name.
type TemplateStore interface {
	GetActive(ctx context.Context, name domain.NotificationKind) (*domain.MessageTemplate, error)
}

// MessageStore persists messages.
type MessageStore interface {
	Create(ctx context.Context, m *domain.Message) error
	UpdateChannels(ctx context.Context, messageID int64, email, realtime, desktop bool) error
}

// TeamDirectory answers team membership questions.
type TeamDirectory interface {
	MemberIDs(ctx context.Context, teamID int64) ([]int64, error)
	AdminIDs(ctx context.Context, teamID int64) ([]int64, error)
}

// UserDirectory resolves display names.
type UserDirectory interface {
	Usernames(ctx context.Context, userIDs []int64) (map[int64]string, error)
}

// Deliverer pushes frames to online users.
type Deliverer interface {
	IsOnline(userID int64) bool
	SendJSON(userID int64, v any) (int, error)
	BroadcastToSet(userIDs []int64, payload []byte) int
}

// Notification is one message to persist and deliver.
type Notification struct {
	Kind       domain.NotificationKind
	SenderID   *int64
	Recipients []int64
	Vars       Vars
	Data       any
}

// Router resolves recipients, renders templates, persists one Message per
// notification and pushes it to whoever is online.
type Router struct {
	templates TemplateStore
	messages  MessageStore
	teams     TeamDirectory
	users     UserDirectory
	deliverer Deliverer
	logger    *slog.Logger
}

// NewRouter creates a new Router.
func NewRouter(
	templates TemplateStore,
	messages MessageStore,
	teams TeamDirectory,
	users UserDirectory,
	deliverer Deliverer,
) *Router {
	return &Router{
		templates: templates,
		messages:  messages,
		teams:     teams,
		users:     users,
		deliverer: deliverer,
		logger:    slog.With("component", "notification_router"),
	}
}

func (r *Router) template(ctx context.Context, kind domain.NotificationKind) (domain.MessageTemplate, error) {
	tpl, err := r.templates.GetActive(ctx, kind)
	if err == nil {
		return *tpl, nil
	}
	if !errors.Is(err, domain.ErrTemplateNotFound) {
		return domain.MessageTemplate{}, err
	}

	def, ok := DefaultTemplate(kind)
	if !ok {
		return domain.MessageTemplate{}, err
	}
	r.logger.Warn("template missing, using built-in default", "template", kind)
	return def, nil
}

// Dispatch persists n as one Message and attempts realtime delivery to every
// online recipient. Offline recipients find the message in their inbox.
// A notification without recipients is dropped silently.
func (r *Router) Dispatch(ctx context.Context, n Notification) (*domain.Message, error) {
	if len(n.Recipients) == 0 {
		r.logger.Debug("notification has no recipients", "kind", n.Kind)
		return nil, nil
	}

	tpl, err := r.template(ctx, n.Kind)
	if err != nil {
		return nil, fmt.Errorf("resolve template %s: %w", n.Kind, err)
	}

	msg := &domain.Message{
		Title:       Render(tpl.TitleTemplate, n.Vars),
		Content:     Render(tpl.ContentTemplate, n.Vars),
		MessageType: tpl.MessageType,
		Priority:    tpl.Priority,
		SenderID:    n.SenderID,
		Recipients:  n.Recipients,
	}
	if n.Data != nil {
		data, err := json.Marshal(n.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal message data: %w", err)
		}
		msg.Data = data
	}

	if err := r.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	r.deliver(ctx, msg, tpl)

	r.logger.Info("notification dispatched",
		"kind", n.Kind,
		"message_id", msg.ID,
		"recipients", len(msg.Recipients),
		"realtime", msg.SentViaRealtime,
		"desktop", msg.SentViaDesktop,
	)
	return msg, nil
}

// deliver pushes msg to online recipients and records the attempted channels.
// Delivery problems are logged only.
func (r *Router) deliver(ctx context.Context, msg *domain.Message, tpl domain.MessageTemplate) {
	if tpl.SendViaEmail {
		r.logger.Debug("email channel is not configured", "message_id", msg.ID)
	}
	if !tpl.SendViaRealtime && !tpl.SendViaDesktop {
		return
	}

	var online []int64
	for _, userID := range msg.Recipients {
		if !r.deliverer.IsOnline(userID) {
			continue
		}
		online = append(online, userID)

		if tpl.SendViaRealtime {
			msg.SentViaRealtime = true
			frame := MessageFrame{Type: FrameMessage, Data: NewWireMessage(msg, userID)}
			if _, err := r.deliverer.SendJSON(userID, frame); err != nil {
				r.logger.Error("realtime delivery failed", "message_id", msg.ID, "user_id", userID, "error",
					fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err))
			}
		}
	}

	if tpl.SendViaDesktop && len(online) > 0 {
		msg.SentViaDesktop = true
		payload, err := json.Marshal(DesktopFrame{
			Type:      FrameDesktop,
			MessageID: msg.ID,
			Title:     msg.Title,
			Content:   msg.Content,
			Priority:  msg.Priority,
		})
		if err != nil {
			r.logger.Error("desktop delivery failed", "message_id", msg.ID, "error",
				fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err))
		} else if reached := r.deliverer.BroadcastToSet(online, payload); reached < len(online) {
			r.logger.Warn("desktop frame missed some recipients", "message_id", msg.ID, "online", len(online), "reached", reached)
		}
	}

	if !msg.SentViaRealtime && !msg.SentViaDesktop {
		return
	}
	if err := r.messages.UpdateChannels(ctx, msg.ID, msg.SentViaEmail, msg.SentViaRealtime, msg.SentViaDesktop); err != nil {
		r.logger.Error("failed to record delivery channels", "message_id", msg.ID, "error", err)
	}
}

// audience loads the team lists kind needs.
func (r *Router) audience(ctx context.Context, kind domain.NotificationKind, teamID int64, a Audience) (Audience, error) {
	var err error
	if needsMembers(kind) {
		if a.Members, err = r.teams.MemberIDs(ctx, teamID); err != nil {
			return a, fmt.Errorf("load team members: %w", err)
		}
	}
	if needsAdmins(kind) {
		if a.Admins, err = r.teams.AdminIDs(ctx, teamID); err != nil {
			return a, fmt.Errorf("load team admins: %w", err)
		}
	}
	return a, nil
}

func (r *Router) username(ctx context.Context, userID int64) string {
	names, err := r.users.Usernames(ctx, []int64{userID})
	if err != nil {
		r.logger.Warn("failed to resolve username", "user_id", userID, "error", err)
	}
	if name, ok := names[userID]; ok {
		return name
	}
	return "user #" + strconv.FormatInt(userID, 10)
}

// FormatDue formats an optional due date for templates.
func FormatDue(due *time.Time) string {
	if due == nil {
		return "no due date"
	}
	return due.UTC().Format("2006-01-02 15:04 UTC")
}

// FormatHours formats a duration in hours for templates.
func FormatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', 2, 64)
}

func taskVars(e domain.Event, actorName string) Vars {
	return Vars{
		"task_id":      strconv.FormatInt(e.TaskID, 10),
		"task_title":   e.Task.Title,
		"priority":     string(e.Task.Priority),
		"due_date":     FormatDue(e.Task.DueDate),
		"actor_name":   actorName,
		"old_status":   string(e.OldStatus),
		"new_status":   string(e.NewStatus),
		"reason":       e.Reason,
		"comment":      e.Comment,
		"actual_hours": FormatHours(e.Task.ActualHours),
	}
}

type taskData struct {
	TaskID int64             `json:"task_id"`
	TeamID int64             `json:"team_id"`
	Event  domain.EventKind  `json:"event"`
	Status domain.TaskStatus `json:"status"`
}

// NotifyTaskEvents announces one committed task operation. A completion also
// reports the finished work log to team admins.
func (r *Router) NotifyTaskEvents(ctx context.Context, events []domain.Event) error {
	for _, an := range Announcements(events) {
		if err := r.announce(ctx, an); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) announce(ctx context.Context, an Announcement) error {
	e, kind := an.Event, an.Kind

	assignee := e.Task.AssigneeID
	if kind == domain.NotifyTaskAssigned {
		assignee = e.NewAssignee
	}
	a, err := r.audience(ctx, kind, e.Task.TeamID, Audience{
		ActorID:    e.ActorID,
		CreatorID:  e.Task.CreatorID,
		AssigneeID: assignee,
	})
	if err != nil {
		return err
	}

	_, err = r.Dispatch(ctx, Notification{
		Kind:       kind,
		SenderID:   domain.Int64Ptr(e.ActorID),
		Recipients: Recipients(kind, a),
		Vars:       taskVars(e, r.username(ctx, e.ActorID)),
		Data: taskData{
			TaskID: e.TaskID,
			TeamID: e.Task.TeamID,
			Event:  e.Kind,
			Status: e.Task.Status,
		},
	})
	if err != nil {
		return err
	}

	if kind == domain.NotifyTaskCompleted {
		return r.notifyWorklogSubmitted(ctx, e)
	}
	return nil
}

func (r *Router) notifyWorklogSubmitted(ctx context.Context, e domain.Event) error {
	owner := e.ActorID
	if e.Task.AssigneeID != nil {
		owner = *e.Task.AssigneeID
	}

	a, err := r.audience(ctx, domain.NotifyWorklogSubmitted, e.Task.TeamID, Audience{ActorID: owner})
	if err != nil {
		return err
	}

	_, err = r.Dispatch(ctx, Notification{
		Kind:       domain.NotifyWorklogSubmitted,
		SenderID:   domain.Int64Ptr(owner),
		Recipients: Recipients(domain.NotifyWorklogSubmitted, a),
		Vars: Vars{
			"actor_name": r.username(ctx, owner),
			"duration":   FormatHours(e.Task.ActualHours),
			"content":    "Completed task: " + e.Task.Title,
		},
		Data: taskData{TaskID: e.TaskID, TeamID: e.Task.TeamID, Event: e.Kind, Status: e.Task.Status},
	})
	return err
}

// MembershipChange describes a user joining or leaving a team.
type MembershipChange struct {
	Kind     domain.NotificationKind
	Team     domain.Team
	MemberID int64
	ActorID  int64
}

// NotifyMembership tells the remaining team members about a join or leave.
func (r *Router) NotifyMembership(ctx context.Context, c MembershipChange) error {
	if c.Kind != domain.NotifyTeamMemberJoined && c.Kind != domain.NotifyTeamMemberLeft {
		return fmt.Errorf("%w: %s is not a membership notification", domain.ErrValidation, c.Kind)
	}

	a, err := r.audience(ctx, c.Kind, c.Team.ID, Audience{
		ActorID: c.ActorID,
		Exclude: []int64{c.MemberID},
	})
	if err != nil {
		return err
	}

	_, err = r.Dispatch(ctx, Notification{
		Kind:       c.Kind,
		SenderID:   domain.Int64Ptr(c.ActorID),
		Recipients: Recipients(c.Kind, a),
		Vars: Vars{
			"member_name": r.username(ctx, c.MemberID),
			"team_name":   c.Team.Name,
		},
		Data: map[string]int64{"team_id": c.Team.ID, "user_id": c.MemberID},
	})
	return err
}
