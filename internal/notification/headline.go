// Package notification turns domain events into persisted inbox messages and
// pushes them to online recipients.
package notification

import (
	"github.com/mtlprog/worklog/internal/domain"
)

// Announcement is one notification an operation produces.
type Announcement struct {
	Event domain.Event
	Kind  domain.NotificationKind
}

// Announcements lists the notifications of one committed operation. A
// creation announces the new task to the team and, when the task starts out
// assigned, the assignment as well. Every other operation announces its
// headline only.
func Announcements(events []domain.Event) []Announcement {
	created, ok := domain.FindKind(events, domain.EventTaskCreated)
	if !ok {
		e, kind, ok := Headline(events)
		if !ok {
			return nil
		}
		return []Announcement{{Event: e, Kind: kind}}
	}

	out := []Announcement{{Event: created, Kind: domain.NotifyTaskCreated}}
	if e, ok := assignment(events); ok {
		out = append(out, Announcement{Event: e, Kind: domain.NotifyTaskAssigned})
	}
	return out
}

func assignment(events []domain.Event) (domain.Event, bool) {
	for _, e := range events {
		if (e.Kind == domain.EventTaskAssigned || e.Kind == domain.EventTaskClaimed) && e.NewAssignee != nil {
			return e, true
		}
	}
	return domain.Event{}, false
}

// Headline picks the single event of an operation that is announced and the
// notification it maps to. Precedence: completion, assignment (claim
// included), creation, comment, status change. Field edits alone and
// unassignments are not announced.
func Headline(events []domain.Event) (domain.Event, domain.NotificationKind, bool) {
	if e, ok := domain.FindKind(events, domain.EventTaskCompleted); ok {
		return e, domain.NotifyTaskCompleted, true
	}
	if e, ok := assignment(events); ok {
		return e, domain.NotifyTaskAssigned, true
	}
	if e, ok := domain.FindKind(events, domain.EventTaskCreated); ok {
		return e, domain.NotifyTaskCreated, true
	}
	if e, ok := domain.FindKind(events, domain.EventTaskCommentAdded); ok {
		return e, domain.NotifyTaskCommentAdded, true
	}
	if e, ok := domain.FindKind(events, domain.EventTaskStatusChanged); ok {
		return e, domain.NotifyTaskStatusChanged, true
	}
	return domain.Event{}, "", false
}
