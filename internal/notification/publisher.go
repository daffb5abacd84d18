package notification

import (
	"context"
	"log/slog"

	"github.com/mtlprog/worklog/internal/dispatch"
	"github.com/mtlprog/worklog/internal/domain"
)

// Scheduler runs jobs without blocking the caller.
type Scheduler interface {
	Schedule(name string, fn dispatch.Job) bool
}

// Publisher hands committed events to the router through a Scheduler so
// request handlers never wait for delivery.
type Publisher struct {
	router    *Router
	scheduler Scheduler
}

// NewPublisher creates a new Publisher.
func NewPublisher(router *Router, scheduler Scheduler) *Publisher {
	return &Publisher{router: router, scheduler: scheduler}
}

// Publish schedules delivery of the events of one task operation.
func (p *Publisher) Publish(events []domain.Event) {
	if len(events) == 0 {
		return
	}
	if !p.scheduler.Schedule("task_events", func(ctx context.Context) error {
		return p.router.NotifyTaskEvents(ctx, events)
	}) {
		slog.Warn("task notification dropped", "task_id", events[0].TaskID)
	}
}

// MembershipChanged schedules a team join or leave announcement.
func (p *Publisher) MembershipChanged(c MembershipChange) {
	if !p.scheduler.Schedule("team_membership", func(ctx context.Context) error {
		return p.router.NotifyMembership(ctx, c)
	}) {
		slog.Warn("membership notification dropped", "team_id", c.Team.ID, "user_id", c.MemberID)
	}
}
