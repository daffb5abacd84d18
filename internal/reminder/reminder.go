// Package reminder sends periodic due-date, work-log and daily summary
// notifications.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/mtlprog/worklog/internal/domain"
	"github.com/mtlprog/worklog/internal/notification"
	"github.com/mtlprog/worklog/internal/repository"
	"github.com/mtlprog/worklog/internal/service"
)

// DefaultInterval is the loop interval of the standalone reminder command.
const DefaultInterval = 24 * time.Hour

// TaskSource finds tasks approaching their due date.
type TaskSource interface {
	FindDueSoon(ctx context.Context, now, until time.Time) ([]*domain.Task, error)
	TeamSummary(ctx context.Context, teamID int64, dayStart, now time.Time) (*repository.TeamSummaryResult, error)
}

// TeamSource lists teams and their members.
type TeamSource interface {
	List(ctx context.Context) ([]*domain.Team, error)
	AdminIDs(ctx context.Context, teamID int64) ([]int64, error)
	ActiveMembersWithoutWorkLog(ctx context.Context, teamID int64, since time.Time) ([]int64, error)
}

// Dispatcher persists and delivers a notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, n notification.Notification) (*domain.Message, error)
}

// Service runs the reminder categories one after another.
type Service struct {
	tasks      TaskSource
	teams      TeamSource
	dispatcher Dispatcher
	now        func() time.Time
	logger     *slog.Logger
}

// NewService creates a new Service. A nil clock means time.Now.
func NewService(tasks TaskSource, teams TeamSource, dispatcher Dispatcher, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		tasks:      tasks,
		teams:      teams,
		dispatcher: dispatcher,
		now:        now,
		logger:     slog.With("component", "reminder"),
	}
}

// Run calls RunOnce right away and then every interval until ctx is
// cancelled. Only one loop should run per deployment.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: reminder interval must be positive", domain.ErrValidation)
	}

	s.logger.Info("reminder loop started", "interval", interval)
	s.pass(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder loop stopped")
			return nil
		case <-ticker.C:
			s.pass(ctx)
		}
	}
}

func (s *Service) pass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("reminder run finished with errors", "error", err)
	}
}

// RunOnce sends due reminders, work-log reminders and daily summaries. A
// failing category does not stop the following ones.
func (s *Service) RunOnce(ctx context.Context) error {
	now := s.now().UTC()

	var errs []error
	for _, step := range []struct {
		name string
		fn   func(context.Context, time.Time) (int, error)
	}{
		{"due_reminders", s.SendDueReminders},
		{"worklog_reminders", s.SendWorklogReminders},
		{"daily_summaries", s.SendDailySummaries},
	} {
		sent, err := step.fn(ctx, now)
		if err != nil {
			s.logger.Error("reminder category failed", "category", step.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			continue
		}
		s.logger.Info("reminder category done", "category", step.name, "sent", sent)
	}

	return errors.Join(errs...)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SendDueReminders notifies assignees of open tasks due within
// service.DueReminderWindow.
func (s *Service) SendDueReminders(ctx context.Context, now time.Time) (int, error) {
	tasks, err := s.tasks.FindDueSoon(ctx, now, now.Add(service.DueReminderWindow))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, task := range tasks {
		if task.AssigneeID == nil || task.DueDate == nil {
			continue
		}
		_, err := s.dispatcher.Dispatch(ctx, notification.Notification{
			Kind:       domain.NotifyTaskDueReminder,
			Recipients: []int64{*task.AssigneeID},
			Vars: notification.Vars{
				"task_id":        strconv.FormatInt(task.ID, 10),
				"task_title":     task.Title,
				"due_date":       notification.FormatDue(task.DueDate),
				"time_remaining": service.TimeRemaining(*task.DueDate, now),
			},
			Data: map[string]int64{"task_id": task.ID, "team_id": task.TeamID},
		})
		if err != nil {
			s.logger.Error("failed to send due reminder", "task_id", task.ID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// SendWorklogReminders sends one reminder to every active member, across
// all teams, who has not logged work today.
func (s *Service) SendWorklogReminders(ctx context.Context, now time.Time) (int, error) {
	teams, err := s.teams.List(ctx)
	if err != nil {
		return 0, err
	}

	dayStart := startOfDay(now)
	var users []int64
	for _, team := range teams {
		ids, err := s.teams.ActiveMembersWithoutWorkLog(ctx, team.ID, dayStart)
		if err != nil {
			return 0, err
		}
		users = append(users, ids...)
	}
	slices.Sort(users)
	users = slices.Compact(users)

	msg, err := s.dispatcher.Dispatch(ctx, notification.Notification{
		Kind:       domain.NotifyWorklogReminder,
		Recipients: users,
		Vars:       notification.Vars{"reminder_date": dayStart.Format(time.DateOnly)},
	})
	if err != nil || msg == nil {
		return 0, err
	}
	return len(users), nil
}

// SendDailySummaries sends each team's figures for today to its admins.
func (s *Service) SendDailySummaries(ctx context.Context, now time.Time) (int, error) {
	teams, err := s.teams.List(ctx)
	if err != nil {
		return 0, err
	}

	dayStart := startOfDay(now)
	sent := 0
	for _, team := range teams {
		admins, err := s.teams.AdminIDs(ctx, team.ID)
		if err != nil {
			return sent, err
		}
		if len(admins) == 0 {
			continue
		}

		summary, err := s.tasks.TeamSummary(ctx, team.ID, dayStart, now)
		if err != nil {
			return sent, err
		}

		_, err = s.dispatcher.Dispatch(ctx, notification.Notification{
			Kind:       domain.NotifyDailySummary,
			Recipients: admins,
			Vars: notification.Vars{
				"team_name":         team.Name,
				"summary_date":      dayStart.Format(time.DateOnly),
				"completed_count":   strconv.Itoa(summary.CompletedCount),
				"in_progress_count": strconv.Itoa(summary.InProgressCount),
				"overdue_count":     strconv.Itoa(summary.OverdueCount),
				"logged_hours":      notification.FormatHours(summary.LoggedHours),
			},
			Data: map[string]int64{"team_id": team.ID},
		})
		if err != nil {
			s.logger.Error("failed to send daily summary", "team_id", team.ID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}
