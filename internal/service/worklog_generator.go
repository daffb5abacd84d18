package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/mtlprog/worklog/internal/domain"
)

// WorkLogStore persists lifecycle-driven work logs.
type WorkLogStore interface {
	Create(ctx context.Context, tx pgx.Tx, w *domain.WorkLog) error
	LatestOpenForUpdate(ctx context.Context, tx pgx.Tx, taskID, userID int64) (*domain.WorkLog, error)
	Finalize(ctx context.Context, tx pgx.Tx, w *domain.WorkLog) error
}

// WorkLogGenerator opens a work log when a task starts and closes it when
// the task completes.
type WorkLogGenerator struct {
	store  WorkLogStore
	logger *slog.Logger
}

// NewWorkLogGenerator creates a new WorkLogGenerator.
func NewWorkLogGenerator(store WorkLogStore) *WorkLogGenerator {
	return &WorkLogGenerator{
		store:  store,
		logger: slog.With("component", "worklog_generator"),
	}
}

// owner is the user the work log belongs to: the assignee, else the actor.
func owner(e domain.Event) int64 {
	if e.Task.AssigneeID != nil {
		return *e.Task.AssigneeID
	}
	return e.ActorID
}

// Handle reacts to task_started and task_completed events. Other events are ignored.
func (g *WorkLogGenerator) Handle(ctx context.Context, tx pgx.Tx, events []domain.Event) error {
	for _, e := range events {
		var err error
		switch e.Kind {
		case domain.EventTaskStarted:
			err = g.onStarted(ctx, tx, e)
		case domain.EventTaskCompleted:
			err = g.onCompleted(ctx, tx, e)
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("handle %s for task %d: %w", e.Kind, e.TaskID, err)
		}
	}
	return nil
}

func (g *WorkLogGenerator) onStarted(ctx context.Context, tx pgx.Tx, e domain.Event) error {
	if e.Task.StartedAt == nil {
		return fmt.Errorf("%w: started task has no start time", domain.ErrValidation)
	}

	w := &domain.WorkLog{
		UserID:     owner(e),
		TaskID:     domain.Int64Ptr(e.TaskID),
		ProjectID:  e.Task.ProjectID,
		TeamID:     domain.Int64Ptr(e.Task.TeamID),
		Content:    "Started task: " + e.Task.Title,
		StartTime:  *e.Task.StartedAt,
		WorkStatus: domain.WorkStatusInProgress,
	}
	if err := g.store.Create(ctx, tx, w); err != nil {
		return err
	}

	g.logger.Info("work log opened", "task_id", e.TaskID, "user_id", w.UserID, "work_log_id", w.ID)
	return nil
}

func (g *WorkLogGenerator) onCompleted(ctx context.Context, tx pgx.Tx, e domain.Event) error {
	if e.Task.CompletedAt == nil {
		return fmt.Errorf("%w: completed task has no completion time", domain.ErrValidation)
	}
	completedAt := *e.Task.CompletedAt
	userID := owner(e)

	open, err := g.store.LatestOpenForUpdate(ctx, tx, e.TaskID, userID)
	switch {
	case err == nil:
		open.EndTime = &completedAt
		open.Duration = e.Task.ActualHours
		open.ProgressPercentage = 100
		open.WorkStatus = domain.WorkStatusCompleted
		if err := g.store.Finalize(ctx, tx, open); err != nil {
			return err
		}
		g.logger.Info("work log finalized", "task_id", e.TaskID, "user_id", userID, "work_log_id", open.ID, "duration", open.Duration)
		return nil
	case errors.Is(err, domain.ErrWorkLogNotFound):
		// no open entry, record the completed work directly
	default:
		return err
	}

	start := completedAt
	if e.Task.StartedAt != nil {
		start = *e.Task.StartedAt
	}
	w := &domain.WorkLog{
		UserID:             userID,
		TaskID:             domain.Int64Ptr(e.TaskID),
		ProjectID:          e.Task.ProjectID,
		TeamID:             domain.Int64Ptr(e.Task.TeamID),
		Content:            "Completed task: " + e.Task.Title,
		StartTime:          start,
		EndTime:            &completedAt,
		Duration:           e.Task.ActualHours,
		WorkStatus:         domain.WorkStatusCompleted,
		ProgressPercentage: 100,
	}
	if err := g.store.Create(ctx, tx, w); err != nil {
		return err
	}

	g.logger.Info("work log created on completion", "task_id", e.TaskID, "user_id", userID, "work_log_id", w.ID)
	return nil
}
