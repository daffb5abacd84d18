package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/worklog/internal/database"
	"github.com/mtlprog/worklog/internal/domain"
	"github.com/mtlprog/worklog/internal/lifecycle"
	"github.com/mtlprog/worklog/internal/repository"
)

// Notifier receives the events of a committed mutation for asynchronous delivery.
// Publish must not block.
type Notifier interface {
	Publish(events []domain.Event)
}

type noopNotifier struct{}

func (noopNotifier) Publish([]domain.Event) {}

// TaskService coordinates task operations and state transitions.
type TaskService struct {
	pool        *pgxpool.Pool
	machine     *lifecycle.Machine
	taskRepo    *repository.TaskRepository
	workLogRepo *repository.WorkLogRepository
	teamRepo    *repository.TeamRepository
	access      *Access
	audit       *AuditLogger
	worklogs    *WorkLogGenerator
	notifier    Notifier
}

// NewTaskService creates a new TaskService. A nil notifier drops events.
func NewTaskService(
	pool *pgxpool.Pool,
	machine *lifecycle.Machine,
	taskRepo *repository.TaskRepository,
	taskLogRepo *repository.TaskLogRepository,
	workLogRepo *repository.WorkLogRepository,
	teamRepo *repository.TeamRepository,
	notifier Notifier,
) *TaskService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &TaskService{
		pool:        pool,
		machine:     machine,
		taskRepo:    taskRepo,
		workLogRepo: workLogRepo,
		teamRepo:    teamRepo,
		access:      NewAccess(teamRepo),
		audit:       NewAuditLogger(taskLogRepo, taskLogRepo),
		worklogs:    NewWorkLogGenerator(workLogRepo),
		notifier:    notifier,
	}
}

// mutation describes one state machine operation on an existing task.
type mutation struct {
	name  string
	check func(ctx context.Context, task *domain.Task) error
	apply func(task domain.Task) (lifecycle.Result, error)
	// persist stores the result; defaults to updating the task row.
	persist func(ctx context.Context, tx pgx.Tx, prev *domain.Task, res *lifecycle.Result) error
}

// run locks the task, checks access, applies the operation and stores the
// task together with its audit trail in one transaction. Notifications are
// published only after commit.
func (s *TaskService) run(ctx context.Context, taskID, actorID int64, m mutation) (*domain.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer database.Rollback(ctx, tx)

	task, err := s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsDeleted {
		return nil, fmt.Errorf("%w: task %d", domain.ErrTaskNotFound, taskID)
	}

	if err := m.check(ctx, task); err != nil {
		return nil, err
	}

	res, err := m.apply(*task)
	if err != nil {
		return nil, err
	}
	if len(res.Events) == 0 {
		return &res.Task, nil
	}

	persist := m.persist
	if persist == nil {
		persist = s.updateTask
	}
	if err := persist(ctx, tx, task, &res); err != nil {
		return nil, err
	}

	s.recordSideEffects(ctx, tx, res.Events)

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	slog.Info("task "+m.name,
		"task_id", taskID,
		"actor_id", actorID,
		"old_status", task.Status,
		"new_status", res.Task.Status,
		"events", len(res.Events),
	)

	s.notifier.Publish(res.Events)
	return &res.Task, nil
}

func (s *TaskService) updateTask(ctx context.Context, tx pgx.Tx, prev *domain.Task, res *lifecycle.Result) error {
	return s.taskRepo.Update(ctx, tx, &res.Task, prev.Status)
}

// recordSideEffects writes audit rows and work logs, each under its own
// savepoint. Failures are logged and never abort the mutation.
func (s *TaskService) recordSideEffects(ctx context.Context, tx pgx.Tx, events []domain.Event) {
	taskID := events[0].TaskID

	err := database.Savepoint(ctx, tx, func(sp pgx.Tx) error {
		return s.audit.Append(ctx, sp, events)
	})
	if err != nil {
		slog.Error("failed to append audit rows", "task_id", taskID, "error", err)
	}

	err = database.Savepoint(ctx, tx, func(sp pgx.Tx) error {
		return s.worklogs.Handle(ctx, sp, events)
	})
	if err != nil {
		slog.Error("failed to generate work log", "task_id", taskID, "error", err)
	}
}

// CreateTask creates a task in a team the actor belongs to.
func (s *TaskService) CreateTask(ctx context.Context, actorID int64, in lifecycle.CreateInput) (*domain.Task, error) {
	if in.TeamID > 0 {
		if err := s.access.CanCreate(ctx, in.TeamID, actorID, in.AssigneeID); err != nil {
			return nil, err
		}
	}

	res, err := s.machine.Create(actorID, in)
	if err != nil {
		return nil, err
	}
	return s.insert(ctx, actorID, res)
}

// QuickCreateTask creates a task from a title and priority only. The team
// defaults to the actor's first team; non-admins become the assignee.
func (s *TaskService) QuickCreateTask(
	ctx context.Context,
	actorID int64,
	title string,
	priority domain.TaskPriority,
	teamID int64,
) (*domain.Task, error) {
	if teamID == 0 {
		first, err := s.teamRepo.FirstTeamOf(ctx, actorID)
		if err != nil {
			return nil, err
		}
		teamID = first
	}

	role, err := s.access.RequireMember(ctx, teamID, actorID)
	if err != nil {
		return nil, err
	}

	in := lifecycle.QuickCreateInput(actorID, title, priority, teamID, role == domain.TeamRoleAdmin)
	res, err := s.machine.Create(actorID, in)
	if err != nil {
		return nil, err
	}
	return s.insert(ctx, actorID, res)
}

func (s *TaskService) insert(ctx context.Context, actorID int64, res lifecycle.Result) (*domain.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer database.Rollback(ctx, tx)

	if _, err := s.taskRepo.Create(ctx, tx, &res.Task); err != nil {
		return nil, err
	}
	res.BindTaskID(res.Task.ID)

	s.recordSideEffects(ctx, tx, res.Events)

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	slog.Info("task created",
		"task_id", res.Task.ID,
		"actor_id", actorID,
		"team_id", res.Task.TeamID,
		"status", res.Task.Status,
	)

	s.notifier.Publish(res.Events)
	return &res.Task, nil
}

// GetTask returns a task visible to the actor.
func (s *TaskService) GetTask(ctx context.Context, taskID, actorID int64) (*domain.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanView(ctx, task, actorID); err != nil {
		return nil, err
	}
	return task, nil
}

// ClaimTask makes the actor the assignee of a free PENDING task.
func (s *TaskService) ClaimTask(ctx context.Context, taskID, actorID int64) (*domain.Task, error) {
	return s.run(ctx, taskID, actorID, mutation{
		name: "claimed",
		check: func(ctx context.Context, t *domain.Task) error {
			return s.access.CanClaim(ctx, t, actorID)
		},
		apply: func(t domain.Task) (lifecycle.Result, error) {
			return s.machine.Claim(t, actorID)
		},
	})
}

// AssignTask assigns the task to a team member.
func (s *TaskService) AssignTask(ctx context.Context, taskID, actorID, assigneeID int64) (*domain.Task, error) {
	return s.run(ctx, taskID, actorID, mutation{
		name: "assigned",
		check: func(ctx context.Context, t *domain.Task) error {
			return s.access.CanAssign(ctx, t, actorID, assigneeID)
		},
		apply: func(t domain.Task) (lifecycle.Result, error) {
			return s.machine.Assign(t, actorID, assigneeID)
		},
	})
}

// StartTask moves the actor's task to IN_PROGRESS.
func (s *TaskService) StartTask(ctx context.Context, taskID, actorID int64) (*domain.Task, error) {
	return s.run(ctx, taskID, actorID, mutation{
		name: "started",
		check: func(_ context.Context, t *domain.Task) error {
			return s.access.CanWork(t, actorID)
		},
		apply: func(t domain.Task) (lifecycle.Result, error) {
			return s.machine.Start(t, actorID)
		},
	})
}

// SubmitReview moves the actor's task to REVIEW.
func (s *TaskService) SubmitReview(ctx context.Context, taskID, actorID int64, comment string) (*domain.Task, error) {
	return s.run(ctx, taskID, actorID, mutation{
		name: "submitted for review",
		check: func(_ context.Context, t *domain.Task) error {
			return s.access.CanWork(t, actorID)
		},
		apply: func(t domain.Task) (lifecycle.Result, error) {
			return s.machine.SubmitReview(t, actorID, comment)
		},
	})
}

// ApproveTask completes a task under review.
func (s *TaskService) ApproveTask(ctx context.Context, taskID, actorID int64, comment string) (*domain.Task, error) {
	return s.run(ctx, taskID, actorID, mutation{
		name: "approved",
		check: func(ctx context.Context, t *domain.Task) error {
			return s.access.CanReview(ctx, t, actorID)
		},
		apply: func(t domain.Task) (lifecycle.Result, error) {
			return s.machine.Approve(t, actorID, comment)
		},
	})
}

// RejectTask sends a task under review back to IN_PROGRESS.
func (s *TaskService) RejectTask(ctx context.Context, taskID, actorID int64, reason string) (*domain.Task, error) {
	return s.run(ctx, taskID, actorID, mutation{
		name: "rejected",
		check: func(ctx context.Context, t *domain.Task) error {
			return s.access.CanReview(ctx, t, actorID)
		},
		apply: func(t domain.Task) (lifecycle.Result, error) {
			return s.machine.Reject(t, actorID, reason)
		},
	})
}

// CompleteTask completes the actor's IN_PROGRESS task directly.
func (s *TaskService) CompleteTask(ctx context.Context, taskID, actorID int64) (*domain.Task, error) {
	return s.run(ctx, taskID, actorID, mutation{
		name: "completed",
		check: func(_ context.Context, t *domain.Task) error {
			return s.access.CanWork(t, actorID)
		},
		apply: func(t domain.Task) (lifecycle.Result, error) {
			return s.machine.Complete(t, actorID)
		},
	})
}

// UpdateTask applies a generic field patch.
func (s *TaskService) UpdateTask(ctx context.Context, taskID, actorID int64, in lifecycle.PatchInput) (*domain.Task, error) {
	return s.run(ctx, taskID, actorID, mutation{
		name: "updated",
		check: func(ctx context.Context, t *domain.Task) error {
			return s.access.CanPatch(ctx, t, actorID, in)
		},
		apply: func(t domain.Task) (lifecycle.Result, error) {
			return s.machine.Patch(t, actorID, in)
		},
	})
}

// AddComment stores a comment on the task.
func (s *TaskService) AddComment(ctx context.Context, taskID, actorID int64, content string) (*domain.TaskComment, error) {
	var comment *domain.TaskComment
	_, err := s.run(ctx, taskID, actorID, mutation{
		name: "commented",
		check: func(ctx context.Context, t *domain.Task) error {
			return s.access.CanComment(ctx, t, actorID)
		},
		apply: func(t domain.Task) (lifecycle.Result, error) {
			return s.machine.Comment(t, actorID, content)
		},
		persist: func(ctx context.Context, tx pgx.Tx, _ *domain.Task, res *lifecycle.Result) error {
			c := &domain.TaskComment{
				TaskID:  taskID,
				UserID:  actorID,
				Content: res.Events[0].Comment,
			}
			if err := s.taskRepo.CreateComment(ctx, tx, c); err != nil {
				return err
			}
			res.Events[0].CommentID = c.ID
			comment = c
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// TaskLogs lists the operation log of a task.
func (s *TaskService) TaskLogs(ctx context.Context, taskID, actorID int64, limit, offset int) ([]*domain.TaskLog, error) {
	if _, err := s.GetTask(ctx, taskID, actorID); err != nil {
		return nil, err
	}
	return s.audit.Logs(ctx, taskID, limit, offset)
}

// TaskStatusChanges lists the status history of a task.
func (s *TaskService) TaskStatusChanges(ctx context.Context, taskID, actorID int64, limit, offset int) ([]*domain.TaskStatusChange, error) {
	if _, err := s.GetTask(ctx, taskID, actorID); err != nil {
		return nil, err
	}
	return s.audit.StatusChanges(ctx, taskID, limit, offset)
}

// TaskActivity lists both audit streams merged, newest first.
func (s *TaskService) TaskActivity(ctx context.Context, taskID, actorID int64, limit, offset int) ([]domain.ActivityEntry, error) {
	if _, err := s.GetTask(ctx, taskID, actorID); err != nil {
		return nil, err
	}
	return s.audit.Activity(ctx, taskID, limit, offset)
}

// TaskWorkLogs lists the work logs generated for a task.
func (s *TaskService) TaskWorkLogs(ctx context.Context, taskID, actorID int64) ([]*domain.WorkLog, error) {
	if _, err := s.GetTask(ctx, taskID, actorID); err != nil {
		return nil, err
	}
	return s.workLogRepo.ListByTask(ctx, taskID)
}
