package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/worklog/internal/domain"
)

// taskColumns is the shared list of columns for task queries.
var taskColumns = []string{
	"id", "title", "description", "status", "priority", "team_id", "project_id",
	"creator_id", "assignee_id", "due_date", "estimated_hours", "actual_hours",
	"started_at", "completed_at", "is_deleted", "created_at", "updated_at",
}

// TaskRepository handles database operations for tasks.
type TaskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

// scanTask scans a single row into a Task struct.
func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.TeamID,
		&task.ProjectID,
		&task.CreatorID,
		&task.AssigneeID,
		&task.DueDate,
		&task.EstimatedHours,
		&task.ActualHours,
		&task.StartedAt,
		&task.CompletedAt,
		&task.IsDeleted,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &task, nil
}

// scanTasks scans multiple rows into a slice of Task structs.
func scanTasks(rows pgx.Rows) ([]*domain.Task, error) {
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tasks, nil
}

// GetByID retrieves a task by ID. Soft-deleted tasks are reported as not found.
func (r *TaskRepository) GetByID(ctx context.Context, taskID int64) (*domain.Task, error) {
	query, args, err := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": taskID, "is_deleted": false}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for task: %w", err)
	}

	return scanTask(r.pool.QueryRow(ctx, query, args...))
}

// GetByIDForUpdate retrieves a task by ID with FOR UPDATE lock (within transaction).
// The row is returned even if soft-deleted so the state machine can reject it.
func (r *TaskRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, taskID int64) (*domain.Task, error) {
	query, args, err := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByIDForUpdate query for task %d: %w", taskID, err)
	}

	return scanTask(tx.QueryRow(ctx, query, args...))
}

// Update persists every mutable column of the task with optimistic locking on
// the previous status. Returns ErrTaskAlreadyClaimed if the row changed under us.
func (r *TaskRepository) Update(ctx context.Context, tx pgx.Tx, task *domain.Task, prevStatus domain.TaskStatus) error {
	query, args, err := psql.
		Update("tasks").
		Set("title", task.Title).
		Set("description", task.Description).
		Set("status", task.Status).
		Set("priority", task.Priority).
		Set("project_id", task.ProjectID).
		Set("assignee_id", task.AssigneeID).
		Set("due_date", task.DueDate).
		Set("estimated_hours", task.EstimatedHours).
		Set("actual_hours", task.ActualHours).
		Set("started_at", task.StartedAt).
		Set("completed_at", task.CompletedAt).
		Set("updated_at", task.UpdatedAt).
		Where(sq.Eq{
			"id":         task.ID,
			"status":     prevStatus,
			"is_deleted": false,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Update query for task %d: %w", task.ID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrTaskAlreadyClaimed
	}

	return nil
}

// Create creates a new task in the database within a transaction.
// Returns the created task with ID, CreatedAt, and UpdatedAt populated.
func (r *TaskRepository) Create(ctx context.Context, tx pgx.Tx, task *domain.Task) (*domain.Task, error) {
	if task.Priority == "" {
		task.Priority = domain.TaskPriorityMedium
	}

	query, args, err := psql.
		Insert("tasks").
		Columns(
			"title", "description", "status", "priority", "team_id", "project_id",
			"creator_id", "assignee_id", "due_date", "estimated_hours",
		).
		Values(
			task.Title,
			task.Description,
			task.Status,
			task.Priority,
			task.TeamID,
			task.ProjectID,
			task.CreatorID,
			task.AssigneeID,
			task.DueDate,
			task.EstimatedHours,
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Create query for task: %w", err)
	}

	err = tx.QueryRow(ctx, query, args...).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	return task, nil
}

// FindDueSoon finds assigned, open tasks whose due date falls in [now, until].
func (r *TaskRepository) FindDueSoon(ctx context.Context, now, until time.Time) ([]*domain.Task, error) {
	query, args, err := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"is_deleted": false}).
		Where(sq.NotEq{"assignee_id": nil}).
		Where(sq.GtOrEq{"due_date": now}).
		Where(sq.LtOrEq{"due_date": until}).
		Where(sq.NotEq{"status": []domain.TaskStatus{
			domain.TaskStatusCompleted,
			domain.TaskStatusCancelled,
		}}).
		OrderBy("due_date ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build FindDueSoon query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query due tasks: %w", err)
	}

	return scanTasks(rows)
}

// CreateComment stores a task comment and fills its ID and CreatedAt.
func (r *TaskRepository) CreateComment(ctx context.Context, tx pgx.Tx, comment *domain.TaskComment) error {
	query, args, err := psql.
		Insert("task_comments").
		Columns("task_id", "user_id", "content").
		Values(comment.TaskID, comment.UserID, comment.Content).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build CreateComment query: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&comment.ID, &comment.CreatedAt); err != nil {
		return fmt.Errorf("create task comment: %w", err)
	}

	return nil
}
