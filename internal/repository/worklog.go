package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/worklog/internal/domain"
)

var workLogColumns = []string{
	"id", "user_id", "task_id", "project_id", "team_id", "content",
	"start_time", "end_time", "duration", "work_status", "progress_percentage",
	"created_at", "updated_at",
}

// WorkLogRepository handles database operations for work logs.
type WorkLogRepository struct {
	pool *pgxpool.Pool
}

// NewWorkLogRepository creates a new WorkLogRepository.
func NewWorkLogRepository(pool *pgxpool.Pool) *WorkLogRepository {
	return &WorkLogRepository{pool: pool}
}

func scanWorkLog(row pgx.Row) (*domain.WorkLog, error) {
	var w domain.WorkLog
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.TaskID,
		&w.ProjectID,
		&w.TeamID,
		&w.Content,
		&w.StartTime,
		&w.EndTime,
		&w.Duration,
		&w.WorkStatus,
		&w.ProgressPercentage,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWorkLogNotFound
		}
		return nil, fmt.Errorf("scan work log: %w", err)
	}
	return &w, nil
}

// Create inserts a work log and fills its ID and timestamps.
func (r *WorkLogRepository) Create(ctx context.Context, tx pgx.Tx, w *domain.WorkLog) error {
	query, args, err := psql.
		Insert("work_logs").
		Columns(
			"user_id", "task_id", "project_id", "team_id", "content",
			"start_time", "end_time", "duration", "work_status", "progress_percentage",
		).
		Values(
			w.UserID, w.TaskID, w.ProjectID, w.TeamID, w.Content,
			w.StartTime, w.EndTime, w.Duration, w.WorkStatus, w.ProgressPercentage,
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for work log: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return fmt.Errorf("create work log: %w", err)
	}
	return nil
}

// LatestOpenForUpdate locks the most recent open work log of a user on a task.
// Returns ErrWorkLogNotFound if there is none.
func (r *WorkLogRepository) LatestOpenForUpdate(ctx context.Context, tx pgx.Tx, taskID, userID int64) (*domain.WorkLog, error) {
	query, args, err := psql.
		Select(workLogColumns...).
		From("work_logs").
		Where(sq.Eq{"task_id": taskID, "user_id": userID, "end_time": nil}).
		OrderBy("start_time DESC", "id DESC").
		Limit(1).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build LatestOpenForUpdate query: %w", err)
	}

	return scanWorkLog(tx.QueryRow(ctx, query, args...))
}

// Finalize closes a work log.
func (r *WorkLogRepository) Finalize(ctx context.Context, tx pgx.Tx, w *domain.WorkLog) error {
	query, args, err := psql.
		Update("work_logs").
		Set("end_time", w.EndTime).
		Set("duration", w.Duration).
		Set("work_status", w.WorkStatus).
		Set("progress_percentage", w.ProgressPercentage).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": w.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Finalize query for work log %d: %w", w.ID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("finalize work log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWorkLogNotFound
	}
	return nil
}

// ListByTask returns the work logs attached to a task, oldest first.
func (r *WorkLogRepository) ListByTask(ctx context.Context, taskID int64) ([]*domain.WorkLog, error) {
	query, args, err := psql.
		Select(workLogColumns...).
		From("work_logs").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("start_time ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByTask query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query work logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.WorkLog
	for rows.Next() {
		w, err := scanWorkLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return logs, nil
}
