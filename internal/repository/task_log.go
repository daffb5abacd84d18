package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/worklog/internal/domain"
)

// TaskLogRepository handles the append-only audit tables.
// It has no update or delete paths.
type TaskLogRepository struct {
	pool *pgxpool.Pool
}

// NewTaskLogRepository creates a new TaskLogRepository.
func NewTaskLogRepository(pool *pgxpool.Pool) *TaskLogRepository {
	return &TaskLogRepository{pool: pool}
}

// CreateLog appends a task log row.
func (r *TaskLogRepository) CreateLog(ctx context.Context, tx pgx.Tx, log *domain.TaskLog) error {
	query, args, err := psql.
		Insert("task_logs").
		Columns("task_id", "actor_id", "action", "old_value", "new_value", "metadata").
		Values(log.TaskID, log.ActorID, log.Action, nullJSON(log.OldValue), nullJSON(log.NewValue), log.Metadata).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build CreateLog query: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&log.ID, &log.CreatedAt); err != nil {
		return fmt.Errorf("create task log: %w", err)
	}

	return nil
}

// CreateStatusChange appends a status change row.
func (r *TaskLogRepository) CreateStatusChange(ctx context.Context, tx pgx.Tx, change *domain.TaskStatusChange) error {
	query, args, err := psql.
		Insert("task_status_changes").
		Columns("task_id", "actor_id", "old_status", "new_status", "reason", "comment").
		Values(change.TaskID, change.ActorID, change.OldStatus, change.NewStatus, change.Reason, change.Comment).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build CreateStatusChange query: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&change.ID, &change.CreatedAt); err != nil {
		return fmt.Errorf("create task status change: %w", err)
	}

	return nil
}

// ListLogs returns task log rows, newest first.
func (r *TaskLogRepository) ListLogs(ctx context.Context, taskID int64, limit, offset int) ([]*domain.TaskLog, error) {
	qb := psql.
		Select("id", "task_id", "actor_id", "action", "old_value", "new_value", "metadata", "created_at").
		From("task_logs").
		Where(sq.Eq{"task_id": taskID})
	query, args, err := newestFirst(qb, limit, offset).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListLogs query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query task logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.TaskLog
	for rows.Next() {
		var log domain.TaskLog
		if err := rows.Scan(
			&log.ID,
			&log.TaskID,
			&log.ActorID,
			&log.Action,
			&log.OldValue,
			&log.NewValue,
			&log.Metadata,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan task log: %w", err)
		}
		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return logs, nil
}

// ListStatusChanges returns status change rows, newest first.
func (r *TaskLogRepository) ListStatusChanges(ctx context.Context, taskID int64, limit, offset int) ([]*domain.TaskStatusChange, error) {
	qb := psql.
		Select("id", "task_id", "actor_id", "old_status", "new_status", "reason", "comment", "created_at").
		From("task_status_changes").
		Where(sq.Eq{"task_id": taskID})
	query, args, err := newestFirst(qb, limit, offset).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListStatusChanges query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query task status changes: %w", err)
	}
	defer rows.Close()

	var changes []*domain.TaskStatusChange
	for rows.Next() {
		var change domain.TaskStatusChange
		if err := rows.Scan(
			&change.ID,
			&change.TaskID,
			&change.ActorID,
			&change.OldStatus,
			&change.NewStatus,
			&change.Reason,
			&change.Comment,
			&change.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan task status change: %w", err)
		}
		changes = append(changes, &change)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return changes, nil
}

// Activity merges both audit streams sorted by time, newest first.
func (r *TaskLogRepository) Activity(ctx context.Context, taskID int64, limit, offset int) ([]domain.ActivityEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT kind, id, actor_id, action, old_value, new_value, metadata,
		       old_status, new_status, reason, comment, created_at
		FROM (
			SELECT 'operation' AS kind, id, actor_id, action, old_value, new_value, metadata,
			       NULL::varchar AS old_status, NULL::varchar AS new_status,
			       NULL::text AS reason, NULL::text AS comment, created_at
			FROM task_logs
			WHERE task_id = $1
			UNION ALL
			SELECT 'status_change', id, actor_id, NULL, NULL, NULL, NULL,
			       old_status, new_status, reason, comment, created_at
			FROM task_status_changes
			WHERE task_id = $1
		) activity
		ORDER BY created_at DESC, kind ASC, id DESC
		LIMIT $2 OFFSET $3
	`, taskID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query task activity: %w", err)
	}
	defer rows.Close()

	var entries []domain.ActivityEntry
	for rows.Next() {
		var (
			kind                         string
			id, actorID                  int64
			action                       *string
			oldValue, newValue, metadata []byte
			oldStatus, newStatus         *string
			reason, comment              *string
			entry                        domain.ActivityEntry
		)
		if err := rows.Scan(
			&kind, &id, &actorID, &action, &oldValue, &newValue, &metadata,
			&oldStatus, &newStatus, &reason, &comment, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan task activity: %w", err)
		}

		entry.Kind = domain.ActivityKind(kind)
		if entry.Kind == domain.ActivityStatusChange {
			entry.StatusChange = &domain.TaskStatusChange{
				ID:        id,
				TaskID:    taskID,
				ActorID:   actorID,
				OldStatus: domain.TaskStatus(deref(oldStatus)),
				NewStatus: domain.TaskStatus(deref(newStatus)),
				Reason:    deref(reason),
				Comment:   deref(comment),
				CreatedAt: entry.CreatedAt,
			}
		} else {
			entry.Log = &domain.TaskLog{
				ID:        id,
				TaskID:    taskID,
				ActorID:   actorID,
				Action:    domain.LogAction(deref(action)),
				OldValue:  oldValue,
				NewValue:  newValue,
				Metadata:  metadata,
				CreatedAt: entry.CreatedAt,
			}
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return entries, nil
}

// CountForTask returns the number of log and status change rows for a task.
func (r *TaskLogRepository) CountForTask(ctx context.Context, taskID int64) (logs int, statusChanges int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM task_logs WHERE task_id = $1),
			(SELECT COUNT(*) FROM task_status_changes WHERE task_id = $1)
	`, taskID).Scan(&logs, &statusChanges)
	if err != nil {
		return 0, 0, fmt.Errorf("count task audit rows: %w", err)
	}
	return logs, statusChanges, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nullJSON maps an empty raw message to SQL NULL.
func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
