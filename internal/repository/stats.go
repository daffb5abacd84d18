package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mtlprog/worklog/internal/domain"
)

// TeamSummaryResult holds the figures of a team's daily summary.
type TeamSummaryResult struct {
	CompletedCount  int
	InProgressCount int
	OverdueCount    int
	LoggedHours     float64
}

// Stats aggregates inbox statistics for a user.
func (r *MessageRepository) Stats(ctx context.Context, userID int64) (*domain.MessageStats, error) {
	stats := &domain.MessageStats{
		ByType:     make(map[domain.MessageType]int),
		ByPriority: make(map[domain.MessagePriority]int),
	}

	rows, err := r.pool.Query(ctx, `
		SELECT message_type, priority, COUNT(*),
		       COUNT(*) FILTER (WHERE NOT ($1 = ANY(read_by)))
		FROM messages
		WHERE $1 = ANY(recipients) AND NOT ($1 = ANY(deleted_by))
		GROUP BY message_type, priority
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query message stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msgType  domain.MessageType
			priority domain.MessagePriority
			total    int
			unread   int
		)
		if err := rows.Scan(&msgType, &priority, &total, &unread); err != nil {
			return nil, fmt.Errorf("scan message stats: %w", err)
		}
		stats.Total += total
		stats.Unread += unread
		stats.ByType[msgType] += total
		stats.ByPriority[priority] += total
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message stats rows: %w", err)
	}

	return stats, nil
}

// TeamSummary computes the daily summary figures for a team since dayStart.
func (r *TaskRepository) TeamSummary(ctx context.Context, teamID int64, dayStart, now time.Time) (*TeamSummaryResult, error) {
	var result TeamSummaryResult

	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = $2 AND completed_at >= $4),
			COUNT(*) FILTER (WHERE status = $3),
			COUNT(*) FILTER (WHERE due_date < $5 AND status NOT IN ($2, 'CANCELLED'))
		FROM tasks
		WHERE team_id = $1 AND NOT is_deleted
	`, teamID,
		domain.TaskStatusCompleted,
		domain.TaskStatusInProgress,
		dayStart,
		now,
	).Scan(&result.CompletedCount, &result.InProgressCount, &result.OverdueCount)
	if err != nil {
		return nil, fmt.Errorf("count team tasks: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(duration), 0)
		FROM work_logs
		WHERE team_id = $1 AND start_time >= $2
	`, teamID, dayStart).Scan(&result.LoggedHours)
	if err != nil {
		return nil, fmt.Errorf("sum team work logs: %w", err)
	}

	return &result, nil
}
