package repository

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/mtlprog/worklog/internal/domain"
)

// MessageListFilters holds all supported filters for inbox listing.
type MessageListFilters struct {
	UserID     int64    // Required: inbox owner
	Types      []string // Optional: filter by message type
	Priorities []string // Optional: filter by priority
	UnreadOnly bool     // Optional: show only unread
	Sort       []string // Optional: sort fields (with - prefix for DESC)
	Limit      int      // Required: page size
	Offset     int      // Required: page offset
}

// sortableMessageColumns whitelists fields accepted in MessageListFilters.Sort.
var sortableMessageColumns = map[string]bool{
	"created_at": true,
	"priority":   true,
	"id":         true,
}

const messagePriorityRank = "CASE priority WHEN 'urgent' THEN 1 WHEN 'high' THEN 2 WHEN 'normal' THEN 3 WHEN 'low' THEN 4 END"

// applyMessageFilters adds the shared WHERE clauses for list and count.
func applyMessageFilters(qb sq.SelectBuilder, filters MessageListFilters) sq.SelectBuilder {
	qb = qb.Where(visibleTo(filters.UserID))

	if len(filters.Types) > 0 {
		qb = qb.Where(sq.Eq{"message_type": filters.Types})
	}
	if len(filters.Priorities) > 0 {
		qb = qb.Where(sq.Eq{"priority": filters.Priorities})
	}
	if filters.UnreadOnly {
		qb = qb.Where(sq.Expr("NOT (? = ANY(read_by))", filters.UserID))
	}
	return qb
}

// List retrieves the user's inbox with filters and pagination.
func (r *MessageRepository) List(ctx context.Context, filters MessageListFilters) ([]*domain.Message, int, error) {
	qb := applyMessageFilters(psql.Select(messageColumns...).From("messages"), filters)

	// Apply sorting (default: -created_at)
	if len(filters.Sort) == 0 {
		qb = qb.OrderBy("created_at DESC", "id DESC")
	} else {
		for _, sort := range filters.Sort {
			dir := "ASC"
			field := sort
			if strings.HasPrefix(sort, "-") {
				dir = "DESC"
				field = sort[1:]
			}
			if !sortableMessageColumns[field] {
				return nil, 0, fmt.Errorf("%w: unsupported sort field %q", domain.ErrValidation, field)
			}
			if field == "priority" {
				// rank ascending means most urgent first
				qb = qb.OrderBy(messagePriorityRank + " " + dir)
			} else {
				qb = qb.OrderBy(field + " " + dir)
			}
		}
	}

	qb = qb.Limit(uint64(filters.Limit)).Offset(uint64(filters.Offset))

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build List query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate rows: %w", err)
	}

	countQuery, countArgs, err := applyMessageFilters(psql.Select("COUNT(*)").From("messages"), filters).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	return messages, total, nil
}
