package repository

import sq "github.com/Masterminds/squirrel"

// psql builds statements with PostgreSQL dollar placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// newestFirst orders a list query by creation time and applies a page window.
// Callers validate limit and offset beforehand.
func newestFirst(qb sq.SelectBuilder, limit, offset int) sq.SelectBuilder {
	return qb.
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))
}
