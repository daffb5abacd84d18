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

// TemplateRepository reads administrator-managed message templates.
type TemplateRepository struct {
	pool *pgxpool.Pool
}

// NewTemplateRepository creates a new TemplateRepository.
func NewTemplateRepository(pool *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

// GetActive returns the active template with the given name.
func (r *TemplateRepository) GetActive(ctx context.Context, name domain.NotificationKind) (*domain.MessageTemplate, error) {
	query, args, err := psql.
		Select(
			"name", "title_template", "content_template", "message_type", "priority",
			"variables", "send_via_email", "send_via_realtime", "send_via_desktop", "is_active",
		).
		From("message_templates").
		Where(sq.Eq{"name": name, "is_active": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetActive query for template %s: %w", name, err)
	}

	var t domain.MessageTemplate
	err = r.pool.QueryRow(ctx, query, args...).Scan(
		&t.Name,
		&t.TitleTemplate,
		&t.ContentTemplate,
		&t.MessageType,
		&t.Priority,
		&t.Variables,
		&t.SendViaEmail,
		&t.SendViaRealtime,
		&t.SendViaDesktop,
		&t.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, name)
		}
		return nil, fmt.Errorf("query template: %w", err)
	}

	return &t, nil
}
