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

var messageColumns = []string{
	"id", "title", "content", "message_type", "priority", "sender_id",
	"recipients", "read_by", "deleted_by",
	"sent_via_email", "sent_via_realtime", "sent_via_desktop",
	"data", "created_at", "updated_at",
}

// MessageRepository handles database operations for inbox messages.
// Messages are never physically removed; read and delete are per-recipient flags.
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	err := row.Scan(
		&m.ID,
		&m.Title,
		&m.Content,
		&m.MessageType,
		&m.Priority,
		&m.SenderID,
		&m.Recipients,
		&m.ReadBy,
		&m.DeletedBy,
		&m.SentViaEmail,
		&m.SentViaRealtime,
		&m.SentViaDesktop,
		&m.Data,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return &m, nil
}

// visibleTo restricts a query to messages addressed to and not deleted by the user.
func visibleTo(userID int64) sq.Sqlizer {
	return sq.And{
		sq.Expr("? = ANY(recipients)", userID),
		sq.Expr("NOT (? = ANY(deleted_by))", userID),
	}
}

// Create persists one message for the whole recipient set.
func (r *MessageRepository) Create(ctx context.Context, m *domain.Message) error {
	if len(m.Recipients) == 0 {
		return fmt.Errorf("%w: message needs at least one recipient", domain.ErrValidation)
	}
	data := m.Data
	if len(data) == 0 {
		data = []byte("{}")
	}

	query, args, err := psql.
		Insert("messages").
		Columns(
			"title", "content", "message_type", "priority", "sender_id", "recipients",
			"sent_via_email", "sent_via_realtime", "sent_via_desktop", "data",
		).
		Values(
			m.Title, m.Content, m.MessageType, m.Priority, m.SenderID, m.Recipients,
			m.SentViaEmail, m.SentViaRealtime, m.SentViaDesktop, string(data),
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for message: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	m.ReadBy = []int64{}
	m.DeletedBy = []int64{}
	return nil
}

// UpdateChannels records which delivery channels were attempted.
func (r *MessageRepository) UpdateChannels(ctx context.Context, messageID int64, email, realtime, desktop bool) error {
	query, args, err := psql.
		Update("messages").
		Set("sent_via_email", email).
		Set("sent_via_realtime", realtime).
		Set("sent_via_desktop", desktop).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": messageID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build UpdateChannels query for message %d: %w", messageID, err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update message channels: %w", err)
	}
	return nil
}

// GetForUser retrieves a message visible to the user.
func (r *MessageRepository) GetForUser(ctx context.Context, messageID, userID int64) (*domain.Message, error) {
	query, args, err := psql.
		Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"id": messageID}).
		Where(visibleTo(userID)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetForUser query for message %d: %w", messageID, err)
	}

	return scanMessage(r.pool.QueryRow(ctx, query, args...))
}

// MarkRead adds the user to the message's readers. Marking twice is a no-op.
func (r *MessageRepository) MarkRead(ctx context.Context, messageID, userID int64) error {
	query, args, err := psql.
		Update("messages").
		Set("read_by", sq.Expr("CASE WHEN ? = ANY(read_by) THEN read_by ELSE array_append(read_by, ?::bigint) END", userID, userID)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": messageID}).
		Where(visibleTo(userID)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build MarkRead query for message %d: %w", messageID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// MarkAllRead marks every unread message of the user as read and returns how many changed.
func (r *MessageRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	query, args, err := psql.
		Update("messages").
		Set("read_by", sq.Expr("array_append(read_by, ?::bigint)", userID)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(visibleTo(userID)).
		Where(sq.Expr("NOT (? = ANY(read_by))", userID)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build MarkAllRead query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark all messages read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete hides the message from the user's inbox.
func (r *MessageRepository) Delete(ctx context.Context, messageID, userID int64) error {
	query, args, err := psql.
		Update("messages").
		Set("deleted_by", sq.Expr("array_append(deleted_by, ?::bigint)", userID)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": messageID}).
		Where(visibleTo(userID)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Delete query for message %d: %w", messageID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// UnreadCount returns the number of unread messages in the user's inbox.
func (r *MessageRepository) UnreadCount(ctx context.Context, userID int64) (int, error) {
	query, args, err := psql.
		Select("COUNT(*)").
		From("messages").
		Where(visibleTo(userID)).
		Where(sq.Expr("NOT (? = ANY(read_by))", userID)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build UnreadCount query: %w", err)
	}

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return count, nil
}
