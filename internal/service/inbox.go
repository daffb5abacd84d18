package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mtlprog/worklog/internal/domain"
	"github.com/mtlprog/worklog/internal/repository"
)

const (
	// DefaultInboxLimit is the inbox page size used when none is given.
	DefaultInboxLimit = 20
	// MaxInboxLimit caps inbox page sizes.
	MaxInboxLimit = 100
)

// InboxService serves a user's messages. Read and delete state is per user.
type InboxService struct {
	messages *repository.MessageRepository
}

// NewInboxService creates a new InboxService.
func NewInboxService(messages *repository.MessageRepository) *InboxService {
	return &InboxService{messages: messages}
}

// List returns a page of the user's inbox and the total number of matches.
func (s *InboxService) List(ctx context.Context, filters repository.MessageListFilters) ([]*domain.Message, int, error) {
	if filters.Limit == 0 {
		filters.Limit = DefaultInboxLimit
	}
	if filters.Limit < 1 || filters.Limit > MaxInboxLimit {
		return nil, 0, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, MaxInboxLimit)
	}
	if filters.Offset < 0 {
		return nil, 0, fmt.Errorf("%w: offset must not be negative", domain.ErrValidation)
	}
	for _, t := range filters.Types {
		if !domain.MessageType(t).IsValid() {
			return nil, 0, fmt.Errorf("%w: unknown message type %q", domain.ErrValidation, t)
		}
	}
	for _, p := range filters.Priorities {
		if !domain.MessagePriority(p).IsValid() {
			return nil, 0, fmt.Errorf("%w: unknown priority %q", domain.ErrValidation, p)
		}
	}

	return s.messages.List(ctx, filters)
}

// Get returns one message of the user's inbox.
func (s *InboxService) Get(ctx context.Context, messageID, userID int64) (*domain.Message, error) {
	return s.messages.GetForUser(ctx, messageID, userID)
}

// UnreadCount returns the number of unread messages.
func (s *InboxService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.messages.UnreadCount(ctx, userID)
}

// Stats summarises the user's inbox.
func (s *InboxService) Stats(ctx context.Context, userID int64) (*domain.MessageStats, error) {
	return s.messages.Stats(ctx, userID)
}

// MarkRead marks one message read for the user.
func (s *InboxService) MarkRead(ctx context.Context, messageID, userID int64) error {
	if err := s.messages.MarkRead(ctx, messageID, userID); err != nil {
		return err
	}
	slog.Debug("message marked read", "message_id", messageID, "user_id", userID)
	return nil
}

// MarkAllRead marks every message of the user read.
func (s *InboxService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	n, err := s.messages.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	slog.Info("inbox marked read", "user_id", userID, "updated", n)
	return n, nil
}

// Delete removes the message from the user's inbox only.
func (s *InboxService) Delete(ctx context.Context, messageID, userID int64) error {
	if err := s.messages.Delete(ctx, messageID, userID); err != nil {
		return err
	}
	slog.Info("message deleted", "message_id", messageID, "user_id", userID)
	return nil
}
