package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pdfqa/internal/model"
	"pdfqa/internal/repository"
)

const DefaultHistoryLimit = 5

// MessageSink persists conversation messages, either directly or through
// a queue.
type MessageSink interface {
	Publish(ctx context.Context, msg model.Message) error
}

type HistoryCache interface {
	Get(ctx context.Context, conversationID uint, limit int) ([]model.Message, bool, error)
	Set(ctx context.Context, conversationID uint, limit int, messages []model.Message) error
	MarkDirty(ctx context.Context, conversationID uint) error
	IsDirty(ctx context.Context, conversationID uint) (bool, error)
	Delete(ctx context.Context, conversationID uint) error
}

// ConversationStore is the per-session message log. cache may be nil.
type ConversationStore struct {
	conversations *repository.ConversationRepository
	messages      *repository.MessageRepository
	sink          MessageSink
	cache         HistoryCache
	logger        *slog.Logger
}

func NewConversationStore(
	conversations *repository.ConversationRepository,
	messages *repository.MessageRepository,
	sink MessageSink,
	cache HistoryCache,
	logger *slog.Logger,
) *ConversationStore {
	if sink == nil {
		sink = messages
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationStore{
		conversations: conversations,
		messages:      messages,
		sink:          sink,
		cache:         cache,
		logger:        logger,
	}
}

func (s *ConversationStore) Append(ctx context.Context, sessionID, role, content string) error {
	if role != model.RoleUser && role != model.RoleAssistant {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	conv, err := s.conversations.GetOrCreate(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	msg := model.Message{
		ConversationID: conv.ID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if s.cache != nil {
		if err := s.cache.MarkDirty(ctx, conv.ID); err != nil {
			s.logger.Warn("mark history dirty failed", "conversation_id", conv.ID, "error", err)
		}
	}
	if err := s.sink.Publish(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// Recent returns the last limit messages of the session, oldest first.
func (s *ConversationStore) Recent(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	conv, err := s.conversations.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if conv == nil {
		return []model.Message{}, nil
	}

	if s.cache != nil {
		cached, hit, err := s.cache.Get(ctx, conv.ID, limit)
		if err != nil {
			s.logger.Warn("read history cache failed", "conversation_id", conv.ID, "error", err)
		} else if hit {
			return cached, nil
		}
	}

	messages, err := s.messages.ListRecentByConversationID(ctx, conv.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if s.cache != nil {
		if dirty, err := s.cache.IsDirty(ctx, conv.ID); err == nil && !dirty {
			if err := s.cache.Set(ctx, conv.ID, limit, messages); err != nil {
				s.logger.Warn("write history cache failed", "conversation_id", conv.ID, "error", err)
			}
		}
	}
	return messages, nil
}

// Clear drops the session's conversation and every message in it.
func (s *ConversationStore) Clear(ctx context.Context, sessionID string) error {
	conv, err := s.conversations.GetBySessionID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if conv == nil {
		return nil
	}
	if err := s.messages.DeleteByConversationID(ctx, conv.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := s.conversations.DeleteByID(ctx, conv.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, conv.ID); err != nil {
			s.logger.Warn("delete history cache failed", "conversation_id", conv.ID, "error", err)
		}
	}
	return nil
}

// FormatHistory renders messages as "role: content" lines.
func FormatHistory(messages []model.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
