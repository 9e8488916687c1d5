package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"pdfqa/internal/model"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// GetOrCreate returns the session's conversation, creating it on first use.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, sessionID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Where(model.Conversation{SessionID: sessionID}).
		FirstOrCreate(&conv).Error
	if err == nil {
		return &conv, nil
	}
	// A concurrent creator may have won the unique index race.
	if existing, getErr := r.GetBySessionID(ctx, sessionID); getErr == nil && existing != nil {
		return existing, nil
	}
	return nil, fmt.Errorf("get or create conversation failed: %w", err)
}

// GetBySessionID returns nil, nil when the session has no conversation yet.
func (r *ConversationRepository) GetBySessionID(ctx context.Context, sessionID string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conversation failed: %w", err)
	}
	return &conv, nil
}

func (r *ConversationRepository) DeleteByID(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Conversation{}).Error; err != nil {
		return fmt.Errorf("delete conversation failed: %w", err)
	}
	return nil
}
