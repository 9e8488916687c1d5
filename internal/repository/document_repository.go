package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"pdfqa/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

// GetBySessionAndFilename returns nil, nil when no such document exists.
func (r *DocumentRepository) GetBySessionAndFilename(ctx context.Context, sessionID, filename string) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND filename = ?", sessionID, filename).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) Rename(ctx context.Context, id uint, filename string) error {
	err := r.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("id = ?", id).
		Update("filename", filename).Error
	if err != nil {
		return fmt.Errorf("rename document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) ListBySessionID(ctx context.Context, sessionID string) ([]model.Document, error) {
	var list []model.Document
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

func (r *DocumentRepository) CountBySessionID(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Document{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count documents failed: %w", err)
	}
	return count, nil
}

// ListIDsBySessionID returns document IDs for a session (for cascade delete).
func (r *DocumentRepository) ListIDsBySessionID(ctx context.Context, sessionID string) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&model.Document{}).Where("session_id = ?", sessionID).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list document ids by session failed: %w", err)
	}
	return ids, nil
}

// DeleteByID deletes one document row; callers delete its chunks first.
func (r *DocumentRepository) DeleteByID(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) DeleteBySessionID(ctx context.Context, sessionID string) error {
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete documents by session failed: %w", err)
	}
	return nil
}
