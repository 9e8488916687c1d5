package repository

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"pdfqa/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) CreateBatch(ctx context.Context, chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&chunks, 100).Error; err != nil {
		return fmt.Errorf("create chunks batch failed: %w", err)
	}
	return nil
}

// ListBySessionID returns every chunk of every document owned by the session.
func (r *ChunkRepository) ListBySessionID(ctx context.Context, sessionID string) ([]model.DocumentChunk, error) {
	docIDs := r.db.Model(&model.Document{}).Select("id").Where("session_id = ?", sessionID)

	var chunks []model.DocumentChunk
	err := r.db.WithContext(ctx).
		Where("document_id IN (?)", docIDs).
		Order("document_id ASC").Order("chunk_index ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("list chunks by session failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) DeleteByDocumentID(ctx context.Context, documentID uint) error {
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by document failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) DeleteByDocumentIDs(ctx context.Context, documentIDs []uint) error {
	if len(documentIDs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Where("document_id IN ?", documentIDs).Delete(&model.DocumentChunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by documents failed: %w", err)
	}
	return nil
}

// Search returns the session's chunks whose cosine similarity to query is at
// least threshold, best first, at most limit rows. Postgres runs the search
// server side through pgvector; other dialects score in process.
func (r *ChunkRepository) Search(ctx context.Context, sessionID string, query []float32, limit int, threshold float64) ([]model.ScoredChunk, error) {
	if limit <= 0 || len(query) == 0 {
		return nil, nil
	}
	if r.db.Dialector.Name() == "postgres" {
		return r.searchPGVector(ctx, sessionID, query, limit, threshold)
	}

	chunks, err := r.ListBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return RankBySimilarity(chunks, query, limit, threshold), nil
}

type scoredRow struct {
	model.DocumentChunk
	Similarity float64
}

func (r *ChunkRepository) searchPGVector(ctx context.Context, sessionID string, query []float32, limit int, threshold float64) ([]model.ScoredChunk, error) {
	vec := pgvector.NewVector(query)

	var rows []scoredRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT c.*, 1 - (c.embedding <=> ?) AS similarity
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.session_id = ? AND 1 - (c.embedding <=> ?) >= ?
		ORDER BY c.embedding <=> ?, c.id
		LIMIT ?`,
		vec, sessionID, vec, threshold, vec, limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search chunks failed: %w", err)
	}

	out := make([]model.ScoredChunk, len(rows))
	for i := range rows {
		out[i] = model.ScoredChunk{Chunk: rows[i].DocumentChunk, Score: rows[i].Similarity}
	}
	return out, nil
}
