package vectorindex

import (
	"context"

	"pdfqa/internal/model"
	"pdfqa/internal/repository"
)

// SQL searches the chunk table itself. Chunk rows are written and deleted
// by the document service, so there is nothing to mirror.
type SQL struct {
	chunks *repository.ChunkRepository
}

func NewSQL(chunks *repository.ChunkRepository) *SQL {
	return &SQL{chunks: chunks}
}

func (s *SQL) Index(context.Context, string, []model.DocumentChunk) error { return nil }

func (s *SQL) Search(ctx context.Context, sessionID string, query []float32, limit int, threshold float64) ([]model.ScoredChunk, error) {
	return s.chunks.Search(ctx, sessionID, query, limit, threshold)
}

func (s *SQL) DeleteDocuments(context.Context, string, []uint) error { return nil }

func (s *SQL) DeleteSession(context.Context, string) error { return nil }
