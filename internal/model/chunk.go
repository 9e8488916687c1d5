package model

import (
	"time"

	"gorm.io/datatypes"
)

// DocumentChunk stores a slice of a document's text and its embedding.
// ChunkIndex is unique and contiguous within a document.
type DocumentChunk struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	DocumentID uint              `gorm:"not null;index;uniqueIndex:idx_chunks_document_ordinal" json:"document_id"`
	ChunkIndex int               `gorm:"not null;uniqueIndex:idx_chunks_document_ordinal" json:"chunk_index"`
	Content    string            `gorm:"type:text;not null" json:"content"`
	Embedding  Vector            `json:"-"`
	Metadata   datatypes.JSONMap `json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ScoredChunk is a chunk paired with its similarity to a query.
type ScoredChunk struct {
	Chunk DocumentChunk
	Score float64
}
