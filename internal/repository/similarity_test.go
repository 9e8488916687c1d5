package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfqa/internal/model"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

func TestRankBySimilarity(t *testing.T) {
	chunks := []model.DocumentChunk{
		{ID: 1, Embedding: model.Vector{0, 1}},
		{ID: 2, Embedding: model.Vector{1, 0}},
		{ID: 3, Embedding: model.Vector{1, 1}},
		{ID: 4, Embedding: model.Vector{-1, 0}},
	}

	ranked := RankBySimilarity(chunks, []float32{1, 0}, 10, 0.3)
	require.Len(t, ranked, 2)
	assert.Equal(t, uint(2), ranked[0].Chunk.ID)
	assert.Equal(t, uint(3), ranked[1].Chunk.ID)
	for _, r := range ranked {
		assert.GreaterOrEqual(t, r.Score, 0.3)
	}

	ranked = RankBySimilarity(chunks, []float32{1, 0}, 1, -1)
	require.Len(t, ranked, 1)
	assert.Equal(t, uint(2), ranked[0].Chunk.ID)
}
