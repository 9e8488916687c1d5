package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfqa/internal/model"
)

func scored(docID uint, index int, score float64) model.ScoredChunk {
	return model.ScoredChunk{
		Chunk: model.DocumentChunk{DocumentID: docID, ChunkIndex: index},
		Score: score,
	}
}

func TestRegroupByDocument(t *testing.T) {
	ranked := []model.ScoredChunk{
		scored(2, 3, 0.9),
		scored(1, 0, 0.8),
		scored(2, 1, 0.7),
		scored(1, 2, 0.6),
	}

	got := RegroupByDocument(ranked, 3)

	want := []model.ScoredChunk{scored(2, 1, 0.7), scored(2, 3, 0.9), scored(1, 0, 0.8)}
	assert.Equal(t, want, got)
}

func TestRegroupByDocument_Empty(t *testing.T) {
	got := RegroupByDocument(nil, 5)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

// recordingIndex returns hits for every Search and remembers its arguments.
type recordingIndex struct {
	hits      []model.ScoredChunk
	err       error
	sessionID string
	limit     int
	threshold float64
}

func (r *recordingIndex) Index(context.Context, string, []model.DocumentChunk) error { return nil }

func (r *recordingIndex) Search(_ context.Context, sessionID string, _ []float32, limit int, threshold float64) ([]model.ScoredChunk, error) {
	r.sessionID = sessionID
	r.limit = limit
	r.threshold = threshold
	return r.hits, r.err
}

func (r *recordingIndex) DeleteDocuments(context.Context, string, []uint) error { return nil }

func (r *recordingIndex) DeleteSession(context.Context, string) error { return nil }

func newTestRetriever(index ChunkIndex) *Retriever {
	embedder := NewEmbedder(&fakeEmbeddings{}, EmbedderOptions{Retry: ConstantRetry(1, 0)}, nil)
	return NewRetriever(embedder, index, 0.42, 3)
}

func TestRetriever_Search(t *testing.T) {
	index := &recordingIndex{hits: []model.ScoredChunk{
		scored(1, 4, 0.95),
		scored(2, 0, 0.9),
		scored(1, 1, 0.85),
		scored(2, 2, 0.8),
		scored(1, 2, 0.7),
		scored(2, 5, 0.6),
	}}

	got, err := newTestRetriever(index).Search(context.Background(), "s1", "apple", 4)
	require.NoError(t, err)

	assert.Equal(t, "s1", index.sessionID)
	assert.Equal(t, 7, index.limit)
	assert.InDelta(t, 0.42, index.threshold, 1e-9)
	want := []model.ScoredChunk{
		scored(1, 1, 0.85),
		scored(1, 2, 0.7),
		scored(1, 4, 0.95),
		scored(2, 0, 0.9),
	}
	assert.Equal(t, want, got)
}

func TestRetriever_SearchDefaultsTopK(t *testing.T) {
	index := &recordingIndex{}

	got, err := newTestRetriever(index).Search(context.Background(), "s1", "apple", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK+3, index.limit)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRetriever_SearchWrapsIndexErrors(t *testing.T) {
	index := &recordingIndex{err: errors.New("connection refused")}

	_, err := newTestRetriever(index).Search(context.Background(), "s1", "apple", 2)
	require.ErrorIs(t, err, ErrStorage)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRetriever_SearchEmbeddingFailure(t *testing.T) {
	f := &fakeEmbeddings{}
	f.failures.Store(1)
	index := &recordingIndex{}
	embedder := NewEmbedder(f, EmbedderOptions{Retry: ConstantRetry(1, 0)}, nil)

	_, err := NewRetriever(embedder, index, DefaultThreshold, DefaultOverfetch).Search(context.Background(), "s1", "apple", 2)
	require.ErrorIs(t, err, ErrEmbedding)
	assert.Zero(t, index.limit)
}
