package app

import (
	"context"
	"fmt"
	"sort"

	"pdfqa/internal/model"
)

const (
	DefaultTopK      = 5
	DefaultThreshold = 0.3
	DefaultOverfetch = 3
)

// ChunkIndex is the vector search side of chunk storage. Chunk rows are
// always written to the relational store; an index may mirror them.
type ChunkIndex interface {
	Index(ctx context.Context, sessionID string, chunks []model.DocumentChunk) error
	// Search returns at most limit chunks of the session scoring at least
	// threshold, best first.
	Search(ctx context.Context, sessionID string, query []float32, limit int, threshold float64) ([]model.ScoredChunk, error)
	DeleteDocuments(ctx context.Context, sessionID string, documentIDs []uint) error
	DeleteSession(ctx context.Context, sessionID string) error
}

type Retriever struct {
	embedder  *Embedder
	index     ChunkIndex
	threshold float64
	overfetch int
}

func NewRetriever(embedder *Embedder, index ChunkIndex, threshold float64, overfetch int) *Retriever {
	if overfetch < 0 {
		overfetch = DefaultOverfetch
	}
	return &Retriever{
		embedder:  embedder,
		index:     index,
		threshold: threshold,
		overfetch: overfetch,
	}
}

// Search embeds query and returns up to k of the session's chunks. Ranking
// is global; the result keeps chunks of one document together in reading
// order, documents ordered by their best hit.
func (r *Retriever) Search(ctx context.Context, sessionID, query string, k int) ([]model.ScoredChunk, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	vec, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	ranked, err := r.index.Search(ctx, sessionID, vec, k+r.overfetch, r.threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return RegroupByDocument(ranked, k), nil
}

// RegroupByDocument expects ranked best first.
func RegroupByDocument(ranked []model.ScoredChunk, k int) []model.ScoredChunk {
	if len(ranked) == 0 {
		return []model.ScoredChunk{}
	}

	var order []uint
	groups := make(map[uint][]model.ScoredChunk)
	for _, sc := range ranked {
		docID := sc.Chunk.DocumentID
		if _, seen := groups[docID]; !seen {
			order = append(order, docID)
		}
		groups[docID] = append(groups[docID], sc)
	}

	out := make([]model.ScoredChunk, 0, len(ranked))
	for _, docID := range order {
		group := groups[docID]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Chunk.ChunkIndex < group[j].Chunk.ChunkIndex
		})
		out = append(out, group...)
	}
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
