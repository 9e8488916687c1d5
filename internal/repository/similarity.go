package repository

import (
	"math"
	"sort"

	"pdfqa/internal/model"
)

// CosineSimilarity returns 0 for empty or mismatched vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RankBySimilarity scores chunks against query, drops those under threshold
// and returns the best limit, highest score first.
func RankBySimilarity(chunks []model.DocumentChunk, query []float32, limit int, threshold float64) []model.ScoredChunk {
	scored := make([]model.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		score := CosineSimilarity(query, c.Embedding)
		if score < threshold {
			continue
		}
		scored = append(scored, model.ScoredChunk{Chunk: c, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
