package vectorindex

import (
	"context"
	"fmt"
	"slices"

	"github.com/qdrant/go-client/qdrant"

	"pdfqa/internal/model"
)

const upsertBatchSize = 100

// Qdrant mirrors chunk vectors into a collection and searches it with a
// session filter. Point ids are the chunk row ids.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	dimensions int
}

func NewQdrant(client *qdrant.Client, collection string, dimensions int) *Qdrant {
	return &Qdrant{client: client, collection: collection, dimensions: dimensions}
}

// EnsureCollection creates the collection and its payload indexes when missing.
func (q *Qdrant) EnsureCollection(ctx context.Context) error {
	names, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections failed: %w", err)
	}
	if slices.Contains(names, q.collection) {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection failed: %w", err)
	}

	indexes := map[string]qdrant.FieldType{
		"session_id":  qdrant.FieldType_FieldTypeKeyword,
		"document_id": qdrant.FieldType_FieldTypeInteger,
	}
	for field, fieldType := range indexes {
		_, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      field,
			FieldType:      fieldType.Enum(),
		})
		if err != nil {
			return fmt.Errorf("create index for field %s failed: %w", field, err)
		}
	}
	return nil
}

func (q *Qdrant) Index(ctx context.Context, sessionID string, chunks []model.DocumentChunk) error {
	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(chunks))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, c := range chunks[start:end] {
			if q.dimensions > 0 && len(c.Embedding) != q.dimensions {
				return fmt.Errorf("chunk %d has %d dimensions, expected %d", c.ID, len(c.Embedding), q.dimensions)
			}
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(c.ID)),
				Vectors: qdrant.NewVectors(c.Embedding...),
				Payload: qdrant.NewValueMap(chunkPayload(sessionID, c)),
			})
		}
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("upsert points %d-%d failed: %w", start, end, err)
		}
	}
	return nil
}

func (q *Qdrant) Search(ctx context.Context, sessionID string, query []float32, limit int, threshold float64) ([]model.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Filter:         sessionFilter(sessionID),
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: qdrant.PtrOf(float32(threshold)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query points failed: %w", err)
	}

	out := make([]model.ScoredChunk, 0, len(results))
	for _, r := range results {
		out = append(out, model.ScoredChunk{
			Chunk: chunkFromPayload(r.GetId().GetNum(), r.GetPayload()),
			Score: float64(r.GetScore()),
		})
	}
	return out, nil
}

func (q *Qdrant) DeleteDocuments(ctx context.Context, sessionID string, documentIDs []uint) error {
	for _, id := range documentIDs {
		filter := &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("session_id", sessionID),
				qdrant.NewMatchInt("document_id", int64(id)),
			},
		}
		if err := q.deleteByFilter(ctx, filter); err != nil {
			return fmt.Errorf("delete points of document %d failed: %w", id, err)
		}
	}
	return nil
}

func (q *Qdrant) DeleteSession(ctx context.Context, sessionID string) error {
	if err := q.deleteByFilter(ctx, sessionFilter(sessionID)); err != nil {
		return fmt.Errorf("delete points of session failed: %w", err)
	}
	return nil
}

func (q *Qdrant) deleteByFilter(ctx context.Context, filter *qdrant.Filter) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
		Wait:           qdrant.PtrOf(true),
	})
	return err
}

func sessionFilter(sessionID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("session_id", sessionID)},
	}
}

func chunkPayload(sessionID string, c model.DocumentChunk) map[string]any {
	payload := map[string]any{
		"session_id":  sessionID,
		"document_id": int64(c.DocumentID),
		"chunk_index": int64(c.ChunkIndex),
		"content":     c.Content,
	}
	if page, ok := c.Metadata["page"]; ok {
		payload["page"] = page
	}
	return payload
}

func chunkFromPayload(id uint64, payload map[string]*qdrant.Value) model.DocumentChunk {
	c := model.DocumentChunk{
		ID:         uint(id),
		DocumentID: uint(payload["document_id"].GetIntegerValue()),
		ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
		Content:    payload["content"].GetStringValue(),
	}
	if v, ok := payload["page"]; ok {
		c.Metadata = map[string]any{"page": v.GetIntegerValue()}
	}
	return c
}
