package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"pdfqa/internal/model"
	"pdfqa/internal/platform/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := database.New(context.Background(), "sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedDocument(t *testing.T, db *gorm.DB, sessionID, filename string, vectors ...model.Vector) *model.Document {
	t.Helper()
	ctx := context.Background()
	doc := &model.Document{SessionID: sessionID, Filename: filename, PageCount: 1, ChunkCount: len(vectors)}
	require.NoError(t, NewDocumentRepository(db).Create(ctx, doc))

	chunks := make([]model.DocumentChunk, len(vectors))
	for i, v := range vectors {
		chunks[i] = model.DocumentChunk{
			DocumentID: doc.ID,
			ChunkIndex: i,
			Content:    filename + " chunk",
			Embedding:  v,
			Metadata:   datatypes.JSONMap{"page": 1, "chunkIndex": i, "totalChunks": len(vectors)},
		}
	}
	require.NoError(t, NewChunkRepository(db).CreateBatch(ctx, chunks))
	return doc
}

func TestSessionRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	got, err := repo.GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.Create(ctx, &model.Session{ID: "s1"}))
	require.NoError(t, repo.IncrementUploadCount(ctx, "s1", 2))

	got, err = repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.UploadCount)

	require.NoError(t, repo.DeleteByID(ctx, "s1"))
	got, err = repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDocumentRepository_UniqueFilenamePerSession(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.Document{SessionID: "a", Filename: "x.pdf"}))
	require.NoError(t, repo.Create(ctx, &model.Document{SessionID: "b", Filename: "x.pdf"}))
	assert.Error(t, repo.Create(ctx, &model.Document{SessionID: "a", Filename: "x.pdf"}))

	count, err := repo.CountBySessionID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	doc, err := repo.GetBySessionAndFilename(ctx, "b", "x.pdf")
	require.NoError(t, err)
	require.NotNil(t, doc)

	doc, err = repo.GetBySessionAndFilename(ctx, "b", "y.pdf")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestChunkRepository_VectorRoundTrip(t *testing.T) {
	db := newTestDB(t)
	doc := seedDocument(t, db, "s", "a.pdf", model.Vector{0.5, -1.25, 3})

	chunks, err := NewChunkRepository(db).ListBySessionID(context.Background(), "s")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, doc.ID, chunks[0].DocumentID)
	assert.Equal(t, model.Vector{0.5, -1.25, 3}, chunks[0].Embedding)
	assert.EqualValues(t, 1, chunks[0].Metadata["page"])
}

func TestChunkRepository_SearchIsSessionScoped(t *testing.T) {
	db := newTestDB(t)
	repo := NewChunkRepository(db)
	ctx := context.Background()

	mine := seedDocument(t, db, "mine", "a.pdf", model.Vector{1, 0}, model.Vector{0, 1})
	seedDocument(t, db, "other", "a.pdf", model.Vector{1, 0})

	results, err := repo.Search(ctx, "mine", []float32{1, 0}, 10, 0.3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, mine.ID, results[0].Chunk.DocumentID)
	assert.Equal(t, 0, results[0].Chunk.ChunkIndex)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)

	results, err = repo.Search(ctx, "nobody", []float32{1, 0}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChunkRepository_DeleteByDocumentIDs(t *testing.T) {
	db := newTestDB(t)
	repo := NewChunkRepository(db)
	ctx := context.Background()

	a := seedDocument(t, db, "s", "a.pdf", model.Vector{1, 0})
	b := seedDocument(t, db, "s", "b.pdf", model.Vector{0, 1})

	require.NoError(t, repo.DeleteByDocumentIDs(ctx, []uint{a.ID}))
	chunks, err := repo.ListBySessionID(ctx, "s")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, b.ID, chunks[0].DocumentID)
}

func TestMessageRepository_ListRecentOldestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	conv, err := NewConversationRepository(db).GetOrCreate(ctx, "s")
	require.NoError(t, err)
	again, err := NewConversationRepository(db).GetOrCreate(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	repo := NewMessageRepository(db)
	for _, content := range []string{"m1", "m2", "m3", "m4"} {
		require.NoError(t, repo.Publish(ctx, model.Message{ConversationID: conv.ID, Role: model.RoleUser, Content: content}))
	}

	recent, err := repo.ListRecentByConversationID(ctx, conv.ID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "m2", recent[0].Content)
	assert.Equal(t, "m4", recent[2].Content)

	require.NoError(t, repo.DeleteByConversationID(ctx, conv.ID))
	recent, err = repo.ListRecentByConversationID(ctx, conv.ID, 3)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
