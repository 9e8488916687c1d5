package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfqa/internal/repository"
)

func TestSessionService_Resolve(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, created, err := h.sessions.Resolve(ctx, "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, first.ID, 36)

	same, created, err := h.sessions.Resolve(ctx, " "+first.ID+" ")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, same.ID)

	unknown, created, err := h.sessions.Resolve(ctx, "not-a-session")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, "not-a-session", unknown.ID)
}

func TestSessionService_Reset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sid := h.newSession(t)
	h.model.fragments = []string{"answer"}

	_, err := h.documents.Upload(ctx, sid, []UploadFile{pdfFile("fruit.pdf", "Apples grow in the orchard.")})
	require.NoError(t, err)
	_, err = h.ask(t, sid, "Where do apples grow?")
	require.NoError(t, err)

	fresh, err := h.sessions.Reset(ctx, sid)
	require.NoError(t, err)
	assert.NotEqual(t, sid, fresh.ID)
	assert.Equal(t, 0, fresh.UploadCount)

	assert.Nil(t, h.session(t, sid))
	docs, err := h.documents.List(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, docs)
	chunks, err := repository.NewChunkRepository(h.db).ListBySessionID(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	msgs, err := h.conversation.Recent(ctx, sid, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, created, err := h.sessions.Resolve(ctx, sid)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestSessionService_ResetWithoutSession(t *testing.T) {
	h := newHarness(t)

	fresh, err := h.sessions.Reset(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.ID)
	assert.NotNil(t, h.session(t, fresh.ID))
}
