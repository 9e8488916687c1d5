package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"pdfqa/internal/model"
	"pdfqa/internal/pkg/pdfextract"
	"pdfqa/internal/platform/database"
	"pdfqa/internal/repository"
	"pdfqa/internal/vectorindex"
)

// keywords are the axes of the fake embedding space.
var keywords = []string{"apple", "banana", "cherry", "rocket", "ocean"}

type fakeEmbeddings struct {
	calls atomic.Int32
	// failures makes the first n calls fail.
	failures atomic.Int32
	dims     int
}

func (f *fakeEmbeddings) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return nil, errors.New("embedding service unavailable")
	}
	if f.dims > 0 {
		return make([]float32, f.dims), nil
	}
	return keywordVector(text), nil
}

func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	vec := make([]float32, len(keywords))
	for i, kw := range keywords {
		vec[i] = float32(strings.Count(lower, kw))
	}
	return vec
}

type fakeModel struct {
	mu        sync.Mutex
	prompts   []string
	fragments []string
	// streamErr is yielded after the fragments when set.
	streamErr error
	generated string
	genErrs   atomic.Int32
	genCalls  atomic.Int32
}

func (m *fakeModel) record(prompt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
}

func (m *fakeModel) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

func (m *fakeModel) Generate(_ context.Context, prompt string) (string, error) {
	m.genCalls.Add(1)
	if m.genErrs.Add(-1) >= 0 {
		return "", errors.New("model overloaded")
	}
	return m.generated, nil
}

func (m *fakeModel) Stream(_ context.Context, prompt string) iter.Seq2[string, error] {
	m.record(prompt)
	return func(yield func(string, error) bool) {
		for _, f := range m.fragments {
			if !yield(f, nil) {
				return
			}
		}
		if m.streamErr != nil {
			yield("", m.streamErr)
		}
	}
}

// flakyIndex fails the failOn-th Index call, counting from 1.
type flakyIndex struct {
	ChunkIndex
	calls  atomic.Int32
	failOn int32
}

func (f *flakyIndex) Index(ctx context.Context, sessionID string, chunks []model.DocumentChunk) error {
	if f.calls.Add(1) == f.failOn {
		return errors.New("index down")
	}
	return f.ChunkIndex.Index(ctx, sessionID, chunks)
}

// fakeExtractor treats form feeds as page breaks after the %PDF- marker.
type fakeExtractor struct{}

func (fakeExtractor) Extract(r io.ReaderAt, size int64) ([]pdfextract.Page, error) {
	raw, err := io.ReadAll(io.NewSectionReader(r, 0, size))
	if err != nil {
		return nil, err
	}
	body := strings.TrimPrefix(string(raw), "%PDF-")
	var pages []pdfextract.Page
	for i, text := range strings.Split(body, "\f") {
		pages = append(pages, pdfextract.Page{Number: i + 1, Text: text})
	}
	return pages, nil
}

type harness struct {
	db           *gorm.DB
	sessions     *SessionService
	documents    *DocumentService
	answers      *AnswerService
	conversation *ConversationStore
	embeddings   *fakeEmbeddings
	model        *fakeModel
	tempDir      string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithIndex(t, nil)
}

// newHarnessWithIndex lets wrap decorate the SQL chunk index.
func newHarnessWithIndex(t *testing.T, wrap func(ChunkIndex) ChunkIndex) *harness {
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

	h := &harness{
		db:         db,
		embeddings: &fakeEmbeddings{},
		model:      &fakeModel{generated: "generated answer"},
		tempDir:    t.TempDir(),
	}

	sessionRepo := repository.NewSessionRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	var index ChunkIndex = vectorindex.NewSQL(chunkRepo)
	if wrap != nil {
		index = wrap(index)
	}
	retry := ConstantRetry(3, 0)

	embedder := NewEmbedder(h.embeddings, EmbedderOptions{BatchSize: 2, Retry: retry}, nil)
	h.conversation = NewConversationStore(
		repository.NewConversationRepository(db),
		repository.NewMessageRepository(db),
		nil, nil, nil,
	)
	h.sessions = NewSessionService(sessionRepo, documentRepo, chunkRepo, index, h.conversation, nil)
	h.documents = NewDocumentService(
		sessionRepo, documentRepo, chunkRepo, index,
		fakeExtractor{},
		NewChunker(DefaultChunkSize, DefaultChunkOverlap),
		embedder,
		DocumentOptions{MaxFiles: 3, MaxFileBytes: 1 << 20, TempDir: h.tempDir},
		nil,
	)
	h.answers = NewAnswerService(
		sessionRepo, documentRepo,
		NewRetriever(embedder, index, DefaultThreshold, DefaultOverfetch),
		h.conversation,
		h.model,
		AnswerOptions{Retry: retry},
		nil,
	)
	return h
}

func (h *harness) newSession(t *testing.T) string {
	t.Helper()
	s, created, err := h.sessions.Resolve(context.Background(), "")
	require.NoError(t, err)
	require.True(t, created)
	return s.ID
}

func (h *harness) ask(t *testing.T, sessionID, question string) (string, error) {
	t.Helper()
	seq, err := h.answers.Answer(context.Background(), sessionID, question)
	if err != nil {
		return "", err
	}
	return collect(seq)
}

func (h *harness) session(t *testing.T, id string) *model.Session {
	t.Helper()
	s, err := repository.NewSessionRepository(h.db).GetByID(context.Background(), id)
	require.NoError(t, err)
	return s
}

func pdfFile(name string, pages ...string) UploadFile {
	return UploadFile{
		Filename: name,
		Content:  bytes.NewReader([]byte("%PDF-" + strings.Join(pages, "\f"))),
	}
}

func collect(seq iter.Seq2[string, error]) (string, error) {
	var b strings.Builder
	for fragment, err := range seq {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(fragment)
	}
	return b.String(), nil
}
