package bootstrap

import (
	"log/slog"

	"gorm.io/gorm"

	"pdfqa/internal/app"
	"pdfqa/internal/config"
	"pdfqa/internal/repository"
	"pdfqa/internal/vectorindex"
)

type Services struct {
	Sessions     *app.SessionService
	Documents    *app.DocumentService
	Answers      *app.AnswerService
	Conversation *app.ConversationStore
}

// Dependencies are the pluggable collaborators of the services. Nil fields
// fall back to the SQL chunk index, synchronous message writes, no history
// cache, the PDF extractor and the configured retry policy.
type Dependencies struct {
	Embeddings app.EmbeddingModel
	Generator  app.GenerativeModel
	Index      app.ChunkIndex
	Sink       app.MessageSink
	Cache      app.HistoryCache
	Extractor  app.TextExtractor
	Retry      app.RetryPolicy
	Logger     *slog.Logger
}

func NewServices(cfg *config.Config, db *gorm.DB, deps Dependencies) *Services {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retry := deps.Retry
	if retry == nil {
		retry = app.ConstantRetry(cfg.Embedding.MaxAttempts, cfg.RetryDelay())
	}

	sessionRepo := repository.NewSessionRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	index := deps.Index
	if index == nil {
		index = vectorindex.NewSQL(chunkRepo)
	}

	embedder := app.NewEmbedder(deps.Embeddings, app.EmbedderOptions{
		BatchSize:  cfg.Embedding.BatchSize,
		MaxChars:   cfg.Embedding.MaxChars,
		Dimensions: cfg.Embedding.Dimensions,
		Retry:      retry,
	}, logger.With("component", "embedder"))
	retriever := app.NewRetriever(embedder, index, cfg.Retrieval.Threshold, cfg.Retrieval.Overfetch)
	conversation := app.NewConversationStore(conversationRepo, messageRepo, deps.Sink, deps.Cache, logger.With("component", "conversation"))

	return &Services{
		Sessions: app.NewSessionService(sessionRepo, documentRepo, chunkRepo, index, conversation, logger.With("component", "sessions")),
		Documents: app.NewDocumentService(
			sessionRepo,
			documentRepo,
			chunkRepo,
			index,
			deps.Extractor,
			app.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap),
			embedder,
			app.DocumentOptions{
				MaxFiles:     cfg.Upload.MaxFiles,
				MaxFileBytes: cfg.MaxUploadBytes(),
				TempDir:      cfg.Upload.TempDir,
			},
			logger.With("component", "documents"),
		),
		Answers: app.NewAnswerService(
			sessionRepo,
			documentRepo,
			retriever,
			conversation,
			deps.Generator,
			app.AnswerOptions{
				TopK:         cfg.Retrieval.TopK,
				HistoryLimit: cfg.Conversation.HistoryLimit,
				Retry:        retry,
			},
			logger.With("component", "answers"),
		),
		Conversation: conversation,
	}
}
