package app

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/cenkalti/backoff/v4"

	"pdfqa/internal/model"
	"pdfqa/internal/repository"
)

const emptyAnswer = "The model returned an empty response."

// GenerativeModel produces answers for a prompt.
type GenerativeModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

type AnswerOptions struct {
	TopK         int
	HistoryLimit int
	Retry        RetryPolicy
}

type AnswerService struct {
	sessions     *repository.SessionRepository
	documents    *repository.DocumentRepository
	retriever    *Retriever
	conversation *ConversationStore
	model        GenerativeModel
	topK         int
	historyLimit int
	retry        RetryPolicy
	locks        *sessionLocks
	logger       *slog.Logger
}

func NewAnswerService(
	sessions *repository.SessionRepository,
	documents *repository.DocumentRepository,
	retriever *Retriever,
	conversation *ConversationStore,
	model GenerativeModel,
	opts AnswerOptions,
	logger *slog.Logger,
) *AnswerService {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Retry == nil {
		opts.Retry = ConstantRetry(DefaultRetryAttempts, DefaultRetryDelay)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerService{
		sessions:     sessions,
		documents:    documents,
		retriever:    retriever,
		conversation: conversation,
		model:        model,
		topK:         opts.TopK,
		historyLimit: opts.HistoryLimit,
		retry:        opts.Retry,
		locks:        newSessionLocks(),
		logger:       logger,
	}
}

// Answer prepares the prompt for question and returns the answer as a lazy
// sequence of fragments. Failures before the first fragment are returned
// directly; later ones are yielded once and end the sequence. The sequence
// can be ranged over once. Question and answer are stored after the last
// fragment has been delivered.
//
// Answers on one session are serialized until the sequence finishes or
// ctx is done.
func (s *AnswerService) Answer(ctx context.Context, sessionID, question string) (iter.Seq2[string, error], error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}

	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, unlock)
	release := func() {
		stop()
		unlock()
	}

	prompt, err := s.prepare(ctx, sessionID, question)
	if err != nil {
		release()
		return nil, err
	}

	var consumed atomic.Bool
	return func(yield func(string, error) bool) {
		if consumed.Swap(true) {
			yield("", ErrStreamConsumed)
			return
		}
		defer release()

		answer, ok := s.stream(ctx, prompt, yield)
		if !ok {
			return
		}

		s.logger.Debug("answer completed", "session_id", sessionID, "chars", len(answer))
		// History is written even if the client went away after the last fragment.
		persistCtx := context.WithoutCancel(ctx)
		if err := s.conversation.Append(persistCtx, sessionID, model.RoleUser, question); err != nil {
			s.logger.Error("store question failed", "session_id", sessionID, "error", err)
			yield("", err)
			return
		}
		if err := s.conversation.Append(persistCtx, sessionID, model.RoleAssistant, answer); err != nil {
			s.logger.Error("store answer failed", "session_id", sessionID, "error", err)
			yield("", err)
		}
	}, nil
}

func (s *AnswerService) prepare(ctx context.Context, sessionID, question string) (string, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}
	docCount, err := s.documents.CountBySessionID(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if docCount == 0 && session != nil && session.UploadCount > 0 {
		return "", ErrNoDocuments
	}

	var chunks []model.ScoredChunk
	if docCount > 0 {
		chunks, err = s.retriever.Search(ctx, sessionID, question, s.topK)
		if err != nil {
			return "", err
		}
	}
	s.logger.Debug("context retrieved", "session_id", sessionID, "documents", docCount, "chunks", len(chunks))

	history, err := s.conversation.Recent(ctx, sessionID, s.historyLimit)
	if err != nil {
		return "", err
	}
	return BuildPrompt(question, chunks, history), nil
}

// stream forwards fragments to yield and returns the full answer. ok is
// false when the consumer stopped or an error was yielded.
func (s *AnswerService) stream(ctx context.Context, prompt string, yield func(string, error) bool) (answer string, ok bool) {
	var full strings.Builder
	var streamErr error
	for fragment, err := range s.model.Stream(ctx, prompt) {
		if err != nil {
			streamErr = err
			break
		}
		if fragment == "" {
			continue
		}
		full.WriteString(fragment)
		if !yield(fragment, nil) {
			return "", false
		}
	}

	if full.Len() > 0 {
		if streamErr != nil {
			s.logger.Warn("answer stream interrupted", "error", streamErr)
			yield("", fmt.Errorf("%w: %w", ErrGeneration, streamErr))
			return "", false
		}
		return full.String(), true
	}

	if streamErr != nil {
		s.logger.Warn("answer stream failed, falling back to generate", "error", streamErr)
	}
	text, err := s.generate(ctx, prompt)
	if err != nil {
		yield("", err)
		return "", false
	}
	if strings.TrimSpace(text) == "" {
		text = emptyAnswer
	}
	if !yield(text, nil) {
		return "", false
	}
	return text, true
}

func (s *AnswerService) generate(ctx context.Context, prompt string) (string, error) {
	var text string
	op := func() error {
		out, err := s.model.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		text = out
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(s.retry(), ctx)); err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return text, nil
}

const promptPreamble = "You are a helpful assistant answering questions about the user's uploaded PDF documents. " +
	"Use the context when it is relevant and say so when it does not contain the answer. Do not make up facts."

const noContextNote = "No context is available from the uploaded documents for this question. " +
	"Answer from general knowledge and mention that the documents did not cover it."

// BuildPrompt assembles the preamble, retrieved context (or the no-context
// note), recent history and the question.
func BuildPrompt(question string, chunks []model.ScoredChunk, history []model.Message) string {
	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\n")

	if len(chunks) == 0 {
		b.WriteString(noContextNote)
	} else {
		b.WriteString("Context:\n")
		for i, c := range chunks {
			if i > 0 {
				b.WriteString("\n---\n")
			}
			b.WriteString(strings.TrimSpace(c.Chunk.Content))
		}
	}
	b.WriteString("\n\n")

	if len(history) > 0 {
		b.WriteString("Conversation history:\n")
		b.WriteString(FormatHistory(history))
		b.WriteString("\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
