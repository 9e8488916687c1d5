package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"pdfqa/internal/model"
	"pdfqa/internal/repository"
)

type SessionService struct {
	sessions     *repository.SessionRepository
	documents    *repository.DocumentRepository
	chunks       *repository.ChunkRepository
	index        ChunkIndex
	conversation *ConversationStore
	logger       *slog.Logger
}

func NewSessionService(
	sessions *repository.SessionRepository,
	documents *repository.DocumentRepository,
	chunks *repository.ChunkRepository,
	index ChunkIndex,
	conversation *ConversationStore,
	logger *slog.Logger,
) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		sessions:     sessions,
		documents:    documents,
		chunks:       chunks,
		index:        index,
		conversation: conversation,
		logger:       logger,
	}
}

// Resolve returns the session with the given id, minting a new one when id
// is empty or unknown. created reports whether a session was minted.
func (s *SessionService) Resolve(ctx context.Context, id string) (session *model.Session, created bool, err error) {
	id = strings.TrimSpace(id)
	if id != "" {
		existing, err := s.sessions.GetByID(ctx, id)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	session, err = s.create(ctx)
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// Reset deletes the session with everything it owns and mints a new one.
func (s *SessionService) Reset(ctx context.Context, id string) (*model.Session, error) {
	id = strings.TrimSpace(id)
	if id != "" {
		if err := s.purge(ctx, id); err != nil {
			return nil, err
		}
		s.logger.Info("session reset", "session_id", id)
	}
	return s.create(ctx)
}

func (s *SessionService) purge(ctx context.Context, id string) error {
	docIDs, err := s.documents.ListIDsBySessionID(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := s.index.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := s.chunks.DeleteByDocumentIDs(ctx, docIDs); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := s.documents.DeleteBySessionID(ctx, id); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := s.conversation.Clear(ctx, id); err != nil {
		return err
	}
	if err := s.sessions.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

func (s *SessionService) create(ctx context.Context) (*model.Session, error) {
	session := &model.Session{ID: uuid.NewString()}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return session, nil
}
