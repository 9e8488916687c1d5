package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"pdfqa/internal/model"
	"pdfqa/internal/pkg/pdfextract"
	"pdfqa/internal/repository"
)

const DefaultMaxUploadFiles = 10

// TextExtractor turns a stored PDF into page texts.
type TextExtractor interface {
	Extract(r io.ReaderAt, size int64) ([]pdfextract.Page, error)
}

// PDFExtractor is the ledongthuc/pdf backed extractor.
type PDFExtractor struct{}

func (PDFExtractor) Extract(r io.ReaderAt, size int64) ([]pdfextract.Page, error) {
	return pdfextract.ExtractPagesAt(r, size)
}

// UploadFile is one file of an upload request.
type UploadFile struct {
	Filename string
	Content  io.Reader
}

type FileSummary struct {
	Filename string `json:"filename"`
	Pages    int    `json:"pages"`
	Chunks   int    `json:"chunks"`
}

type UploadResult struct {
	// TotalChunks is the number of chunks stored by the request.
	TotalChunks   int
	IsFirstUpload bool
	Files         []FileSummary
}

type DocumentOptions struct {
	MaxFiles     int
	MaxFileBytes int64
	TempDir      string
}

type DocumentService struct {
	sessions  *repository.SessionRepository
	documents *repository.DocumentRepository
	chunks    *repository.ChunkRepository
	index     ChunkIndex
	extractor TextExtractor
	chunker   *Chunker
	embedder  *Embedder
	opts      DocumentOptions
	logger    *slog.Logger
}

func NewDocumentService(
	sessions *repository.SessionRepository,
	documents *repository.DocumentRepository,
	chunks *repository.ChunkRepository,
	index ChunkIndex,
	extractor TextExtractor,
	chunker *Chunker,
	embedder *Embedder,
	opts DocumentOptions,
	logger *slog.Logger,
) *DocumentService {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxUploadFiles
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if extractor == nil {
		extractor = PDFExtractor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{
		sessions:  sessions,
		documents: documents,
		chunks:    chunks,
		index:     index,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		opts:      opts,
		logger:    logger,
	}
}

// preparedDocument is a file that was extracted, chunked and embedded but
// not stored yet.
type preparedDocument struct {
	filename string
	pages    int
	chunks   []Chunk
	vectors  [][]float32
}

// Upload ingests files in order. Every file is prepared before anything is
// written, so a bad file fails the request without touching storage. A file
// named like an existing document is stored under a pending name and only
// takes the old document's place once the whole request has been stored.
func (s *DocumentService) Upload(ctx context.Context, sessionID string, files []UploadFile) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no PDF files uploaded", ErrInvalidInput)
	}
	if len(files) > s.opts.MaxFiles {
		return nil, fmt.Errorf("%w: at most %d files per upload", ErrInvalidInput, s.opts.MaxFiles)
	}
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		name := uploadName(f.Filename)
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %s is uploaded more than once", ErrInvalidInput, name)
		}
		seen[name] = struct{}{}
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}

	prepared := make([]preparedDocument, 0, len(files))
	for _, f := range files {
		doc, err := s.prepare(ctx, f)
		if err != nil {
			s.logger.Warn("prepare upload failed", "session_id", sessionID, "filename", f.Filename, "error", err)
			return nil, err
		}
		prepared = append(prepared, *doc)
	}

	result := &UploadResult{IsFirstUpload: session.UploadCount == 0}
	stored := make([]storedDocument, 0, len(prepared))
	for _, p := range prepared {
		doc, err := s.store(ctx, sessionID, p)
		if err != nil {
			s.rollback(ctx, sessionID, storedIDs(stored))
			return nil, err
		}
		stored = append(stored, doc)
		result.TotalChunks += len(p.chunks)
		result.Files = append(result.Files, FileSummary{
			Filename: p.filename,
			Pages:    p.pages,
			Chunks:   len(p.chunks),
		})
	}

	if err := s.sessions.IncrementUploadCount(ctx, sessionID, len(prepared)); err != nil {
		s.rollback(ctx, sessionID, storedIDs(stored))
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := s.commit(ctx, sessionID, stored); err != nil {
		return nil, err
	}

	s.logger.Info("documents uploaded",
		"session_id", sessionID,
		"files", len(prepared),
		"chunks", result.TotalChunks,
	)
	return result, nil
}

// uploadName is the stored filename of an upload.
func uploadName(name string) string {
	return filepath.Base(strings.TrimSpace(name))
}

func (s *DocumentService) prepare(ctx context.Context, f UploadFile) (*preparedDocument, error) {
	filename := uploadName(f.Filename)
	if filename == "." || filename == string(filepath.Separator) || !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return nil, fmt.Errorf("%w: %q is not a PDF file", ErrInvalidInput, f.Filename)
	}

	pages, err := s.extract(f)
	if err != nil {
		return nil, err
	}

	texts := make([]PageText, len(pages))
	for i, p := range pages {
		texts[i] = PageText{Page: p.Number, Text: p.Text}
	}
	chunks, err := s.chunker.Split(texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrExtraction, filename, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no content extracted from PDF: %s", ErrExtraction, filename)
	}

	inputs := make([]string, len(chunks))
	for i, c := range chunks {
		inputs[i] = c.Text
	}
	vectors, err := s.embedder.EmbedMany(ctx, inputs)
	if err != nil {
		return nil, err
	}

	return &preparedDocument{
		filename: filename,
		pages:    len(pages),
		chunks:   chunks,
		vectors:  vectors,
	}, nil
}

// extract spools the upload to a temp file, which is always removed.
func (s *DocumentService) extract(f UploadFile) ([]pdfextract.Page, error) {
	tmp, err := os.CreateTemp(s.opts.TempDir, "upload-"+uuid.NewString()+"-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %w", ErrStorage, err)
	}
	defer func() {
		_ = tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove temp file failed", "path", tmp.Name(), "error", err)
		}
	}()

	src := f.Content
	if s.opts.MaxFileBytes > 0 {
		src = io.LimitReader(src, s.opts.MaxFileBytes+1)
	}
	size, err := io.Copy(tmp, src)
	if err != nil {
		return nil, fmt.Errorf("%w: write temp file: %w", ErrStorage, err)
	}
	if s.opts.MaxFileBytes > 0 && size > s.opts.MaxFileBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidInput, f.Filename, s.opts.MaxFileBytes)
	}

	head := make([]byte, 5)
	if n, _ := tmp.ReadAt(head, 0); !pdfextract.LooksLikePDF(head[:n]) {
		return nil, fmt.Errorf("%w: %q is not a PDF file", ErrInvalidInput, f.Filename)
	}

	pages, err := s.extractor.Extract(tmp, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrExtraction, f.Filename, err)
	}
	return pages, nil
}

// storedDocument is a document written by the current request. replaces is
// the id of the same-named document it takes over from, or 0.
type storedDocument struct {
	id       uint
	filename string
	replaces uint
}

func storedIDs(docs []storedDocument) []uint {
	ids := make([]uint, len(docs))
	for i, d := range docs {
		ids[i] = d.id
	}
	return ids
}

const pendingPrefix = ".pending-"

// store writes the document, its chunks and their index entries. When the
// filename is taken the document is written under a pending name.
func (s *DocumentService) store(ctx context.Context, sessionID string, p preparedDocument) (storedDocument, error) {
	existing, err := s.documents.GetBySessionAndFilename(ctx, sessionID, p.filename)
	if err != nil {
		return storedDocument{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	stored := storedDocument{filename: p.filename}
	name := p.filename
	if existing != nil {
		stored.replaces = existing.ID
		name = pendingPrefix + uuid.NewString()
	}

	doc := &model.Document{
		SessionID:  sessionID,
		Filename:   name,
		PageCount:  p.pages,
		ChunkCount: len(p.chunks),
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return storedDocument{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	stored.id = doc.ID

	rows := make([]model.DocumentChunk, len(p.chunks))
	for i, c := range p.chunks {
		rows[i] = model.DocumentChunk{
			DocumentID: doc.ID,
			ChunkIndex: c.Index,
			Content:    c.Text,
			Embedding:  p.vectors[i],
			Metadata: datatypes.JSONMap{
				"source":      p.filename,
				"page":        c.Page,
				"chunkIndex":  c.Index,
				"totalChunks": c.Total,
			},
		}
	}
	if err := s.chunks.CreateBatch(ctx, rows); err != nil {
		s.rollback(ctx, sessionID, []uint{doc.ID})
		return storedDocument{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := s.index.Index(ctx, sessionID, rows); err != nil {
		s.rollback(ctx, sessionID, []uint{doc.ID})
		return storedDocument{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return stored, nil
}

// commit removes the documents replaced by this request and gives their
// names to the pending ones.
func (s *DocumentService) commit(ctx context.Context, sessionID string, stored []storedDocument) error {
	for i, d := range stored {
		if d.replaces == 0 {
			continue
		}
		if err := s.remove(ctx, sessionID, d.replaces); err != nil {
			s.rollback(ctx, sessionID, pendingIDs(stored[i:]))
			return err
		}
		if err := s.documents.Rename(ctx, d.id, d.filename); err != nil {
			s.logger.Error("rename pending document failed", "session_id", sessionID, "document_id", d.id, "error", err)
			return fmt.Errorf("%w: %w", ErrStorage, err)
		}
	}
	return nil
}

func pendingIDs(docs []storedDocument) []uint {
	var ids []uint
	for _, d := range docs {
		if d.replaces != 0 {
			ids = append(ids, d.id)
		}
	}
	return ids
}

func (s *DocumentService) remove(ctx context.Context, sessionID string, docID uint) error {
	if err := s.index.DeleteDocuments(ctx, sessionID, []uint{docID}); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := s.chunks.DeleteByDocumentID(ctx, docID); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := s.documents.DeleteByID(ctx, docID); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

func (s *DocumentService) rollback(ctx context.Context, sessionID string, docIDs []uint) {
	ctx = context.WithoutCancel(ctx)
	for _, id := range docIDs {
		if err := s.remove(ctx, sessionID, id); err != nil {
			s.logger.Error("rollback document failed", "session_id", sessionID, "document_id", id, "error", err)
		}
	}
}

// Delete removes the named document and its chunks from the session.
func (s *DocumentService) Delete(ctx context.Context, sessionID, filename string) error {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	doc, err := s.documents.GetBySessionAndFilename(ctx, sessionID, filename)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if doc == nil {
		return fmt.Errorf("%w: file %s", ErrNotFound, filename)
	}
	if err := s.remove(ctx, sessionID, doc.ID); err != nil {
		return err
	}
	s.logger.Info("document deleted", "session_id", sessionID, "filename", filename)
	return nil
}

// List returns the session's documents. Documents of an upload still in
// progress are left out.
func (s *DocumentService) List(ctx context.Context, sessionID string) ([]model.Document, error) {
	docs, err := s.documents.ListBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	visible := docs[:0]
	for _, d := range docs {
		if !strings.HasPrefix(d.Filename, pendingPrefix) {
			visible = append(visible, d)
		}
	}
	return visible, nil
}
