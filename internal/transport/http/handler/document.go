package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pdfqa/internal/app"
	"pdfqa/internal/transport/http/middleware"
	"pdfqa/internal/transport/http/response"
)

const uploadField = "pdf"

type DocumentHandler struct {
	documents    *app.DocumentService
	maxFiles     int
	maxFileBytes int64
	logger       *slog.Logger
}

type UploadResponse struct {
	Message       string            `json:"message"`
	Pages         int               `json:"pages"`
	SessionID     string            `json:"sessionId"`
	IsFirstUpload bool              `json:"isFirstUpload"`
	Files         []app.FileSummary `json:"files"`
}

type DeleteDocumentRequest struct {
	Filename string `json:"filename"`
}

func NewDocumentHandler(documents *app.DocumentService, maxFiles int, maxFileBytes int64, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents:    documents,
		maxFiles:     maxFiles,
		maxFileBytes: maxFileBytes,
		logger:       logger,
	}
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	if h.maxFileBytes > 0 && h.maxFiles > 0 {
		limit := int64(h.maxFiles)*h.maxFileBytes + 1<<20
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		response.Error(c, http.StatusBadRequest, "No PDF files uploaded")
		return
	}
	defer func() { _ = form.RemoveAll() }()

	headers := form.File[uploadField]
	if len(headers) == 0 {
		response.Error(c, http.StatusBadRequest, "No PDF files uploaded")
		return
	}
	if h.maxFiles > 0 && len(headers) > h.maxFiles {
		response.Error(c, http.StatusBadRequest, "Too many files")
		return
	}

	files, closeAll, err := openUploads(headers)
	defer closeAll()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	result, err := h.documents.Upload(c.Request.Context(), sessionID, files)
	if err != nil {
		h.logger.Error("upload failed", "session_id", sessionID, "error", err)
		writeServiceError(c, err, "Error processing PDF")
		return
	}

	response.OK(c, UploadResponse{
		Message:       "PDFs processed successfully",
		Pages:         result.TotalChunks,
		SessionID:     sessionID,
		IsFirstUpload: result.IsFirstUpload,
		Files:         result.Files,
	})
}

func openUploads(headers []*multipart.FileHeader) ([]app.UploadFile, func(), error) {
	var closers []io.Closer
	closeAll := func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}
	files := make([]app.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, f)
		files = append(files, app.UploadFile{Filename: fh.Filename, Content: f})
	}
	return files, closeAll, nil
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	var req DeleteDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Filename) == "" {
		response.Error(c, http.StatusBadRequest, "Filename is required")
		return
	}
	filename := strings.TrimSpace(req.Filename)

	if err := h.documents.Delete(c.Request.Context(), middleware.SessionID(c), filename); err != nil {
		writeServiceError(c, err, "Error deleting file")
		return
	}
	response.OK(c, gin.H{"message": filename + " deleted successfully"})
}

func (h *DocumentHandler) List(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	docs, err := h.documents.List(c.Request.Context(), sessionID)
	if err != nil {
		writeServiceError(c, err, "Error listing documents")
		return
	}

	items := make([]app.FileSummary, len(docs))
	for i, d := range docs {
		items[i] = app.FileSummary{Filename: d.Filename, Pages: d.PageCount, Chunks: d.ChunkCount}
	}
	response.OK(c, gin.H{"sessionId": sessionID, "documents": items})
}
