package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pdfqa/internal/app"
	"pdfqa/internal/transport/http/middleware"
	"pdfqa/internal/transport/http/response"
)

const (
	defaultHistoryPage = 20
	maxHistoryPage     = 100
)

type AskHandler struct {
	answers      *app.AnswerService
	conversation *app.ConversationStore
	logger       *slog.Logger
}

type AskRequest struct {
	Question string `json:"question"`
}

type historyMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewAskHandler(answers *app.AnswerService, conversation *app.ConversationStore, logger *slog.Logger) *AskHandler {
	return &AskHandler{answers: answers, conversation: conversation, logger: logger}
}

// Ask streams the answer as NDJSON {"chunk": ...} lines. Errors after the
// first line end the stream without a terminator.
func (h *AskHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		response.Error(c, http.StatusBadRequest, "Question is required")
		return
	}
	sessionID := middleware.SessionID(c)

	fragments, err := h.answers.Answer(c.Request.Context(), sessionID, req.Question)
	if err != nil {
		h.logger.Warn("answer rejected", "session_id", sessionID, "error", err)
		writeServiceError(c, err, "Error processing question")
		return
	}

	out, err := response.NewNDJSON(c)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	for fragment, err := range fragments {
		if err != nil {
			h.logger.Error("answer stream failed", "session_id", sessionID, "error", err)
			if !out.Started() {
				writeServiceError(c, err, "Error processing question")
			}
			return
		}
		if err := out.WriteChunk(fragment); err != nil {
			h.logger.Warn("client write failed", "session_id", sessionID, "error", err)
			return
		}
	}
}

func (h *AskHandler) History(c *gin.Context) {
	limit := defaultHistoryPage
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.Error(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxHistoryPage)
	}

	sessionID := middleware.SessionID(c)
	messages, err := h.conversation.Recent(c.Request.Context(), sessionID, limit)
	if err != nil {
		writeServiceError(c, err, "Error loading history")
		return
	}

	items := make([]historyMessage, len(messages))
	for i, m := range messages {
		items[i] = historyMessage{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
	}
	response.OK(c, gin.H{"sessionId": sessionID, "messages": items})
}
