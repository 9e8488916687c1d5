package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"pdfqa/internal/app"
	"pdfqa/internal/transport/http/middleware"
	"pdfqa/internal/transport/http/response"
)

type SessionHandler struct {
	sessions *app.SessionService
	carrier  *middleware.SessionCarrier
	logger   *slog.Logger
}

func NewSessionHandler(sessions *app.SessionService, carrier *middleware.SessionCarrier, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, carrier: carrier, logger: logger}
}

func (h *SessionHandler) Reset(c *gin.Context) {
	oldID := middleware.SessionID(c)
	session, err := h.sessions.Reset(c.Request.Context(), oldID)
	if err != nil {
		h.logger.Error("reset session failed", "session_id", oldID, "error", err)
		writeServiceError(c, err, "Error resetting session")
		return
	}
	if err := h.carrier.Write(c, session.ID); err != nil {
		response.Error(c, http.StatusInternalServerError, "Error resetting session")
		return
	}
	response.OK(c, gin.H{
		"message":   "Session reset successfully",
		"sessionId": session.ID,
	})
}
