package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pdfqa/internal/app"
	"pdfqa/internal/transport/http/response"
)

// writeServiceError maps service errors to status codes. Validation
// messages are shown to the client; internal causes are not.
func writeServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, app.ErrNoDocuments):
		response.Error(c, http.StatusBadRequest, "Please upload a PDF first")
	case errors.Is(err, app.ErrNotFound):
		response.Error(c, http.StatusNotFound, "File not found")
	default:
		response.Error(c, http.StatusInternalServerError, fallback)
	}
}

func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), app.ErrInvalidInput.Error()+": ")
	if msg == "" {
		return "invalid request"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
