package response

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const ContentTypeNDJSON = "application/x-ndjson"

type ErrorBody struct {
	Error string `json:"error"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Error(c *gin.Context, httpStatus int, message string) {
	c.AbortWithStatusJSON(httpStatus, ErrorBody{Error: message})
}

// NDJSON streams one JSON object per line, flushing after each line.
type NDJSON struct {
	w       gin.ResponseWriter
	flusher http.Flusher
	started bool
}

func NewNDJSON(c *gin.Context) (*NDJSON, error) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &NDJSON{w: c.Writer, flusher: flusher}, nil
}

type streamChunk struct {
	Chunk string `json:"chunk"`
}

func (n *NDJSON) WriteChunk(text string) error {
	return n.write(streamChunk{Chunk: text})
}

// Started reports whether the status line has been sent.
func (n *NDJSON) Started() bool {
	return n.started
}

func (n *NDJSON) write(v interface{}) error {
	if !n.started {
		n.w.Header().Set("Content-Type", ContentTypeNDJSON)
		n.w.Header().Set("Cache-Control", "no-cache")
		n.w.Header().Set("X-Accel-Buffering", "no")
		n.w.WriteHeader(http.StatusOK)
		n.started = true
	}
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := n.w.Write(line); err != nil {
		return err
	}
	n.flusher.Flush()
	return nil
}
