package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfqa/internal/config"
)

func newOpenAITestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "embed-model", body["model"])
		assert.Equal(t, "hello world", body["input"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"embed-model",
			"data":[{"object":"embedding","index":0,"embedding":[0.25,-0.5,1]}],
			"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "chat-model", body["model"])

		if stream, _ := body["stream"].(bool); stream {
			w.Header().Set("Content-Type", "text/event-stream")
			for _, part := range []string{"Hel", "lo"} {
				fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"chat-model\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q},\"finish_reason\":null}]}\n\n", part)
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"chat-model",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Hello"}}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestOpenAIProvider(t *testing.T, baseURL string) *OpenAIProvider {
	t.Helper()
	p, err := NewOpenAIProvider(OpenAIConfig{
		BaseURL:        baseURL + "/v1/",
		APIKey:         "test-key",
		Model:          "chat-model",
		EmbeddingModel: "embed-model",
	})
	require.NoError(t, err)
	return p
}

func TestOpenAIProvider_Embed(t *testing.T) {
	srv := newOpenAITestServer(t)
	p := newTestOpenAIProvider(t, srv.URL)

	vec, err := p.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 1}, vec)
}

func TestOpenAIProvider_Generate(t *testing.T) {
	srv := newOpenAITestServer(t)
	p := newTestOpenAIProvider(t, srv.URL)

	text, err := p.Generate(context.Background(), "say hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
}

func TestOpenAIProvider_Stream(t *testing.T) {
	srv := newOpenAITestServer(t)
	p := newTestOpenAIProvider(t, srv.URL)

	var parts []string
	for part, err := range p.Stream(context.Background(), "say hello") {
		require.NoError(t, err)
		parts = append(parts, part)
	}
	assert.Equal(t, []string{"Hel", "lo"}, parts)
}

func TestOpenAIProvider_EmbedHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	t.Cleanup(srv.Close)
	p := newTestOpenAIProvider(t, srv.URL)

	_, err := p.Embed(context.Background(), "hello world")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "openai embedding request failed"))
}

func TestNew_RejectsUnknownProviderAndMissingKey(t *testing.T) {
	_, err := New(context.Background(), config.LLMConfig{Provider: "llama"})
	assert.Error(t, err)

	_, err = NewOpenAIProvider(OpenAIConfig{Model: "m", EmbeddingModel: "e"})
	assert.Error(t, err)

	_, err = NewGeminiProvider(context.Background(), GeminiConfig{Model: "m", EmbeddingModel: "e"})
	assert.Error(t, err)
}
