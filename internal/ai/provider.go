package ai

import (
	"context"
	"fmt"
	"iter"
	"time"

	"pdfqa/internal/config"
)

// Provider is a hosted model that can embed text and generate answers.
type Provider interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
	Generate(ctx context.Context, prompt string) (string, error)
	// Stream yields answer fragments in order. A non-nil error is yielded at
	// most once and ends the sequence.
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

func New(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			BaseURL:        cfg.BaseURL,
			APIKey:         cfg.APIKey,
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
			Timeout:        timeout,
		})
	case "gemini":
		return NewGeminiProvider(ctx, GeminiConfig{
			BaseURL:        cfg.BaseURL,
			APIKey:         cfg.APIKey,
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
			Timeout:        timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
