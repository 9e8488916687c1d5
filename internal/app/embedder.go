package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultEmbeddingBatchSize = 10
	DefaultEmbeddingMaxChars  = 2048
	DefaultRetryAttempts      = 3
	DefaultRetryDelay         = time.Second
)

// EmbeddingModel is the hosted model that turns text into a vector.
type EmbeddingModel interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RetryPolicy builds a fresh backoff for every retried call.
type RetryPolicy func() backoff.BackOff

// ConstantRetry allows attempts tries in total with a fixed delay between them.
func ConstantRetry(attempts int, delay time.Duration) RetryPolicy {
	if attempts < 1 {
		attempts = 1
	}
	return func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1))
	}
}

type EmbedderOptions struct {
	BatchSize int
	MaxChars  int
	// Dimensions, when positive, is enforced on every returned vector.
	Dimensions int
	Retry      RetryPolicy
}

type Embedder struct {
	model      EmbeddingModel
	batchSize  int
	maxChars   int
	dimensions int
	retry      RetryPolicy
	logger     *slog.Logger
}

func NewEmbedder(model EmbeddingModel, opts EmbedderOptions, logger *slog.Logger) *Embedder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultEmbeddingBatchSize
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultEmbeddingMaxChars
	}
	if opts.Retry == nil {
		opts.Retry = ConstantRetry(DefaultRetryAttempts, DefaultRetryDelay)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		model:      model,
		batchSize:  opts.BatchSize,
		maxChars:   opts.MaxChars,
		dimensions: opts.Dimensions,
		retry:      opts.Retry,
		logger:     logger,
	}
}

// PrepareText flattens newlines, trims and truncates to maxChars runes.
func PrepareText(text string, maxChars int) string {
	text = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)
	text = strings.TrimSpace(text)
	if maxChars > 0 {
		runes := []rune(text)
		if len(runes) > maxChars {
			text = string(runes[:maxChars])
		}
	}
	return text
}

func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	input := PrepareText(text, e.maxChars)
	if input == "" {
		return nil, fmt.Errorf("%w: empty embedding input", ErrInvalidInput)
	}

	var vec []float32
	op := func() error {
		v, err := e.model.Embed(ctx, input)
		if err != nil {
			return err
		}
		if e.dimensions > 0 && len(v) != e.dimensions {
			return backoff.Permanent(fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), e.dimensions))
		}
		vec = v
		return nil
	}
	notify := func(err error, wait time.Duration) {
		e.logger.Warn("retrying embedding", "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(e.retry(), ctx), notify); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	return vec, nil
}

// EmbedMany embeds texts in order. Items of one batch run concurrently and
// batches run one after another; any failed item fails the whole call.
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				vec, err := e.EmbedOne(gctx, texts[i])
				if err != nil {
					return err
				}
				out[i] = vec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
	}
	return out, nil
}
