package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"pdfqa/internal/config"
)

// New creates a gRPC client and waits for the server to report healthy.
func New(ctx context.Context, cfg config.VectorStoreConfig) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client failed: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 20 * time.Second

	err = backoff.Retry(func() error {
		return Health(ctx, client)
	}, backoff.WithContext(b, ctx))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant unreachable: %w", err)
	}
	return client, nil
}

func Health(ctx context.Context, client *qdrant.Client) error {
	result, err := client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}
