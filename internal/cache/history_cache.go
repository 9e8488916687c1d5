package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"pdfqa/internal/model"
)

// HistoryCache keeps the recent turns of a conversation in redis. A dirty
// marker is set on every append so readers go to the database until the
// write has had time to land (writes may be asynchronous).
type HistoryCache struct {
	client         *redisv9.Client
	historyTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewHistoryCache(client *redisv9.Client, historyTTL, dirtyMarkerTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &HistoryCache{
		client:         client,
		historyTTL:     historyTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

// Get returns the cached history and whether it was usable. A dirty
// conversation always reports a miss.
func (c *HistoryCache) Get(ctx context.Context, conversationID uint, limit int) ([]model.Message, bool, error) {
	pipe := c.client.Pipeline()
	dirty := pipe.Exists(ctx, c.dirtyKey(conversationID))
	history := pipe.Get(ctx, c.historyKey(conversationID, limit))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redisv9.Nil) {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}
	if dirty.Val() > 0 {
		return nil, false, nil
	}

	raw, err := history.Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var messages []model.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return messages, true, nil
}

func (c *HistoryCache) Set(ctx context.Context, conversationID uint, limit int, messages []model.Message) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.historyKey(conversationID, limit), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

// MarkDirty drops every cached window of the conversation and blocks
// repopulation for the dirty marker TTL.
func (c *HistoryCache) MarkDirty(ctx context.Context, conversationID uint) error {
	if err := c.client.Set(ctx, c.dirtyKey(conversationID), "1", c.dirtyMarkerTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return c.deleteWindows(ctx, conversationID)
}

// Delete removes every key of the conversation, dirty marker included.
func (c *HistoryCache) Delete(ctx context.Context, conversationID uint) error {
	if err := c.client.Del(ctx, c.dirtyKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("redis delete dirty marker failed: %w", err)
	}
	return c.deleteWindows(ctx, conversationID)
}

func (c *HistoryCache) IsDirty(ctx context.Context, conversationID uint) (bool, error) {
	exists, err := c.client.Exists(ctx, c.dirtyKey(conversationID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *HistoryCache) deleteWindows(ctx context.Context, conversationID uint) error {
	pattern := fmt.Sprintf("chat:history:%d:*", conversationID)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan history failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) historyKey(conversationID uint, limit int) string {
	return fmt.Sprintf("chat:history:%d:%d", conversationID, limit)
}

func (c *HistoryCache) dirtyKey(conversationID uint) string {
	return fmt.Sprintf("chat:history:dirty:%d", conversationID)
}
