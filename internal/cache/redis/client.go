package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bug-analyzer/backend/internal/models"
	"github.com/bug-analyzer/backend/pkg/logger"
)

// Client caches work item batches and embedding vectors. All methods are
// safe to call on a nil receiver guard at the call site; callers treat cache
// misses and cache errors identically.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewClient(addr, password string, db int, ttl time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis cache connected", zap.String("addr", addr), zap.Int("db", db))

	return &Client{rdb: rdb, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func bugListKey(filterHash string) string {
	return "bugs:list:" + filterHash
}

func embeddingKey(textHash string) string {
	return "embedding:" + textHash
}

// SetBugList caches a fetched work item batch under the hash of its filters.
func (c *Client) SetBugList(ctx context.Context, filterHash string, bugs []models.BugRecord) error {
	data, err := json.Marshal(bugs)
	if err != nil {
		return fmt.Errorf("failed to marshal bug list: %w", err)
	}

	if err := c.rdb.Set(ctx, bugListKey(filterHash), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache bug list: %w", err)
	}

	return nil
}

// GetBugList returns the cached batch for a filter hash, with a second return
// reporting whether the key was present.
func (c *Client) GetBugList(ctx context.Context, filterHash string) ([]models.BugRecord, bool, error) {
	data, err := c.rdb.Get(ctx, bugListKey(filterHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached bug list: %w", err)
	}

	var bugs []models.BugRecord
	if err := json.Unmarshal(data, &bugs); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached bug list: %w", err)
	}

	return bugs, true, nil
}

func (c *Client) SetEmbedding(ctx context.Context, textHash string, vector []float32, ttl time.Duration) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	if err := c.rdb.Set(ctx, embeddingKey(textHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache embedding: %w", err)
	}

	return nil
}

func (c *Client) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	data, err := c.rdb.Get(ctx, embeddingKey(textHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached embedding: %w", err)
	}

	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached embedding: %w", err)
	}

	return vector, true, nil
}

// InvalidateBugLists drops all cached work item batches, used after an index
// refresh so stale filters do not serve old data.
func (c *Client) InvalidateBugLists(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, "bugs:list:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cache key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return nil
}
