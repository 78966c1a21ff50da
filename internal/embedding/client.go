package embedding

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/bug-analyzer/backend/internal/cache/redis"
	"github.com/bug-analyzer/backend/pkg/circuitbreaker"
	"github.com/bug-analyzer/backend/pkg/logger"
	"github.com/bug-analyzer/backend/pkg/retry"
	"github.com/bug-analyzer/backend/pkg/utils"
)

const embeddingCacheTTL = 24 * time.Hour

// Client wraps the embedding model behind a circuit breaker with bounded
// retries. A nil cache disables caching; everything else works the same.
type Client struct {
	client      *openai.Client
	model       string
	dim         int
	cache       *redis.Client
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(apiKey, model string, dim int, cache *redis.Client) *Client {
	if apiKey == "" {
		logger.Info("Embedding model not configured, strategy will be unavailable")
		return nil
	}

	cb := circuitbreaker.NewCircuitBreaker("embedding", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Embedding client initialized",
		zap.String("model", model),
		zap.Int("dim", dim),
	)

	return &Client{
		client:      openai.NewClient(apiKey),
		model:       model,
		dim:         dim,
		cache:       cache,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (c *Client) Dim() int {
	return c.dim
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	textHash := utils.HashString(text)
	if c.cache != nil {
		if cached, ok, err := c.cache.GetEmbedding(ctx, textHash); err == nil && ok {
			return cached, nil
		}
	}

	var vector []float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(
				ctx,
				openai.EmbeddingRequest{
					Input: []string{text},
					Model: openai.EmbeddingModel(c.model),
				},
			)

			if err != nil {
				return fmt.Errorf("failed to generate embedding: %w", err)
			}

			vector = make([]float32, len(resp.Data[0].Embedding))
			copy(vector, resp.Data[0].Embedding)

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetEmbedding(ctx, textHash, vector, embeddingCacheTTL); err != nil {
			logger.Warn("Failed to cache embedding", zap.Error(err))
		}
	}

	return vector, nil
}

func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var vectors [][]float32

	batchSize := 100
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := texts[i:end]

		err := c.cb.Execute(ctx, func() error {
			return retry.Do(ctx, c.retryConfig, func() error {
				resp, err := c.client.CreateEmbeddings(
					ctx,
					openai.EmbeddingRequest{
						Input: batch,
						Model: openai.EmbeddingModel(c.model),
					},
				)

				if err != nil {
					return fmt.Errorf("failed to generate batch embeddings: %w", err)
				}

				for _, data := range resp.Data {
					vector := make([]float32, len(data.Embedding))
					copy(vector, data.Embedding)
					vectors = append(vectors, vector)
				}

				return nil
			})
		})

		if err != nil {
			return nil, err
		}
	}

	logger.Debug("Batch embeddings generated", zap.Int("count", len(vectors)))

	return vectors, nil
}
