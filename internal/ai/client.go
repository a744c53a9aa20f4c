package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Task types passed through to providers that distinguish document and query
// embeddings.
const (
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
	TaskTypeQuery    = "RETRIEVAL_QUERY"
)

const maxRetryDelay = 30 * time.Second

// EmbedClient is the batching front of an embedder: it splits inputs into
// provider-sized batches, retries transient failures with capped exponential
// backoff, and validates that every input got a vector back.
type EmbedClient struct {
	embedder   IEmbedder
	batchSize  int
	maxRetries int
	baseDelay  time.Duration
}

func NewEmbedClient(embedder IEmbedder, batchSize int, maxRetries int, baseDelay time.Duration) *EmbedClient {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	return &EmbedClient{
		embedder:   embedder,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// BatchSize is the largest number of texts sent in one provider call. Callers
// that need to align their own bookkeeping with provider batches (the vault
// indexer does) slice their input by it.
func (c *EmbedClient) BatchSize() int {
	return c.batchSize
}

func (c *EmbedClient) ModelName() string {
	if c.embedder == nil {
		return ""
	}
	return c.embedder.ModelName()
}

// GetEmbeddings returns one vector per input text, in input order. Batches
// are awaited sequentially to stay inside provider rate limits.
func (c *EmbedClient) GetEmbeddings(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if c.embedder == nil {
		return nil, fmt.Errorf("embedder not configured: %w", ErrUnavailable)
	}
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := c.embedBatch(ctx, texts[start:end], taskType)
		if err != nil {
			return nil, fmt.Errorf("embed batch at offset %d: %w", start, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *EmbedClient) embedBatch(ctx context.Context, batch []string, taskType string) ([][]float32, error) {
	logger := logutil.GetLogger(ctx).With(zap.Int("batch_size", len(batch)), zap.String("task_type", taskType))
	var lastErr error
	delay := c.baseDelay
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			logger.Warn("retrying embed batch",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
		}
		vectors, err := c.embedder.Embed(ctx, batch, taskType)
		if err == nil {
			if len(vectors) != len(batch) {
				return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(batch))
			}
			return vectors, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("exhausted %d attempts: %w", c.maxRetries, lastErr)
}
