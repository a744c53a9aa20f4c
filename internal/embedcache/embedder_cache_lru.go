package embedcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/soryel/vaultsearch/internal/ai"
)

// WrapLruCacheToEmbedder memoizes embeddings in process, keyed by model,
// task type and content hash. Only cache misses travel on to the next
// embedder, so repeated index runs over an unchanged vault stay cheap.
func WrapLruCacheToEmbedder(e ai.IEmbedder, size int, ttl time.Duration) ai.IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  ai.IEmbedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if l == nil || l.next == nil {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		cacheKey, _, _ := buildCacheKey(l.next.ModelName(), taskType, text)
		if cached, ok := l.cache.Get(cacheKey); ok {
			out[i] = cloneEmbedding(cached)
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if hits := len(texts) - len(missTexts); hits > 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hits (lru)", zap.Int("hits", hits), zap.String("task_type", taskType))
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	res, err := l.next.Embed(ctx, missTexts, taskType)
	if err != nil {
		return nil, err
	}
	if len(res) != len(missTexts) {
		return nil, errCountMismatch(len(res), len(missTexts))
	}
	for j, vec := range res {
		cacheKey, _, _ := buildCacheKey(l.next.ModelName(), taskType, missTexts[j])
		l.cache.Add(cacheKey, cloneEmbedding(vec))
		out[missIdx[j]] = vec
	}
	return out, nil
}

func (l *lruEmbedder) ModelName() string {
	if l == nil || l.next == nil {
		return ""
	}
	return l.next.ModelName()
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
