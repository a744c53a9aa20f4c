package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/soryel/vaultsearch/internal/ai"
	"github.com/soryel/vaultsearch/internal/model"
	"github.com/soryel/vaultsearch/internal/repo"
)

// WrapDBCacheToEmbedder persists embeddings across process restarts. It sits
// below the in-process LRU so a reindex after a deploy does not have to re-pay
// for vectors the database already holds.
func WrapDBCacheToEmbedder(e ai.IEmbedder, cacheRepo *repo.EmbeddingCacheRepo) ai.IEmbedder {
	if e == nil || cacheRepo == nil {
		return e
	}
	return &dbEmbedder{next: e, repo: cacheRepo}
}

type dbEmbedder struct {
	next ai.IEmbedder
	repo *repo.EmbeddingCacheRepo
}

func (d *dbEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if d == nil || d.next == nil {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		_, contentHash, modelName := buildCacheKey(d.next.ModelName(), taskType, text)
		values, ok, err := d.repo.Get(ctx, modelName, taskType, contentHash)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = values
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if hits := len(texts) - len(missTexts); hits > 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hits (db)", zap.Int("hits", hits), zap.String("task_type", taskType))
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	res, err := d.next.Embed(ctx, missTexts, taskType)
	if err != nil {
		return nil, err
	}
	if len(res) != len(missTexts) {
		return nil, errCountMismatch(len(res), len(missTexts))
	}
	for j, vec := range res {
		_, contentHash, modelName := buildCacheKey(d.next.ModelName(), taskType, missTexts[j])
		if err := d.repo.Save(ctx, &model.EmbeddingCache{
			ModelName:   modelName,
			TaskType:    taskType,
			ContentHash: contentHash,
			Embedding:   vec,
			Ctime:       time.Now().Unix(),
		}); err != nil {
			logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
		}
		out[missIdx[j]] = vec
	}
	return out, nil
}

func (d *dbEmbedder) ModelName() string {
	if d == nil || d.next == nil {
		return ""
	}
	return d.next.ModelName()
}

func errCountMismatch(got, want int) error {
	return fmt.Errorf("embedder returned %d vectors for %d texts", got, want)
}

func buildCacheKey(modelName, taskType, text string) (string, string, string) {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	hash := sha256.Sum256([]byte(text))
	contentHash := hex.EncodeToString(hash[:])
	return "embed:" + modelName + ":" + taskType + ":" + contentHash, contentHash, modelName
}
