package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/soryel/vaultsearch/internal/ai"
	"github.com/soryel/vaultsearch/internal/dates"
	"github.com/soryel/vaultsearch/internal/model"
)

type SearchConfig struct {
	Enable   bool
	MinScore float64
	TopK     int
}

// SearchEngine answers natural-language queries over the indexed vault.
type SearchEngine struct {
	index VectorIndex
	embed *ai.EmbedClient
	cfg   SearchConfig
	now   func() time.Time
}

func NewSearchEngine(index VectorIndex, embed *ai.EmbedClient, cfg SearchConfig) *SearchEngine {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &SearchEngine{
		index: index,
		embed: embed,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Search translates date expressions in the query, embeds the expanded query
// and returns the best chunk per note, ranked by similarity. topK and
// minScore override the configured defaults when positive. A disabled engine
// returns no results and touches neither the provider nor the index.
func (s *SearchEngine) Search(ctx context.Context, query string, topK int, minScore float64) ([]model.SearchResult, error) {
	if !s.cfg.Enable {
		return nil, nil
	}
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	if minScore <= 0 {
		minScore = s.cfg.MinScore
	}
	logger := logutil.GetLogger(ctx).With(zap.String("query", query))

	translated := dates.Translate(query, s.now())
	combined := translated.OriginalQuery
	if len(translated.DateTerms) > 0 {
		combined = combined + " " + strings.Join(translated.DateTerms, " ")
		logger.Debug("expanded date terms", zap.Strings("terms", translated.DateTerms))
	}

	vectors, err := s.embed.GetEmbeddings(ctx, []string{combined}, ai.TaskTypeQuery)
	if err != nil {
		logger.Error("failed to embed search query", zap.Error(err))
		return nil, err
	}

	// Over-fetch so per-note dedup still leaves topK distinct notes.
	fetch := topK * 2
	neighbors, err := s.index.NearestNeighbors(ctx, vectors[0], fetch, minScore)
	if err != nil {
		return nil, err
	}

	best := make(map[string]model.SearchResult, len(neighbors))
	for _, item := range neighbors {
		if prev, ok := best[item.FilePath]; ok && prev.Score >= item.Score {
			continue
		}
		best[item.FilePath] = item
	}
	results := make([]model.SearchResult, 0, len(best))
	for _, item := range best {
		results = append(results, item)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	logger.Debug("search finished", zap.Int("candidates", len(neighbors)), zap.Int("results", len(results)))
	return results, nil
}

// Available reports whether the index is ready to serve searches. False
// means "not indexed yet" rather than an error.
func (s *SearchEngine) Available(ctx context.Context) bool {
	if !s.cfg.Enable {
		return false
	}
	return s.index.Available(ctx)
}
