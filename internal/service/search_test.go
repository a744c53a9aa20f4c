package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/soryel/vaultsearch/internal/ai"
)

func newTestSearchEngine(index *memIndex, cfg SearchConfig) *SearchEngine {
	client := ai.NewEmbedClient(&wordEmbedder{}, 2, 1, time.Millisecond)
	return NewSearchEngine(index, client, cfg)
}

func TestSearchRanksAndDedups(t *testing.T) {
	vault := &memVault{files: map[string]string{
		"daily/2026-01-18.md": "Took the dog to the vet today. Our pet is doing fine.\n\nLater another walk with the dog, best pet ever.\n",
		"daily/2026-01-19.md": "Weekly grocery run and budget review.\n",
		"projects/plan.md":    "Project meeting notes about the budget.\n",
	}}
	index := newMemIndex()
	indexer := newTestIndexer(vault, index)
	_, err := indexer.IndexVault(context.Background())
	require.NoError(t, err)

	engine := newTestSearchEngine(index, SearchConfig{Enable: true, MinScore: 0.1, TopK: 5})
	results, err := engine.Search(context.Background(), "pet dog", 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "daily/2026-01-18.md", results[0].FilePath)

	// at most one entry per note
	seen := map[string]int{}
	for _, item := range results {
		seen[item.FilePath]++
	}
	for p, n := range seen {
		require.Equal(t, 1, n, "duplicate result for %s", p)
	}
	// ranked by descending score
	for i := 1; i < len(results); i++ {
		require.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestSearchTopKLimit(t *testing.T) {
	vault := &memVault{files: map[string]string{}}
	for _, name := range []string{"a.md", "b.md", "c.md", "d.md"} {
		vault.files[name] = "Notes about the dog and the pet.\n"
	}
	index := newMemIndex()
	indexer := newTestIndexer(vault, index)
	_, err := indexer.IndexVault(context.Background())
	require.NoError(t, err)

	engine := newTestSearchEngine(index, SearchConfig{Enable: true, MinScore: 0.1, TopK: 2})
	results, err := engine.Search(context.Background(), "dog", 0, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestSearchPerCallOverrides(t *testing.T) {
	vault := &memVault{files: map[string]string{}}
	for _, name := range []string{"a.md", "b.md", "c.md"} {
		vault.files[name] = "Notes about the dog and the pet.\n"
	}
	index := newMemIndex()
	indexer := newTestIndexer(vault, index)
	_, err := indexer.IndexVault(context.Background())
	require.NoError(t, err)

	engine := newTestSearchEngine(index, SearchConfig{Enable: true, MinScore: 0.1, TopK: 5})
	results, err := engine.Search(context.Background(), "dog", 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// a stricter per-call score floor filters everything out
	results, err = engine.Search(context.Background(), "budget", 0, 0.99)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearchMinScoreFiltersUnrelated(t *testing.T) {
	vault := &memVault{files: map[string]string{
		"daily/2026-01-19.md": "Weekly grocery run and budget review.\n",
	}}
	index := newMemIndex()
	indexer := newTestIndexer(vault, index)
	_, err := indexer.IndexVault(context.Background())
	require.NoError(t, err)

	engine := newTestSearchEngine(index, SearchConfig{Enable: true, MinScore: 0.5, TopK: 5})
	results, err := engine.Search(context.Background(), "dog", 0, 0)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearchDisabledNoProviderCalls(t *testing.T) {
	embedder := &wordEmbedder{}
	client := ai.NewEmbedClient(embedder, 2, 1, time.Millisecond)
	engine := NewSearchEngine(newMemIndex(), client, SearchConfig{Enable: false, TopK: 5})

	results, err := engine.Search(context.Background(), "dog", 0, 0)
	require.NoError(t, err)
	require.Empty(t, results)
	require.Zero(t, embedder.calls)
	require.False(t, engine.Available(context.Background()))
}

func TestSearchExpandsDateTerms(t *testing.T) {
	vault := &memVault{files: map[string]string{
		// the chunk prefix carries the note name, which is a date literal
		"daily/2026-01-18.md": "Took the pet out.\n",
	}}
	index := newMemIndex()
	indexer := newTestIndexer(vault, index)
	_, err := indexer.IndexVault(context.Background())
	require.NoError(t, err)

	// bag-of-words vectors can't see dates, so pin the translation instead
	engine := newTestSearchEngine(index, SearchConfig{Enable: true, MinScore: 0.1, TopK: 5})
	engine.now = func() time.Time { return time.Date(2026, 1, 19, 10, 0, 0, 0, time.UTC) }
	results, err := engine.Search(context.Background(), "pet yesterday", 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "daily/2026-01-18.md", results[0].FilePath)
}
