package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/soryel/vaultsearch/internal/ai"
	"github.com/soryel/vaultsearch/internal/model"
	"github.com/soryel/vaultsearch/internal/notes"
	appErr "github.com/soryel/vaultsearch/internal/pkg/errors"
	"github.com/soryel/vaultsearch/internal/vaultfs"
)

// memVault is an in-memory vaultfs.Provider.
type memVault struct {
	files map[string]string
}

func (v *memVault) List(ctx context.Context) ([]vaultfs.FileMeta, error) {
	var out []vaultfs.FileMeta
	for p, content := range v.files {
		out = append(out, vaultfs.FileMeta{Path: p, Size: int64(len(content)), ModTime: time.Unix(1700000000, 0)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (v *memVault) Read(ctx context.Context, p string) ([]byte, error) {
	content, ok := v.files[p]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", p)
	}
	return []byte(content), nil
}

// memIndex is an in-memory VectorIndex doing brute-force cosine search.
type memIndex struct {
	mu     sync.Mutex
	nextID int64
	notes  map[string]*storedNote
}

type storedNote struct {
	id     int64
	note   model.Note
	chunks []model.Chunk
}

func newMemIndex() *memIndex {
	return &memIndex{notes: map[string]*storedNote{}}
}

func (m *memIndex) ListNotes(ctx context.Context) (map[string]model.NoteMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]model.NoteMeta{}
	for p, stored := range m.notes {
		out[p] = model.NoteMeta{ID: stored.id, ContentHash: stored.note.ContentHash}
	}
	return out, nil
}

func (m *memIndex) SaveNote(ctx context.Context, note *model.Note, chunks []model.Chunk) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.notes[note.FilePath]
	if !ok {
		m.nextID++
		stored = &storedNote{id: m.nextID}
		m.notes[note.FilePath] = stored
	}
	stored.note = *note
	stored.chunks = append([]model.Chunk(nil), chunks...)
	return stored.id, nil
}

func (m *memIndex) BulkDeleteNotes(ctx context.Context, paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		delete(m.notes, p)
	}
	return nil
}

func (m *memIndex) NearestNeighbors(ctx context.Context, embedding []float32, k int, minScore float64) ([]model.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SearchResult
	for _, stored := range m.notes {
		for _, chunk := range stored.chunks {
			score := cosine(embedding, chunk.Embedding)
			if score < minScore {
				continue
			}
			out = append(out, model.SearchResult{
				FilePath:   stored.note.FilePath,
				Title:      stored.note.Title,
				ChunkText:  chunk.ChunkText,
				Score:      score,
				StartLine:  chunk.StartLine,
				ChunkIndex: chunk.ChunkIndex,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *memIndex) Available(ctx context.Context) bool { return true }

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// wordEmbedder maps texts onto a tiny bag-of-words space so related notes
// land near each other without a remote provider.
var vocab = []string{"dog", "pet", "vet", "walk", "grocery", "budget", "meeting", "project"}

type wordEmbedder struct {
	calls int
}

func (w *wordEmbedder) ModelName() string { return "word-vec" }

func (w *wordEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	w.calls++
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		lower := strings.ToLower(text)
		vec := make([]float32, len(vocab))
		for i, word := range vocab {
			vec[i] = float32(strings.Count(lower, word))
		}
		out = append(out, vec)
	}
	return out, nil
}

func newTestIndexer(vault *memVault, index *memIndex) *Indexer {
	embedder := &wordEmbedder{}
	client := ai.NewEmbedClient(embedder, 2, 1, time.Millisecond)
	chunker := notes.NewChunker(notes.ChunkerConfig{TargetTokens: 100, OverlapTokens: 10})
	return NewIndexer(vault, index, chunker, client, nil, nil)
}

func TestIndexVaultAddUpdateRemove(t *testing.T) {
	vault := &memVault{files: map[string]string{
		"daily/2026-01-18.md": "Took the dog to the vet. Our pet is doing fine.\n",
		"daily/2026-01-19.md": "Weekly grocery run and budget review.\n",
		"projects/plan.md":    "Project meeting notes.\n",
	}}
	index := newMemIndex()
	indexer := newTestIndexer(vault, index)

	result, err := indexer.IndexVault(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, result.Scanned)
	require.Equal(t, 3, result.Added)
	require.Equal(t, 0, result.Updated)
	require.Equal(t, 0, result.Removed)
	require.Empty(t, result.Errors)
	require.GreaterOrEqual(t, result.Chunks, 3)

	// second run over an unchanged vault changes nothing
	result, err = indexer.IndexVault(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, result.Scanned)
	require.Equal(t, 0, result.Added)
	require.Equal(t, 0, result.Updated)
	require.Equal(t, 0, result.Removed)

	// edit one, delete one
	vault.files["daily/2026-01-19.md"] = "Weekly grocery run, budget review and a walk.\n"
	delete(vault.files, "projects/plan.md")
	result, err = indexer.IndexVault(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Scanned)
	require.Equal(t, 0, result.Added)
	require.Equal(t, 1, result.Updated)
	require.Equal(t, 1, result.Removed)

	stored, err := index.ListNotes(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.NotContains(t, stored, "projects/plan.md")
}

func TestIndexVaultNonMarkdownIgnored(t *testing.T) {
	vault := &memVault{files: map[string]string{
		"note.md":                  "A pet note.\n",
		"image.png":                "\x89PNG",
		"extra.txt":                "plain text",
		".obsidian/workspace.json": "{}",
	}}
	index := newMemIndex()
	indexer := newTestIndexer(vault, index)

	result, err := indexer.IndexVault(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Scanned)
	require.Equal(t, 1, result.Added)
}

func TestIndexVaultExcludes(t *testing.T) {
	vault := &memVault{files: map[string]string{
		"note.md":              "A pet note.\n",
		"templates/daily.md":   "template body\n",
		"archive/old/stuff.md": "old body\n",
	}}
	index := newMemIndex()
	embedder := &wordEmbedder{}
	client := ai.NewEmbedClient(embedder, 2, 1, time.Millisecond)
	chunker := notes.NewChunker(notes.ChunkerConfig{})
	indexer := NewIndexer(vault, index, chunker, client, nil, []string{"templates/**", "archive/**"})

	result, err := indexer.IndexVault(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Scanned)
	require.Equal(t, 1, result.Added)
}

func TestIndexVaultCorruptFileContinues(t *testing.T) {
	files := map[string]string{
		"broken.md": "---\n: : bad: [yaml\n---\nbody",
	}
	for i := 0; i < 9; i++ {
		files[fmt.Sprintf("note-%d.md", i)] = fmt.Sprintf("Note %d about the dog.\n", i)
	}
	index := newMemIndex()
	indexer := newTestIndexer(&memVault{files: files}, index)

	result, err := indexer.IndexVault(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, result.Scanned)
	require.Equal(t, 9, result.Added)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "broken.md")
}

func TestIndexNoteSingleFile(t *testing.T) {
	vault := &memVault{files: map[string]string{
		"note.md": "First draft about the dog.\n",
	}}
	index := newMemIndex()
	indexer := newTestIndexer(vault, index)

	require.NoError(t, indexer.IndexNote(context.Background(), "note.md"))
	stored, err := index.ListNotes(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	first := stored["note.md"].ContentHash

	// unchanged content is a no-op, changed content re-hashes
	require.NoError(t, indexer.IndexNote(context.Background(), "note.md"))
	vault.files["note.md"] = "Second draft about the dog and the vet.\n"
	require.NoError(t, indexer.IndexNote(context.Background(), "note.md"))
	stored, err = index.ListNotes(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first, stored["note.md"].ContentHash)

	require.Error(t, indexer.IndexNote(context.Background(), "missing.md"))
	require.ErrorIs(t, indexer.IndexNote(context.Background(), "image.png"), appErr.ErrInvalid)
}

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"**/*.md", "note.md", true},
		{"**/*.md", "deep/nested/note.md", true},
		{"**/*.md", "image.png", false},
		{"templates/**", "templates/daily.md", true},
		{"templates/**", "templates", true},
		{"templates/**", "other/daily.md", false},
		{"*.md", "note.md", true},
		{"*.md", "dir/note.md", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"_"+tt.path, func(t *testing.T) {
			require.Equal(t, tt.want, matchGlob(tt.pattern, tt.path))
		})
	}
}
