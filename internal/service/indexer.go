package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/soryel/vaultsearch/internal/ai"
	"github.com/soryel/vaultsearch/internal/model"
	"github.com/soryel/vaultsearch/internal/notes"
	appErr "github.com/soryel/vaultsearch/internal/pkg/errors"
	"github.com/soryel/vaultsearch/internal/vaultfs"
)

// VectorIndex is the persistence the indexer and search engine run against.
type VectorIndex interface {
	ListNotes(ctx context.Context) (map[string]model.NoteMeta, error)
	SaveNote(ctx context.Context, note *model.Note, chunks []model.Chunk) (int64, error)
	BulkDeleteNotes(ctx context.Context, paths []string) error
	NearestNeighbors(ctx context.Context, embedding []float32, k int, minScore float64) ([]model.SearchResult, error)
	Available(ctx context.Context) bool
}

// Indexer keeps the vector index in sync with the vault. Runs are serialized
// by a mutex so a manual reindex cannot race the scheduled one.
type Indexer struct {
	vault    vaultfs.Provider
	index    VectorIndex
	chunker  *notes.Chunker
	embed    *ai.EmbedClient
	include  []string
	excludes []string
	mu       sync.Mutex
}

func NewIndexer(vault vaultfs.Provider, index VectorIndex, chunker *notes.Chunker, embed *ai.EmbedClient, include []string, excludes []string) *Indexer {
	if len(include) == 0 {
		include = []string{"**/*.md"}
	}
	return &Indexer{
		vault:    vault,
		index:    index,
		chunker:  chunker,
		embed:    embed,
		include:  include,
		excludes: excludes,
	}
}

type pendingNote struct {
	note    *model.Note
	chunks  []model.Chunk
	waiting int
	isNew   bool
}

// IndexVault diffs the vault against the stored notes by content hash and
// re-embeds only what changed. Per-file failures are collected into the
// result; only a broken precondition (unreachable vault root, unreadable
// index) fails the run as a whole.
func (s *Indexer) IndexVault(ctx context.Context) (*model.IndexResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	logger := logutil.GetLogger(ctx)
	result := &model.IndexResult{}

	files, err := s.vault.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vault: %w", err)
	}
	existing, err := s.index.ListNotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexed notes: %w", err)
	}

	seen := make(map[string]struct{}, len(files))
	var pending []*pendingNote
	for _, file := range files {
		if !s.shouldIndex(file.Path) {
			continue
		}
		result.Scanned++
		seen[file.Path] = struct{}{}

		content, err := s.vault.Read(ctx, file.Path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file.Path, err))
			continue
		}
		sum := sha256.Sum256(content)
		hash := hex.EncodeToString(sum[:])
		meta, indexed := existing[file.Path]
		if indexed && meta.ContentHash == hash {
			continue
		}
		item, err := s.prepare(file, string(content), hash, !indexed)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file.Path, err))
			continue
		}
		pending = append(pending, item)
	}

	s.embedAndSave(ctx, pending, result)

	var stale []string
	for filePath := range existing {
		if _, ok := seen[filePath]; !ok {
			stale = append(stale, filePath)
		}
	}
	if len(stale) > 0 {
		if err := s.index.BulkDeleteNotes(ctx, stale); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("delete stale notes: %v", err))
		} else {
			result.Removed = len(stale)
		}
	}

	result.Duration = time.Since(start)
	logger.Info("vault index run finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("added", result.Added),
		zap.Int("updated", result.Updated),
		zap.Int("removed", result.Removed),
		zap.Int("chunks", result.Chunks),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// IndexNote refreshes a single vault-relative path, e.g. after an edit hook.
func (s *Indexer) IndexNote(ctx context.Context, relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.shouldIndex(relPath) {
		return fmt.Errorf("%w: %s does not match the vault include patterns", appErr.ErrInvalid, relPath)
	}
	content, err := s.vault.Read(ctx, relPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", relPath, err)
	}
	existing, err := s.index.ListNotes(ctx)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	meta, indexed := existing[relPath]
	if indexed && meta.ContentHash == hash {
		return nil
	}
	item, err := s.prepare(vaultfs.FileMeta{Path: relPath}, string(content), hash, !indexed)
	if err != nil {
		return err
	}
	result := &model.IndexResult{}
	s.embedAndSave(ctx, []*pendingNote{item}, result)
	if len(result.Errors) > 0 {
		return fmt.Errorf("index %s: %s", relPath, result.Errors[0])
	}
	return nil
}

func (s *Indexer) prepare(file vaultfs.FileMeta, content, hash string, isNew bool) (*pendingNote, error) {
	title := notes.ExtractTitle(content)
	chunks, err := s.chunker.Chunk(content, file.Path, title)
	if err != nil {
		return nil, err
	}
	return &pendingNote{
		note: &model.Note{
			FilePath:    file.Path,
			Title:       title,
			ContentHash: hash,
			FileMtime:   file.ModTime.Unix(),
		},
		chunks:  chunks,
		waiting: len(chunks),
		isNew:   isNew,
	}, nil
}

// embedAndSave embeds all pending chunks in provider-sized batches and
// persists each note as soon as its last chunk has a vector, so a run that
// dies mid-way keeps every fully processed note.
func (s *Indexer) embedAndSave(ctx context.Context, pending []*pendingNote, result *model.IndexResult) {
	type chunkRef struct {
		note *pendingNote
		idx  int
	}
	var texts []string
	var refs []chunkRef
	for _, item := range pending {
		if item.waiting == 0 {
			s.save(ctx, item, result)
			continue
		}
		for i, chunk := range item.chunks {
			texts = append(texts, chunk.ChunkText)
			refs = append(refs, chunkRef{note: item, idx: i})
		}
	}

	batch := s.embed.BatchSize()
	for from := 0; from < len(texts); from += batch {
		to := from + batch
		if to > len(texts) {
			to = len(texts)
		}
		vectors, err := s.embed.GetEmbeddings(ctx, texts[from:to], ai.TaskTypeDocument)
		if err != nil {
			// The provider is down or rejecting us; retries are already
			// spent inside the client, so drop the rest of the run.
			failed := map[*pendingNote]struct{}{}
			for _, ref := range refs[from:] {
				failed[ref.note] = struct{}{}
			}
			for item := range failed {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: embed: %v", item.note.FilePath, err))
			}
			return
		}
		for j, vec := range vectors {
			ref := refs[from+j]
			ref.note.chunks[ref.idx].Embedding = vec
			ref.note.waiting--
			if ref.note.waiting == 0 {
				s.save(ctx, ref.note, result)
			}
		}
	}
}

func (s *Indexer) save(ctx context.Context, item *pendingNote, result *model.IndexResult) {
	if _, err := s.index.SaveNote(ctx, item.note, item.chunks); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: save: %v", item.note.FilePath, err))
		return
	}
	if item.isNew {
		result.Added++
	} else {
		result.Updated++
	}
	result.Chunks += len(item.chunks)
}

func (s *Indexer) shouldIndex(relPath string) bool {
	matched := false
	for _, pattern := range s.include {
		if matchGlob(pattern, relPath) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, pattern := range s.excludes {
		if matchGlob(pattern, relPath) {
			return false
		}
	}
	return true
}

// matchGlob extends path.Match with the two common doublestar forms:
// "**/x" matches x at any depth and "dir/**" matches a whole subtree.
func matchGlob(pattern, relPath string) bool {
	switch {
	case strings.HasSuffix(pattern, "/**"):
		dir := strings.TrimSuffix(pattern, "/**")
		return relPath == dir || strings.HasPrefix(relPath, dir+"/")
	case strings.HasPrefix(pattern, "**/"):
		sub := strings.TrimPrefix(pattern, "**/")
		if ok, _ := path.Match(sub, path.Base(relPath)); ok {
			return true
		}
		ok, _ := path.Match(sub, relPath)
		return ok
	default:
		ok, _ := path.Match(pattern, relPath)
		return ok
	}
}
