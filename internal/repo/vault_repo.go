package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/soryel/vaultsearch/internal/model"
	"github.com/soryel/vaultsearch/internal/pkg/dbutil"
)

// VaultRepo is the vector index behind the indexer and the search engine:
// notes keyed by vault-relative path, each owning a wholesale-replaced set of
// embedded chunks.
type VaultRepo struct {
	db *sql.DB
}

func NewVaultRepo(db *sql.DB) *VaultRepo {
	return &VaultRepo{db: db}
}

// ListNotes loads the per-path state one indexing run diffs against.
func (r *VaultRepo) ListNotes(ctx context.Context) (map[string]model.NoteMeta, error) {
	sqlStr, args, err := builder.BuildSelect("notes", nil, []string{"id", "file_path", "content_hash"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]model.NoteMeta{}
	for rows.Next() {
		var id int64
		var path, hash string
		if err := rows.Scan(&id, &path, &hash); err != nil {
			return nil, err
		}
		out[path] = model.NoteMeta{ID: id, ContentHash: hash}
	}
	return out, rows.Err()
}

// SaveNote upserts the note row and replaces its chunk set in one
// transaction, so readers never observe a half-updated note.
func (r *VaultRepo) SaveNote(ctx context.Context, note *model.Note, chunks []model.Chunk) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	const upsert = `
		INSERT INTO notes (file_path, title, content_hash, file_mtime, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (file_path) DO UPDATE SET
			title = EXCLUDED.title,
			content_hash = EXCLUDED.content_hash,
			file_mtime = EXCLUDED.file_mtime,
			mtime = EXCLUDED.mtime
		RETURNING id
	`
	var noteID int64
	if err := tx.QueryRowContext(ctx, upsert, note.FilePath, note.Title, note.ContentHash, note.FileMtime, now).Scan(&noteID); err != nil {
		return 0, fmt.Errorf("upsert note %s: %w", note.FilePath, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM note_chunks WHERE note_id = $1`, noteID); err != nil {
		return 0, fmt.Errorf("clear chunks for %s: %w", note.FilePath, err)
	}
	const insert = `
		INSERT INTO note_chunks (note_id, chunk_index, chunk_text, start_line, end_line, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, chunk := range chunks {
		if _, err := tx.ExecContext(ctx, insert,
			noteID,
			chunk.ChunkIndex,
			chunk.ChunkText,
			chunk.StartLine,
			chunk.EndLine,
			pgvector.NewVector(chunk.Embedding),
		); err != nil {
			return 0, fmt.Errorf("insert chunk %d for %s: %w", chunk.ChunkIndex, note.FilePath, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return noteID, nil
}

// BulkDeleteNotes drops notes whose files disappeared; chunks go with them
// via ON DELETE CASCADE.
func (r *VaultRepo) BulkDeleteNotes(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE file_path = ANY($1)`, pq.Array(paths))
	return err
}

// NearestNeighbors returns up to k chunks ranked by cosine similarity at or
// above minScore.
func (r *VaultRepo) NearestNeighbors(ctx context.Context, embedding []float32, k int, minScore float64) ([]model.SearchResult, error) {
	const query = `
		SELECT n.file_path, n.title, c.chunk_text, c.chunk_index, c.start_line, 1 - (c.embedding <=> $1) AS score
		FROM note_chunks c
		JOIN notes n ON n.id = c.note_id
		WHERE c.embedding IS NOT NULL AND 1 - (c.embedding <=> $1) >= $2
		ORDER BY c.embedding <=> $1
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(embedding), minScore, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.SearchResult
	for rows.Next() {
		var item model.SearchResult
		if err := rows.Scan(&item.FilePath, &item.Title, &item.ChunkText, &item.ChunkIndex, &item.StartLine, &item.Score); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// Available probes whether the vector-search capability is usable: the
// pgvector extension is installed and the chunk table exists. False means
// "not indexed yet", not an error.
func (r *VaultRepo) Available(ctx context.Context) bool {
	const probe = `
		SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')
			AND to_regclass('note_chunks') IS NOT NULL
	`
	var ok bool
	if err := r.db.QueryRowContext(ctx, probe).Scan(&ok); err != nil {
		return false
	}
	return ok
}
