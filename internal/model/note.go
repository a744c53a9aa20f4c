package model

// Note is one markdown file tracked by the vault index, keyed by its
// vault-relative path.
type Note struct {
	ID          int64  `json:"id"`
	FilePath    string `json:"file_path"`
	Title       string `json:"title"`
	ContentHash string `json:"content_hash"`
	FileMtime   int64  `json:"file_mtime"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}

// NoteMeta is the slim per-note state the indexer loads up front to diff a
// scan against what is already stored.
type NoteMeta struct {
	ID          int64
	ContentHash string
}

// Chunk is one embeddable span of a note. Indices are zero based and
// contiguous within a note; a note's chunks are only ever replaced wholesale.
type Chunk struct {
	NoteID     int64     `json:"note_id"`
	ChunkIndex int       `json:"chunk_index"`
	ChunkText  string    `json:"chunk_text"`
	StartLine  int       `json:"start_line"`
	EndLine    int       `json:"end_line"`
	Embedding  []float32 `json:"embedding"`
}
