package model

import "time"

// TranslatedQuery is the result of resolving relative date phrases in a
// search query against a reference date.
type TranslatedQuery struct {
	OriginalQuery string
	DateTerms     []string
	StartDate     *time.Time
	EndDate       *time.Time
}

// HasRange reports whether any rule resolved a concrete date range.
func (t *TranslatedQuery) HasRange() bool {
	return t.StartDate != nil && t.EndDate != nil
}

// SearchResult is one ranked hit. Score is cosine similarity in [0, 1].
type SearchResult struct {
	FilePath   string  `json:"file_path"`
	Title      string  `json:"title"`
	ChunkText  string  `json:"chunk_text"`
	Score      float64 `json:"score"`
	StartLine  int     `json:"start_line"`
	ChunkIndex int     `json:"chunk_index"`
}
