package model

import "time"

// IndexResult summarizes one indexing run. Per-file failures land in Errors;
// the run itself still completes.
type IndexResult struct {
	Scanned  int           `json:"scanned"`
	Added    int           `json:"added"`
	Updated  int           `json:"updated"`
	Removed  int           `json:"removed"`
	Chunks   int           `json:"chunks"`
	Duration time.Duration `json:"duration"`
	Errors   []string      `json:"errors"`
}
