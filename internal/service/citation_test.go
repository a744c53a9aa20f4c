package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soryel/vaultsearch/internal/model"
)

func TestFormatCitations(t *testing.T) {
	results := []model.SearchResult{
		{FilePath: "daily/2026-01-18.md", Title: "ignored when date-named", Score: 0.9},
		{FilePath: "projects/q1 plan.md", Title: "Q1 Plan", Score: 0.8},
		{FilePath: "inbox/scratch.md", Score: 0.7},
	}
	out := FormatCitations(results, "My Vault", 5)
	require.Contains(t, out, "- [January 18, 2026](obsidian://open?vault=My+Vault&file=daily%2F2026-01-18)")
	require.Contains(t, out, "- [Q1 Plan](obsidian://open?vault=My+Vault&file=projects%2Fq1+plan)")
	require.Contains(t, out, "- [scratch](obsidian://open?vault=My+Vault&file=inbox%2Fscratch)")
	require.NotContains(t, out, "more")
}

func TestFormatCitationsTruncates(t *testing.T) {
	var results []model.SearchResult
	for _, name := range []string{"a.md", "b.md", "c.md", "d.md"} {
		results = append(results, model.SearchResult{FilePath: name})
	}
	out := FormatCitations(results, "vault", 2)
	require.Contains(t, out, "[a](")
	require.Contains(t, out, "[b](")
	require.NotContains(t, out, "[c](")
	require.Contains(t, out, "+2 more")
}

func TestFormatCitationsEmpty(t *testing.T) {
	require.Equal(t, "", FormatCitations(nil, "vault", 5))
}
