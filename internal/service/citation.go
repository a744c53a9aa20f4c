package service

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/soryel/vaultsearch/internal/model"
)

// FormatCitations renders ranked results as an obsidian-style link list, at
// most max entries with a trailing "+N more" line. Pure formatting, no I/O.
func FormatCitations(results []model.SearchResult, vaultName string, max int) string {
	if len(results) == 0 {
		return ""
	}
	if max <= 0 {
		max = 5
	}
	shown := results
	if len(shown) > max {
		shown = shown[:max]
	}
	var sb strings.Builder
	for _, item := range shown {
		sb.WriteString("- [")
		sb.WriteString(citationTitle(item))
		sb.WriteString("](")
		sb.WriteString(noteURI(vaultName, item.FilePath))
		sb.WriteString(")\n")
	}
	if rest := len(results) - len(shown); rest > 0 {
		sb.WriteString(fmt.Sprintf("+%d more\n", rest))
	}
	return sb.String()
}

// citationTitle prefers a human date derived from a YYYY-MM-DD filename, then
// the stored note title, then the bare filename.
func citationTitle(item model.SearchResult) string {
	name := strings.TrimSuffix(path.Base(item.FilePath), path.Ext(item.FilePath))
	if t, err := time.Parse("2006-01-02", name); err == nil {
		return t.Format("January 2, 2006")
	}
	if strings.TrimSpace(item.Title) != "" {
		return item.Title
	}
	return name
}

func noteURI(vaultName, filePath string) string {
	file := strings.TrimSuffix(filePath, ".md")
	return "obsidian://open?vault=" + url.QueryEscape(vaultName) + "&file=" + url.QueryEscape(file)
}
