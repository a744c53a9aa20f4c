// Package dates rewrites relative date phrases in a search query into
// concrete day terms and an optional date range, so semantic search can
// lexically match dated notes.
package dates

import (
	"strings"
	"time"

	"github.com/soryel/vaultsearch/internal/model"
)

// Rule recognizes one date phrase shape and resolves it against a reference
// date. Rules are stateless; the table below is ordered most to least
// specific and that order decides which match sets the range.
type Rule struct {
	Name    string
	match   func(q string) []string
	resolve func(m []string, ref time.Time) (start, end time.Time, extra []string, ok bool)
}

// Translate resolves every matching rule in priority order. The range is set
// by the first (most specific) match only; day terms accumulate across all
// matching rules.
func Translate(query string, ref time.Time) model.TranslatedQuery {
	q := strings.ToLower(query)
	ref = dayOf(ref)
	out := model.TranslatedQuery{OriginalQuery: query}
	for _, rule := range rules {
		m := rule.match(q)
		if m == nil {
			continue
		}
		start, end, extra, ok := rule.resolve(m, ref)
		if !ok {
			continue
		}
		out.DateTerms = append(out.DateTerms, expandTerms(start, end)...)
		out.DateTerms = append(out.DateTerms, extra...)
		if out.StartDate == nil {
			s, e := start, end
			out.StartDate, out.EndDate = &s, &e
		}
	}
	out.DateTerms = dedupTerms(out.DateTerms)
	return out
}

// expandTerms renders each day of [start, end] in four literal formats to
// maximize the chance of a lexical hit against note text and filenames.
func expandTerms(start, end time.Time) []string {
	var terms []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		terms = append(terms,
			d.Format("2006-01-02"),
			d.Format("20060102"),
			d.Format("January 2, 2006"),
			d.Format("2 January 2006"),
		)
	}
	return terms
}

func dedupTerms(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	return out
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// mondayOf returns the Monday of the ISO week containing t.
func mondayOf(t time.Time) time.Time {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	return dayOf(t).AddDate(0, 0, -(wd - 1))
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// makeDate builds a date and reports whether the components were valid (no
// normalization like Feb 30 -> Mar 2 happened).
func makeDate(year int, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	if day > daysInMonth(year, time.Month(month)) {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc), true
}
