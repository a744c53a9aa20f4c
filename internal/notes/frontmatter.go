package notes

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const frontmatterDelim = "---"

// Frontmatter is the YAML block at the top of a note. Keys are arbitrary, so
// the raw document stays a generic map; only date and tags get structured
// extraction because they feed the chunk prefix.
type Frontmatter struct {
	Raw  map[string]interface{}
	Date string
	Tags []string
}

// parseFrontmatter reads a leading ----delimited YAML block from lines and
// returns the parsed block plus the index of the first body line. A missing
// closing delimiter means the whole file is body.
func parseFrontmatter(lines []string) (*Frontmatter, int, error) {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontmatterDelim {
		return nil, 0, nil
	}
	closing := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontmatterDelim {
			closing = i
			break
		}
	}
	if closing < 0 {
		return nil, 0, nil
	}
	raw := strings.Join(lines[1:closing], "\n")
	fm := &Frontmatter{Raw: map[string]interface{}{}}
	if strings.TrimSpace(raw) != "" {
		if err := yaml.Unmarshal([]byte(raw), &fm.Raw); err != nil {
			return nil, 0, fmt.Errorf("parse frontmatter: %w", err)
		}
	}
	fm.Date = frontmatterDate(fm.Raw["date"])
	fm.Tags = frontmatterTags(fm.Raw["tags"])
	return fm, closing + 1, nil
}

// ExtractTitle returns the frontmatter title of a note, or "" when the note
// has none.
func ExtractTitle(text string) string {
	fm, _, err := parseFrontmatter(strings.Split(text, "\n"))
	if err != nil || fm == nil {
		return ""
	}
	if title, ok := fm.Raw["title"].(string); ok {
		return strings.TrimSpace(title)
	}
	return ""
}

func frontmatterDate(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case time.Time:
		return v.Format("2006-01-02")
	default:
		return ""
	}
}

func frontmatterTags(value interface{}) []string {
	switch v := value.(type) {
	case []interface{}:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				tags = append(tags, strings.TrimSpace(s))
			}
		}
		return tags
	case string:
		var tags []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				tags = append(tags, p)
			}
		}
		return tags
	default:
		return nil
	}
}
