package notes

import (
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"

	"github.com/soryel/vaultsearch/internal/model"
)

// The size knobs are configured in tokens; texts are measured in bytes at the
// usual 4 chars/token estimate.
const charsPerToken = 4

type ChunkerConfig struct {
	TargetTokens  int
	OverlapTokens int
}

// Chunker splits a note into size-bounded chunks. Chunks prefer header
// boundaries and carry a short note prefix (title/date/tags) for grounding.
type Chunker struct {
	targetChars  int
	overlapChars int
}

func NewChunker(cfg ChunkerConfig) *Chunker {
	target := cfg.TargetTokens
	if target <= 0 {
		target = 500
	}
	overlap := cfg.OverlapTokens
	if overlap < 0 {
		overlap = 0
	}
	return &Chunker{
		targetChars:  target * charsPerToken,
		overlapChars: overlap * charsPerToken,
	}
}

// Chunk splits text into ordered chunks with zero-based indices and 1-based
// covered line ranges. Whitespace-only input yields no chunks.
func (c *Chunker) Chunk(text string, filePath string, title string) ([]model.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	fm, bodyStart, err := parseFrontmatter(lines)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		title = noteTitle(filePath)
	}
	sections := splitSections(lines, bodyStart)
	if len(sections) == 0 {
		return nil, nil
	}

	b := &builder{
		prefix:  buildPrefix(title, fm),
		target:  c.targetChars,
		overlap: c.overlapChars,
	}
	for _, sec := range sections {
		b.addSection(sec)
	}
	b.flush()
	return b.chunks, nil
}

func noteTitle(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func buildPrefix(title string, fm *Frontmatter) string {
	var sb strings.Builder
	sb.WriteString("Note: ")
	sb.WriteString(title)
	if fm != nil {
		if fm.Date != "" {
			sb.WriteString("\nDate: ")
			sb.WriteString(fm.Date)
		}
		if len(fm.Tags) > 0 {
			sb.WriteString("\nTags: ")
			sb.WriteString(strings.Join(fm.Tags, ", "))
		}
	}
	sb.WriteString("\n\n")
	return sb.String()
}

// section is a run of body lines anchored at a markdown header. The leading
// section of a headerless note has no heading line.
type section struct {
	headingLine string
	startLine   int // 1-based, inclusive
	endLine     int
	lines       []string
}

func (s *section) text() string {
	return strings.Join(s.lines, "\n")
}

// splitSections parses the note body and cuts it at header positions. The
// markdown AST is used so headers inside fenced code blocks don't split.
func splitSections(lines []string, bodyStart int) []section {
	if bodyStart >= len(lines) {
		return nil
	}
	body := lines[bodyStart:]
	source := []byte(strings.Join(body, "\n"))

	lineStarts := make([]int, len(body))
	offset := 0
	for i, line := range body {
		lineStarts[i] = offset
		offset += len(line) + 1
	}

	md := goldmark.New()
	doc := md.Parser().Parse(gtext.NewReader(source))
	var headingLines []int
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		heading, ok := node.(*ast.Heading)
		if !ok || heading.Lines().Len() == 0 {
			continue
		}
		headingLines = append(headingLines, offsetToLine(lineStarts, heading.Lines().At(0).Start))
	}

	var sections []section
	appendSection := func(from, to int, withHeading bool) {
		sec := section{
			startLine: bodyStart + from + 1,
			endLine:   bodyStart + to + 1,
			lines:     body[from : to+1],
		}
		if withHeading {
			sec.headingLine = body[from]
		}
		if !withHeading && strings.TrimSpace(sec.text()) == "" {
			return
		}
		sections = append(sections, sec)
	}

	if len(headingLines) == 0 {
		appendSection(0, len(body)-1, false)
		return sections
	}
	if headingLines[0] > 0 {
		appendSection(0, headingLines[0]-1, false)
	}
	for i, start := range headingLines {
		end := len(body) - 1
		if i+1 < len(headingLines) {
			end = headingLines[i+1] - 1
		}
		appendSection(start, end, true)
	}
	return sections
}

func offsetToLine(lineStarts []int, offset int) int {
	return sort.Search(len(lineStarts), func(i int) bool {
		return lineStarts[i] > offset
	}) - 1
}

// builder greedily packs sections into chunks, seeding each new chunk with an
// overlap tail from the previous one.
type builder struct {
	prefix  string
	target  int
	overlap int

	chunks    []model.Chunk
	parts     []string
	partsLen  int
	seed      string
	startLine int
	endLine   int
}

func (b *builder) used() int {
	used := b.partsLen
	if b.seed != "" {
		used += len(b.seed) + 2
	}
	return used
}

func (b *builder) addSection(sec section) {
	txt := sec.text()
	if len(txt) > b.target {
		b.splitOversized(sec)
		return
	}
	if len(b.parts) > 0 && b.used()+len(txt)+2 > b.target {
		b.flush()
	}
	if len(b.parts) == 0 {
		if b.seed != "" && len(b.seed)+2+len(txt) > b.target {
			b.seed = overlapTail(b.seed, b.target-len(txt)-2)
		}
		b.startLine = sec.startLine
	}
	b.parts = append(b.parts, txt)
	b.partsLen += len(txt) + 2
	b.endLine = sec.endLine
}

func (b *builder) flush() {
	if len(b.parts) == 0 {
		return
	}
	body := strings.Join(b.parts, "\n\n")
	full := body
	if b.seed != "" {
		full = b.seed + "\n\n" + body
	}
	b.emit(b.prefix+full, b.startLine, b.endLine)
	b.seed = overlapTail(body, b.overlap)
	b.parts = nil
	b.partsLen = 0
}

// splitOversized handles a single section bigger than the target: it is split
// line by line, every sub-chunk after the first repeats the header marked
// "(continued)" and is seeded with the previous sub-chunk's overlap tail.
func (b *builder) splitOversized(sec section) {
	b.flush()
	continued := ""
	if h := strings.TrimSpace(sec.headingLine); h != "" {
		continued = h + " (continued)"
	}

	seed := b.seed
	first := true
	var cur []string
	curLen := 0
	start := sec.startLine

	overhead := func() int {
		n := 0
		if seed != "" {
			n += len(seed) + 2
		}
		if !first && continued != "" {
			n += len(continued) + 2
		}
		return n
	}

	flushSub := func(end int) {
		if len(cur) == 0 {
			return
		}
		body := strings.Join(cur, "\n")
		var parts []string
		if !first && continued != "" {
			parts = append(parts, continued)
		}
		if seed != "" {
			parts = append(parts, seed)
		}
		parts = append(parts, body)
		b.emit(b.prefix+strings.Join(parts, "\n\n"), start, end)
		seed = overlapTail(body, b.overlap)
		first = false
		cur = nil
		curLen = 0
	}

	for i, line := range sec.lines {
		lineNo := sec.startLine + i
		if len(cur) > 0 && overhead()+curLen+len(line)+1 > b.target {
			flushSub(lineNo - 1)
			start = lineNo
		}
		cur = append(cur, line)
		curLen += len(line) + 1
	}
	flushSub(sec.endLine)
	b.seed = seed
}

func (b *builder) emit(text string, start, end int) {
	b.chunks = append(b.chunks, model.Chunk{
		ChunkIndex: len(b.chunks),
		ChunkText:  text,
		StartLine:  start,
		EndLine:    end,
	})
}

// overlapTail returns at most limit trailing bytes of text, snapped to the
// nearest paragraph, then sentence, then rune boundary.
func overlapTail(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(text) <= limit {
		return strings.TrimSpace(text)
	}
	window := text[len(text)-limit:]
	if i := strings.Index(window, "\n\n"); i >= 0 {
		return strings.TrimSpace(window[i+2:])
	}
	if i := sentenceStart(window); i >= 0 {
		return strings.TrimSpace(window[i:])
	}
	for i := 0; i < len(window); i++ {
		if utf8.RuneStart(window[i]) {
			return strings.TrimSpace(window[i:])
		}
	}
	return ""
}

func sentenceStart(window string) int {
	best := -1
	for _, mark := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
		if i := strings.Index(window, mark); i >= 0 {
			pos := i + len(mark)
			if best == -1 || pos < best {
				best = pos
			}
		}
	}
	return best
}
