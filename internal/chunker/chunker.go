// Package chunker splits document text into titled, token-bounded chunks.
//
// Sections are found with a priority-ranked table of header patterns. Each
// header opens a span that runs to the end of its block; spans never overlap
// and text outside every span is kept as "other" sections, so no content is
// dropped between sections. Sections larger than the token budget are split
// on paragraph, then sentence, then word boundaries, each piece keeping the
// section title.
package chunker

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxTokens is the default per-chunk token budget.
const DefaultMaxTokens = 512

// charsPerToken is the coarse, language-agnostic token estimate.
const charsPerToken = 4

// Piece is one emitted chunk.
type Piece struct {
	Title   string
	Content string
}

// Text returns the indexed form of the piece: the title tag followed by the content.
func (p Piece) Text() string {
	return "[" + p.Title + "]\n" + p.Content
}

// Section is a contiguous region of the source text with a canonical title.
type Section struct {
	Title    string
	Priority int
	Start    int
	End      int
}

// Chunker splits text using a section pattern table.
type Chunker struct {
	patterns  []SectionPattern
	maxTokens int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithMaxTokens sets the per-chunk token budget.
func WithMaxTokens(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithPatterns replaces the section pattern table.
func WithPatterns(patterns []SectionPattern) Option {
	return func(c *Chunker) {
		c.patterns = patterns
	}
}

// New creates a Chunker with DefaultPatterns and DefaultMaxTokens unless overridden.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		patterns:  DefaultPatterns,
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxTokens returns the configured token budget.
func (c *Chunker) MaxTokens() int { return c.maxTokens }

// Chunk splits text with the default pattern table and the given budget.
func Chunk(text string, maxTokensPerChunk int) []Piece {
	return New(WithMaxTokens(maxTokensPerChunk)).Split(text)
}

// Split returns the ordered chunks for text. Identical input always yields
// identical output. CRLF and lone CR line endings are treated as LF.
func (c *Chunker) Split(text string) []Piece {
	text = NormalizeNewlines(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sections := c.Sections(text)
	var pieces []Piece
	for _, s := range sections {
		pieces = append(pieces, c.splitSection(s.Title, text[s.Start:s.End])...)
	}
	return pieces
}

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeNewlines rewrites CRLF and CR line endings to LF.
func NormalizeNewlines(text string) string {
	if !strings.Contains(text, "\r") {
		return text
	}
	return lineEndings.Replace(text)
}

// Sections returns the detected sections of text sorted by priority
// descending, then by position. Uncovered text appears as TitleOther sections.
// Offsets index into text as given; callers with CRLF input should pass it
// through NormalizeNewlines first.
func (c *Chunker) Sections(text string) []Section {
	accepted := c.matchSpans(text)

	sections := make([]Section, 0, len(accepted)+1)
	sections = append(sections, accepted...)

	// Gaps between accepted spans become "other" sections.
	cursor := 0
	for _, s := range accepted {
		if gap := text[cursor:s.Start]; strings.TrimSpace(gap) != "" {
			sections = append(sections, Section{Title: TitleOther, Priority: PriorityOther, Start: cursor, End: s.Start})
		}
		cursor = s.End
	}
	if gap := text[cursor:]; strings.TrimSpace(gap) != "" {
		sections = append(sections, Section{Title: TitleOther, Priority: PriorityOther, Start: cursor, End: len(text)})
	}

	sort.SliceStable(sections, func(i, j int) bool {
		if sections[i].Priority != sections[j].Priority {
			return sections[i].Priority > sections[j].Priority
		}
		return sections[i].Start < sections[j].Start
	})
	return sections
}

type candidate struct {
	start, headerEnd, end int
	inline                bool
	rank                  int
}

var markdownHeading = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]`)

var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

// matchSpans returns accepted section spans ordered by position.
func (c *Chunker) matchSpans(text string) []Section {
	var cands []candidate
	for rank, p := range c.patterns {
		for _, m := range p.Pattern.FindAllStringSubmatchIndex(text, -1) {
			line := text[m[0]:m[1]]
			rest := strings.Trim(text[m[3]:m[1]], " \t:-–*_#")
			cands = append(cands, candidate{
				start:     m[0],
				headerEnd: m[1],
				inline:    !strings.HasPrefix(strings.TrimSpace(line), "#") && rest != "",
				rank:      rank,
			})
		}
	}
	if len(cands) == 0 {
		return nil
	}

	// A span stops where a header that outranks it begins, so a lower
	// priority block can never swallow a higher priority one.
	for i := range cands {
		end := blockEnd(text, cands[i])
		for j := range cands {
			if cands[j].start > cands[i].start && cands[j].start < end && c.outranks(cands[j], cands[i]) {
				end = cands[j].start
			}
		}
		cands[i].end = end
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if c.outranks(cands[i], cands[j]) != c.outranks(cands[j], cands[i]) {
			return c.outranks(cands[i], cands[j])
		}
		return cands[i].start < cands[j].start
	})

	var accepted []Section
	for _, cd := range cands {
		if overlaps(accepted, cd.start, cd.end) {
			continue
		}
		p := c.patterns[cd.rank]
		s := Section{Title: p.Title, Priority: p.Priority, Start: cd.start, End: cd.end}
		i := sort.Search(len(accepted), func(i int) bool { return accepted[i].Start >= s.Start })
		accepted = append(accepted, Section{})
		copy(accepted[i+1:], accepted[i:])
		accepted[i] = s
	}
	return accepted
}

// outranks orders candidates by priority, then by table order.
func (c *Chunker) outranks(a, b candidate) bool {
	pa, pb := c.patterns[a.rank].Priority, c.patterns[b.rank].Priority
	if pa != pb {
		return pa > pb
	}
	return a.rank < b.rank
}

// overlaps reports whether [start,end) intersects any span in the
// position-ordered list.
func overlaps(spans []Section, start, end int) bool {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].End > start })
	return i < len(spans) && spans[i].Start < end
}

// blockEnd finds where the block opened by a header ends. Markdown headings
// run to the next heading; inline labels ("Price: ...") run to the end of
// their paragraph; bare labels take the paragraph that follows them.
func blockEnd(text string, cd candidate) int {
	from := cd.headerEnd
	if strings.HasPrefix(strings.TrimSpace(text[cd.start:cd.headerEnd]), "#") {
		if loc := markdownHeading.FindStringIndex(text[from:]); loc != nil {
			return from + loc[0]
		}
		return len(text)
	}
	if !cd.inline {
		for from < len(text) && unicode.IsSpace(rune(text[from])) {
			from++
		}
	}
	if loc := blankLine.FindStringIndex(text[from:]); loc != nil {
		return from + loc[0]
	}
	return len(text)
}

// CaptureRatio is the share of the source text carried by pieces. Values well
// below 1 mean content was lost between sections.
func CaptureRatio(text string, pieces []Piece) float64 {
	if len(text) == 0 {
		return 1
	}
	var n int
	for _, p := range pieces {
		n += len(p.Content)
	}
	return float64(n) / float64(len(text))
}

func estimateTokens(s string) int {
	return len(s) / charsPerToken
}

func (c *Chunker) fits(s string) bool {
	return estimateTokens(s) <= c.maxTokens
}

// splitSection emits one or more pieces for the section content.
func (c *Chunker) splitSection(title, content string) []Piece {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if c.fits(content) {
		return []Piece{{Title: title, Content: content}}
	}

	var pieces []Piece
	emit := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			pieces = append(pieces, Piece{Title: title, Content: s})
		}
	}

	c.pack(content, paragraphSpans(content), emit, func(para string) {
		c.pack(para, sentenceSpans(para), emit, func(sentence string) {
			for _, w := range c.splitWords(sentence) {
				emit(w)
			}
		})
	})
	return pieces
}

type span struct{ start, end int }

// pack greedily groups consecutive spans of s into pieces within budget.
// A single span over budget is handed to oversize.
func (c *Chunker) pack(s string, spans []span, emit func(string), oversize func(string)) {
	pieceStart := -1
	pieceEnd := -1
	flush := func() {
		if pieceStart >= 0 {
			emit(s[pieceStart:pieceEnd])
		}
		pieceStart, pieceEnd = -1, -1
	}
	for _, sp := range spans {
		if !c.fits(s[sp.start:sp.end]) {
			flush()
			oversize(s[sp.start:sp.end])
			continue
		}
		if pieceStart >= 0 && !c.fits(s[pieceStart:sp.end]) {
			flush()
		}
		if pieceStart < 0 {
			pieceStart = sp.start
		}
		pieceEnd = sp.end
	}
	flush()
}

// paragraphSpans returns the non-blank paragraphs of s.
func paragraphSpans(s string) []span {
	var spans []span
	start := 0
	for _, loc := range blankLine.FindAllStringIndex(s, -1) {
		if strings.TrimSpace(s[start:loc[0]]) != "" {
			spans = append(spans, span{start, loc[0]})
		}
		start = loc[1]
	}
	if strings.TrimSpace(s[start:]) != "" {
		spans = append(spans, span{start, len(s)})
	}
	return spans
}

// sentenceSpans splits s after terminal punctuation followed by whitespace.
func sentenceSpans(s string) []span {
	var spans []span
	start := 0
	for i, r := range s {
		if !isTerminal(r) {
			continue
		}
		next := i + utf8.RuneLen(r)
		if next < len(s) {
			nr, _ := utf8.DecodeRuneInString(s[next:])
			if !unicode.IsSpace(nr) {
				continue
			}
		}
		spans = append(spans, span{start, next})
		start = next
	}
	if start < len(s) && strings.TrimSpace(s[start:]) != "" {
		spans = append(spans, span{start, len(s)})
	}
	return spans
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '\n':
		return true
	}
	return false
}

// splitWords cuts an oversized sentence on whitespace, falling back to rune
// boundaries for unbroken runs.
func (c *Chunker) splitWords(s string) []string {
	maxChars := c.maxTokens*charsPerToken + charsPerToken - 1
	var out []string
	for len(s) > maxChars {
		cut := strings.LastIndexFunc(s[:maxChars], unicode.IsSpace)
		if cut <= 0 {
			cut = maxChars
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
			if cut == 0 {
				_, size := utf8.DecodeRuneInString(s)
				cut = size
			}
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
