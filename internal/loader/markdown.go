package loader

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough))

var extraBlankLines = regexp.MustCompile(`\n{3,}`)

// MarkdownToText reduces markdown to plain text and returns it with the
// first top-level heading as title. Headings survive as "#" lines so that
// section detection still sees them; emphasis, links and images collapse to
// their text; table rows become "cell | cell" lines.
func MarkdownToText(src []byte) (string, string) {
	doc := md.Parser().Parse(text.NewReader(src))
	r := &textRenderer{src: src}
	r.block(doc, 0)

	out := extraBlankLines.ReplaceAllString(r.b.String(), "\n\n")
	return cleanText(out), r.title
}

type textRenderer struct {
	src   []byte
	b     strings.Builder
	title string
}

func (r *textRenderer) block(n ast.Node, depth int) {
	switch n := n.(type) {
	case *ast.Heading:
		t := r.inline(n)
		if r.title == "" && n.Level == 1 {
			r.title = t
		}
		r.b.WriteString(strings.Repeat("#", n.Level) + " " + t + "\n\n")

	case *ast.Paragraph:
		r.b.WriteString(r.inline(n) + "\n\n")

	case *ast.TextBlock:
		r.b.WriteString(r.inline(n) + "\n")

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			r.b.Write(seg.Value(r.src))
		}
		r.b.WriteString("\n")

	case *ast.List:
		idx := n.Start
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			marker := "- "
			if n.IsOrdered() {
				marker = strconv.Itoa(idx) + ". "
				idx++
			}
			r.b.WriteString(strings.Repeat("  ", depth) + marker)
			r.children(c, depth+1)
		}
		if depth == 0 {
			r.b.WriteString("\n")
		}

	case *east.Table:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			var cells []string
			for cell := c.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, r.inline(cell))
			}
			r.b.WriteString(strings.Join(cells, " | ") + "\n")
		}
		r.b.WriteString("\n")

	case *ast.HTMLBlock, *ast.ThematicBreak:
		// no text content

	default:
		r.children(n, depth)
	}
}

func (r *textRenderer) children(n ast.Node, depth int) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		r.block(c, depth)
	}
}

// inline flattens the inline content of n.
func (r *textRenderer) inline(n ast.Node) string {
	var b strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch c := c.(type) {
			case *ast.Text:
				b.Write(c.Segment.Value(r.src))
				if c.SoftLineBreak() || c.HardLineBreak() {
					b.WriteString("\n")
				}
			case *ast.String:
				b.Write(c.Value)
			case *ast.AutoLink:
				b.Write(c.URL(r.src))
			case *ast.RawHTML:
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
