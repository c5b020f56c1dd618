package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// MarkdownParser handles Markdown using goldmark. A document with exactly
// one H1 takes its title from it; the H1 itself is then not a section.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	title := titleFromFilename(filename)
	var h1s []*ast.Heading
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			h1s = append(h1s, h)
		}
	}
	// With a single H1 every other heading moves up one level.
	shift := 0
	if len(h1s) == 1 {
		title = blockText(h1s[0], src)
		shift = 1
	}

	b := newSectionBuilder()
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if shift == 1 && node == h1s[0] {
				continue
			}
			b.heading(node.Level-shift, blockText(node, src), 0)
		default:
			b.text(blockText(n, src))
		}
	}

	return b.tree(title), nil
}

// blockText gets the text content of a goldmark AST node. Blocks with
// inline children are read from the inlines, others (code) from their lines.
func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	inlines := n.FirstChild() != nil && n.FirstChild().Type() == ast.TypeInline
	if n.Type() == ast.TypeBlock && !inlines {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			if c.Type() == ast.TypeBlock && buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(blockText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
