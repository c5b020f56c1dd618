package parser

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// TextParser handles plain text. Blank lines separate paragraphs; a
// paragraph whose first line looks like a legal heading (PART II,
// Chapter 3, Article 12, Section 4, § 5) opens a section.
type TextParser struct{}

var headingPatterns = []struct {
	level int
	re    *regexp.Regexp
}{
	{1, regexp.MustCompile(`^(?i:title|part|book)\s+[0-9IVXLCDM]+[A-Z]?\b`)},
	{2, regexp.MustCompile(`^(?i:chapter|subpart|division)\s+[0-9IVXLCDMA-Z]+\b`)},
	{3, regexp.MustCompile(`^(?i:article|section|sec\.)\s+[0-9]+[A-Za-z]?\b`)},
	{3, regexp.MustCompile(`^§+\s*[0-9]+`)},
}

// HeadingLevel reports the nesting level of a legal heading line, or 0.
func HeadingLevel(line string) int {
	line = strings.TrimSpace(line)
	if line == "" || len(line) > 120 {
		return 0
	}
	for _, hp := range headingPatterns {
		if hp.re.MatchString(line) {
			return hp.level
		}
	}
	return 0
}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	b := newSectionBuilder()
	var current strings.Builder
	lineNo, paraStart := 0, 0

	flushPara := func() {
		if current.Len() == 0 {
			return
		}
		para := current.String()
		current.Reset()
		first, rest, _ := strings.Cut(para, "\n")
		if level := HeadingLevel(first); level > 0 {
			b.heading(level, strings.TrimSpace(first), paraStart)
			b.text(rest)
			return
		}
		b.text(para)
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flushPara()
			continue
		}
		if current.Len() == 0 {
			paraStart = lineNo
		} else {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flushPara()

	return b.tree(titleFromFilename(filename)), nil
}
