// Package doctree holds the source-side view of a document: the section tree
// produced by the format parsers, its flattened text, and the chunks that
// text is split into for model requests.
package doctree

import "strings"

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for leaf text)
	Text     string     // Text content of this node (may be empty for container nodes)
	Page     int        // Source page/line (0 if N/A)
	Children []*DocNode // Subsections
}

// Chunk is a bounded slice of document text sent to the model as one request.
// StartChar/EndChar are nominal offsets into the flattened text; with overlap
// they are best-effort rather than exact.
type Chunk struct {
	Content     string `json:"content"`
	Index       int    `json:"index"`
	StartChar   int    `json:"start_char"`
	EndChar     int    `json:"end_char"`
	TotalChunks int    `json:"total_chunks"`
}

// Text flattens the tree into the plain text sent to the model. Headings are
// kept on their own line so the model can see the document's structure.
func (t *DocTree) Text() string {
	var sb strings.Builder
	var walk func(nodes []*DocNode)
	walk = func(nodes []*DocNode) {
		for _, n := range nodes {
			if n.Title != "" {
				if sb.Len() > 0 {
					sb.WriteString("\n\n")
				}
				sb.WriteString(n.Title)
			}
			if n.Text != "" {
				if sb.Len() > 0 {
					sb.WriteString("\n\n")
				}
				sb.WriteString(n.Text)
			}
			walk(n.Children)
		}
	}
	walk(t.Children)
	return sb.String()
}
