// Package hierarchy defines the structured form of a parsed legal document:
// metadata plus a tree of nodes (parts, sections, paragraphs) carrying their
// verbatim text and cross-references.
package hierarchy

// Reference types.
const (
	RefInternal = "internal"
	RefExternal = "external"
)

// Reference is a cross-reference found inside a node's text.
type Reference struct {
	Target string `json:"target"` // node id, or "external"
	Text   string `json:"text"`
	Type   string `json:"type"`
}

// Node is one structural unit of the document.
type Node struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Number     string      `json:"number"`
	Title      string      `json:"title"`
	Text       string      `json:"text"`
	Level      int         `json:"level"`
	References []Reference `json:"references"`
	Children   []Node      `json:"children"`
}

// Metadata describes the document as a whole.
type Metadata struct {
	Title        string `json:"title"`
	Jurisdiction string `json:"jurisdiction"`
	DocumentType string `json:"document_type"`
	Source       string `json:"source"`
}

// Document is the complete result of a parse: always well-formed, even when
// the upstream model output was not.
type Document struct {
	Metadata  Metadata `json:"metadata"`
	Hierarchy []Node   `json:"hierarchy"`
}

const unknown = "Unknown"

// UnknownMetadata is used when a parse finished without ever observing metadata.
func UnknownMetadata() Metadata {
	return Metadata{Title: "Untitled Document", Jurisdiction: unknown, DocumentType: unknown, Source: unknown}
}

// FailedMetadata marks a document whose model output could not be recovered.
func FailedMetadata() Metadata {
	return Metadata{Title: "Document Parsing Failed", Jurisdiction: unknown, DocumentType: unknown, Source: unknown}
}

// IsFailed reports whether md is the recovery failure placeholder.
func (md Metadata) IsFailed() bool {
	return md == FailedMetadata()
}

// NewDocument builds a Document with nil slices replaced by empty ones so the
// JSON form always carries arrays.
func NewDocument(md Metadata, nodes []Node) Document {
	out := make([]Node, len(nodes))
	for i := range nodes {
		out[i] = nodes[i].Clone()
	}
	return Document{Metadata: md, Hierarchy: out}
}

// Clone returns a deep copy of n with normalized (non-nil) slices.
func (n Node) Clone() Node {
	c := n
	c.References = make([]Reference, len(n.References))
	copy(c.References, n.References)
	c.Children = make([]Node, len(n.Children))
	for i := range n.Children {
		c.Children[i] = n.Children[i].Clone()
	}
	return c
}
