package stream

import (
	"fmt"

	"github.com/dgallion1/docstruct/internal/hierarchy"
)

// Kind tags an Update.
type Kind string

const (
	KindProgress Kind = "progress"
	KindMetadata Kind = "metadata"
	KindNode     Kind = "node"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
)

// Update is one event delivered to the consumer. A run always ends with
// exactly one Update whose Kind is KindComplete or KindError.
type Update struct {
	Kind     Kind                `json:"type"`
	Percent  int                 `json:"percent,omitempty"`
	Message  string              `json:"message,omitempty"`
	Metadata *hierarchy.Metadata `json:"metadata,omitempty"`
	Node     *hierarchy.Node     `json:"node,omitempty"`
	Document *hierarchy.Document `json:"document,omitempty"`
	Err      error               `json:"-"`
	Chunk    int                 `json:"chunk"`
}

// Terminal reports whether u ends the run.
func (u Update) Terminal() bool {
	return u.Kind == KindComplete || u.Kind == KindError
}

// ModelStreamError is a failure of the model client while a chunk was
// being streamed. It ends the run; nothing is recovered from that chunk.
type ModelStreamError struct {
	Chunk int
	Cause error
}

func (e *ModelStreamError) Error() string {
	return fmt.Sprintf("model stream failed on chunk %d: %v", e.Chunk, e.Cause)
}

func (e *ModelStreamError) Unwrap() error { return e.Cause }
