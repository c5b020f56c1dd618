// Package docstore persists structured documents.
package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/dgallion1/docstruct/internal/hierarchy"
)

// ErrNotFound is returned for an unknown document id.
var ErrNotFound = errors.New("document not found")

// Summary is the listing entry of a stored document.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Jurisdiction string    `json:"jurisdiction"`
	DocumentType string    `json:"document_type"`
	Source       string    `json:"source"`
	Filename     string    `json:"filename,omitempty"`
	ContentHash  string    `json:"content_hash"`
	Nodes        int       `json:"nodes"`
	Failed       bool      `json:"failed,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Record is a stored document with its summary.
type Record struct {
	Summary  Summary            `json:"summary"`
	Document hierarchy.Document `json:"document"`
}

// NewRecord builds a record, filling the summary from doc.
func NewRecord(id, filename, contentHash string, doc hierarchy.Document, createdAt time.Time) Record {
	md := doc.Metadata
	return Record{
		Summary: Summary{
			ID:           id,
			Title:        md.Title,
			Jurisdiction: md.Jurisdiction,
			DocumentType: md.DocumentType,
			Source:       md.Source,
			Filename:     filename,
			ContentHash:  contentHash,
			Nodes:        hierarchy.Count(doc.Hierarchy),
			Failed:       md.IsFailed(),
			CreatedAt:    createdAt.UTC(),
		},
		Document: doc,
	}
}

// Store persists documents. FindByHash supports skipping documents whose
// text was already structured.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, limit int) ([]Summary, error)
	Delete(ctx context.Context, id string) error
	FindByHash(ctx context.Context, hash string) (id string, ok bool, err error)
}

// ContentHashHex returns the hex-encoded SHA-256 of data.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
