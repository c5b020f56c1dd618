package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docstruct/internal/hierarchy"
	"github.com/dgallion1/docstruct/internal/pathstore"
)

const (
	rootPrefix  = "docstruct"
	sourceLabel = "docstruct:"
)

// PathstoreStore lays documents out in pathstore:
//
//	docstruct/index/{id}                 summary
//	docstruct/documents/{id}/document    full document
//	docstruct/documents/{id}/nodes/{n}   one entry per node, linked by references
//	docstruct/by_hash/{hash}/{id}        dedup index
type PathstoreStore struct {
	ps            *pathstore.Client
	log           *slog.Logger
	maxConcurrent int
}

func NewPathstoreStore(ps *pathstore.Client, log *slog.Logger, maxConcurrent int) *PathstoreStore {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &PathstoreStore{ps: ps, log: log, maxConcurrent: maxConcurrent}
}

func indexKey(id string) string      { return rootPrefix + "/index/" + id }
func docPrefix(id string) string     { return rootPrefix + "/documents/" + id }
func hashKey(hash, id string) string { return rootPrefix + "/by_hash/" + hash + "/" + id }

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func nodeKey(docID, nodeID string) string {
	slug := strings.Trim(unsafeKeyChars.ReplaceAllString(nodeID, "_"), "_")
	if slug == "" {
		slug = "unnamed"
	}
	return docPrefix(docID) + "/nodes/" + slug
}

// lastSegment returns the final component of a key path; pathstore may
// report paths with '.' or '/' separators.
func lastSegment(key string) string {
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '.' || r == '/' })
	if len(parts) == 0 {
		return key
	}
	return parts[len(parts)-1]
}

// Save writes the document, its nodes and reference links, then the index
// entries. Index entries go last so a partially written document is never
// listed.
func (s *PathstoreStore) Save(ctx context.Context, rec Record) error {
	id := rec.Summary.ID
	source := sourceLabel + id
	log := s.log.With("doc_id", id)

	if err := s.ps.PutNode(ctx, docPrefix(id)+"/document", pathstore.NodeRequest{
		Value:      rec.Document,
		MemoryType: "semantic",
		Salience:   0.5,
		Source:     source,
	}); err != nil {
		return fmt.Errorf("store document: %w", err)
	}

	type flatNode struct {
		node   hierarchy.Node
		parent string
	}
	var flat []flatNode
	ids := make(map[string]bool)
	parents := []string{""}
	hierarchy.Walk(rec.Document.Hierarchy, func(n *hierarchy.Node, depth int) bool {
		parents = append(parents[:depth+1], n.ID)
		flat = append(flat, flatNode{node: *n, parent: parents[depth]})
		ids[n.ID] = true
		return true
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for _, fn := range flat {
		g.Go(func() error {
			n := fn.node
			return s.ps.PutNode(gctx, nodeKey(id, n.ID), pathstore.NodeRequest{
				Value: map[string]any{
					"id":     n.ID,
					"type":   n.Type,
					"number": n.Number,
					"title":  n.Title,
					"text":   n.Text,
					"level":  n.Level,
					"parent": fn.parent,
				},
				MemoryType: "semantic",
				Salience:   0.3,
				Source:     source,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("store nodes: %w", err)
	}

	links := 0
	for _, fn := range flat {
		for _, ref := range fn.node.References {
			if ref.Type != hierarchy.RefInternal || !ids[ref.Target] {
				continue
			}
			err := s.ps.PutLink(ctx, pathstore.LinkRequest{
				From:    nodeKey(id, fn.node.ID),
				To:      nodeKey(id, ref.Target),
				Weight:  0.5,
				Summary: ref.Text,
			})
			if err != nil {
				log.Warn("reference link write failed", "from", fn.node.ID, "to", ref.Target, "error", err)
				continue
			}
			links++
		}
	}

	if err := s.ps.PutNode(ctx, indexKey(id), pathstore.NodeRequest{
		Value:      rec.Summary,
		MemoryType: "metacognitive",
		Salience:   0.5,
		Source:     source,
	}); err != nil {
		return fmt.Errorf("store index: %w", err)
	}

	if rec.Summary.ContentHash != "" {
		if err := s.ps.PutNode(ctx, hashKey(rec.Summary.ContentHash, id), pathstore.NodeRequest{
			Value:      map[string]any{"filename": rec.Summary.Filename},
			MemoryType: "metacognitive",
			Salience:   0.1,
			Source:     source,
		}); err != nil {
			log.Error("hash index write failed", "error", err)
		}
	}

	log.Info("document stored", "nodes", len(flat), "links", links)
	return nil
}

func (s *PathstoreStore) summary(ctx context.Context, id string) (*Summary, error) {
	node, err := s.ps.GetNode(ctx, indexKey(id))
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, ErrNotFound
	}
	var sum Summary
	if err := json.Unmarshal(node.Value, &sum); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &sum, nil
}

func (s *PathstoreStore) Get(ctx context.Context, id string) (*Record, error) {
	sum, err := s.summary(ctx, id)
	if err != nil {
		return nil, err
	}
	node, err := s.ps.GetNode(ctx, docPrefix(id)+"/document")
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, ErrNotFound
	}
	var doc hierarchy.Document
	if err := json.Unmarshal(node.Value, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &Record{Summary: *sum, Document: doc}, nil
}

// List returns summaries newest first.
func (s *PathstoreStore) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 200
	}
	children, err := s.ps.ListChildren(ctx, rootPrefix+"/index", limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]Summary, 0, len(children))
	for _, child := range children {
		var sum Summary
		if err := json.Unmarshal(child.Value, &sum); err != nil {
			s.log.Warn("skipping unreadable index entry", "key", child.Key, "error", err)
			continue
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *PathstoreStore) Delete(ctx context.Context, id string) error {
	sum, err := s.summary(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ps.DeleteNode(ctx, indexKey(id), false); err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	if err := s.ps.DeleteNode(ctx, docPrefix(id), true); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if sum.ContentHash != "" {
		if err := s.ps.DeleteNode(ctx, hashKey(sum.ContentHash, id), false); err != nil {
			s.log.Warn("hash index delete failed", "doc_id", id, "error", err)
		}
	}
	return nil
}

func (s *PathstoreStore) FindByHash(ctx context.Context, hash string) (string, bool, error) {
	children, err := s.ps.ListChildren(ctx, rootPrefix+"/by_hash/"+hash, 1)
	if err != nil {
		return "", false, err
	}
	if len(children) == 0 {
		return "", false, nil
	}
	return lastSegment(children[0].Key), true, nil
}
