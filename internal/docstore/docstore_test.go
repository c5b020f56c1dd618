package docstore

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docstruct/internal/hierarchy"
	"github.com/dgallion1/docstruct/internal/pathstore"
	"github.com/dgallion1/docstruct/internal/pathstore/pathstoretest"
)

func sampleDoc() hierarchy.Document {
	return hierarchy.NewDocument(
		hierarchy.Metadata{Title: "Data Act", Jurisdiction: "EU", DocumentType: "regulation", Source: "OJ"},
		[]hierarchy.Node{{
			ID: "art1", Type: "article", Number: "1", Text: "Scope.", Level: 1,
			Children: []hierarchy.Node{{
				ID: "art1:1", Type: "paragraph", Number: "1", Text: "As set out in Article 2.", Level: 2,
				References: []hierarchy.Reference{
					{Target: "art2", Text: "Article 2", Type: hierarchy.RefInternal},
					{Target: "external", Text: "Directive 95/46", Type: hierarchy.RefExternal},
				},
			}},
		}, {
			ID: "art2", Type: "article", Number: "2", Text: "Definitions.", Level: 1,
		}},
	)
}

func stores(t *testing.T) map[string]Store {
	srv := pathstoretest.NewServer()
	t.Cleanup(srv.Close)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return map[string]Store{
		"memory":    NewMemoryStore(),
		"pathstore": NewPathstoreStore(pathstore.NewClient(srv.URL, ""), log, 2),
	}
}

func TestNewRecord(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := NewRecord("id1", "act.pdf", "abc", sampleDoc(), now)
	assert.Equal(t, "Data Act", rec.Summary.Title)
	assert.Equal(t, 3, rec.Summary.Nodes)
	assert.False(t, rec.Summary.Failed)

	failed := NewRecord("id2", "", "", hierarchy.NewDocument(hierarchy.FailedMetadata(), nil), now)
	assert.True(t, failed.Summary.Failed)
	assert.Equal(t, 0, failed.Summary.Nodes)
}

func TestContentHashHex(t *testing.T) {
	h := ContentHashHex([]byte("hello"))
	assert.Len(t, h, 64)
	assert.Equal(t, h, ContentHashHex([]byte("hello")))
	assert.NotEqual(t, h, ContentHashHex([]byte("hello!")))
}

func TestStoreLifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

			first := NewRecord("doc-1", "a.txt", "hash-a", sampleDoc(), base)
			second := NewRecord("doc-2", "b.txt", "hash-b", sampleDoc(), base.Add(time.Hour))
			require.NoError(t, store.Save(ctx, first))
			require.NoError(t, store.Save(ctx, second))

			got, err := store.Get(ctx, "doc-1")
			require.NoError(t, err)
			assert.Equal(t, first.Summary, got.Summary)
			assert.Equal(t, first.Document, got.Document)

			list, err := store.List(ctx, 10)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "doc-2", list[0].ID)

			id, ok, err := store.FindByHash(ctx, "hash-a")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "doc-1", id)

			_, ok, err = store.FindByHash(ctx, "hash-z")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Delete(ctx, "doc-1"))
			_, err = store.Get(ctx, "doc-1")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, store.Delete(ctx, "doc-1"), ErrNotFound)

			_, ok, err = store.FindByHash(ctx, "hash-a")
			require.NoError(t, err)
			assert.False(t, ok)

			list, err = store.List(ctx, 10)
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestMemoryStoreListLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		rec := NewRecord(id, "", "", sampleDoc(), time.Unix(int64(i), 0))
		require.NoError(t, store.Save(ctx, rec))
	}
	list, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestPathstoreLayout(t *testing.T) {
	srv := pathstoretest.NewServer()
	defer srv.Close()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewPathstoreStore(pathstore.NewClient(srv.URL, ""), log, 4)

	rec := NewRecord("doc-1", "a.txt", "h1", sampleDoc(), time.Now())
	require.NoError(t, store.Save(context.Background(), rec))

	keys := srv.Keys()
	assert.Contains(t, keys, "docstruct/index/doc-1")
	assert.Contains(t, keys, "docstruct/documents/doc-1/document")
	assert.Contains(t, keys, "docstruct/documents/doc-1/nodes/art1")
	assert.Contains(t, keys, "docstruct/documents/doc-1/nodes/art1_1")
	assert.Contains(t, keys, "docstruct/documents/doc-1/nodes/art2")
	assert.Contains(t, keys, "docstruct/by_hash/h1/doc-1")

	v, ok := srv.Value("docstruct/documents/doc-1/nodes/art1_1")
	require.True(t, ok)
	assert.True(t, strings.Contains(string(v), `"parent":"art1"`))

	// Only the internal reference whose target exists becomes a link.
	links := srv.Links()
	require.Len(t, links, 1)
	assert.Equal(t, "docstruct/documents/doc-1/nodes/art1_1", links[0].From)
	assert.Equal(t, "docstruct/documents/doc-1/nodes/art2", links[0].To)
	assert.Equal(t, "Article 2", links[0].Summary)
}

func TestNodeKeySanitizes(t *testing.T) {
	assert.Equal(t, "docstruct/documents/d/nodes/part1_sec2_a", nodeKey("d", "part1:sec2:(a)"))
	assert.Equal(t, "docstruct/documents/d/nodes/unnamed", nodeKey("d", "::"))
	assert.Equal(t, "doc-9", lastSegment("docstruct.by_hash.h.doc-9"))
	assert.Equal(t, "doc-9", lastSegment("docstruct/by_hash/h/doc-9"))
}
