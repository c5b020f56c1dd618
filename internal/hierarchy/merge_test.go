package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id, text string, refs int) Node {
	n := Node{ID: id, Type: "section", Level: 1, Text: text}
	for i := 0; i < refs; i++ {
		n.References = append(n.References, Reference{Target: "external", Text: "ref", Type: RefExternal})
	}
	return n
}

func TestMergeNodes_OverlappingID(t *testing.T) {
	a := node("sec1", "A", 2)
	b := node("sec1", "B", 3)

	merged := MergeNodes([]Node{a}, b)

	require.Len(t, merged, 1)
	assert.Equal(t, "A B", merged[0].Text)
	assert.Len(t, merged[0].References, 5)
}

func TestMergeNodes_DisjointIsOrderIndependentUnion(t *testing.T) {
	left := []Node{node("a", "1", 0), node("b", "2", 0)}
	right := []Node{node("c", "3", 0)}

	ab := MergeNodes(left, right...)
	ba := MergeNodes(right, left...)

	require.Len(t, ab, 3)
	require.Len(t, ba, 3)
	byID := func(ns []Node) map[string]string {
		m := map[string]string{}
		for _, n := range ns {
			m[n.ID] = n.Text
		}
		return m
	}
	assert.Equal(t, byID(ab), byID(ba))
}

func TestMergeNodes_ChildrenMergedRecursively(t *testing.T) {
	a := node("p1", "part", 0)
	a.Children = []Node{node("p1:s1", "first half", 1)}
	b := node("p1", "", 0)
	b.Children = []Node{node("p1:s1", "second half", 1), node("p1:s2", "new", 0)}

	merged := MergeNodes([]Node{a}, b)

	require.Len(t, merged, 1)
	assert.Equal(t, "part", merged[0].Text, "empty text is not padded")
	require.Len(t, merged[0].Children, 2)
	assert.Equal(t, "first half second half", merged[0].Children[0].Text)
	assert.Len(t, merged[0].Children[0].References, 2)
	assert.Equal(t, "p1:s2", merged[0].Children[1].ID)
}

func TestMergeNodes_DoesNotMutateInputs(t *testing.T) {
	existing := []Node{node("x", "one", 1)}
	incoming := node("x", "two", 1)

	_ = MergeNodes(existing, incoming)

	assert.Equal(t, "one", existing[0].Text)
	assert.Len(t, existing[0].References, 1)
}

func TestMergeNodes_DuplicateReferencesKept(t *testing.T) {
	ref := Reference{Target: "sec2", Text: "section 2", Type: RefInternal}
	a := Node{ID: "s", References: []Reference{ref}}
	b := Node{ID: "s", References: []Reference{ref}}

	merged := MergeNodes([]Node{a}, b)

	require.Len(t, merged, 1)
	assert.Equal(t, []Reference{ref, ref}, merged[0].References)
}

func TestMergeNodes_EmptyIDsNeverMerge(t *testing.T) {
	merged := MergeNodes([]Node{{Text: "a"}}, Node{Text: "b"})
	assert.Len(t, merged, 2)
}
