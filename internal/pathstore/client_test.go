package pathstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docstruct/internal/pathstore"
	"github.com/dgallion1/docstruct/internal/pathstore/pathstoretest"
)

func TestClientRoundTrip(t *testing.T) {
	srv := pathstoretest.NewServer()
	defer srv.Close()
	c := pathstore.NewClient(srv.URL+"/", "key")
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.PutNode(ctx, "a/b/one", pathstore.NodeRequest{Value: map[string]int{"n": 1}}))
	require.NoError(t, c.PutNode(ctx, "a/b/two", pathstore.NodeRequest{Value: map[string]int{"n": 2}}))

	node, err := c.GetNode(ctx, "a/b/one")
	require.NoError(t, err)
	require.NotNil(t, node)
	var v struct{ N int }
	require.NoError(t, json.Unmarshal(node.Value, &v))
	assert.Equal(t, 1, v.N)

	children, err := c.ListChildren(ctx, "a/b", 10)
	require.NoError(t, err)
	assert.Len(t, children, 2)

	children, err = c.ListChildren(ctx, "a/b", 1)
	require.NoError(t, err)
	assert.Len(t, children, 1)

	require.NoError(t, c.DeleteNode(ctx, "a", true))
	node, err = c.GetNode(ctx, "a/b/one")
	require.NoError(t, err)
	assert.Nil(t, node)

	// Deleting something already gone is not an error.
	require.NoError(t, c.DeleteNode(ctx, "a/b/one", false))

	require.NoError(t, c.PutLink(ctx, pathstore.LinkRequest{From: "x", To: "y", Weight: 0.5}))
	assert.Len(t, srv.Links(), 1)
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := pathstore.NewClient(srv.URL, "secret")

	err := c.PutNode(context.Background(), "k", pathstore.NodeRequest{Value: 1})
	var se *pathstore.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Contains(t, se.Body, "boom")
}
