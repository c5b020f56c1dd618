package hierarchy

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNode(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		valid bool
	}{
		{"minimal", `{"id":"p1","type":"part","level":1,"references":[],"children":[]}`, true},
		{"full", `{"id":"p1","type":"part","number":"I","title":"T","text":"x","level":2,"references":[{"target":"external","text":"USC","type":"external"}],"children":[]}`, true},
		{"missing id", `{"type":"part","level":1,"references":[],"children":[]}`, false},
		{"numeric id", `{"id":1,"type":"part","level":1,"references":[],"children":[]}`, false},
		{"string level", `{"id":"a","type":"part","level":"1","references":[],"children":[]}`, false},
		{"references not array", `{"id":"a","type":"part","level":1,"references":{},"children":[]}`, false},
		{"missing children", `{"id":"a","type":"part","level":1,"references":[]}`, false},
		{"not an object", `["id"]`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateNode([]byte(tc.raw))
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var shapeErr *ShapeError
			assert.True(t, errors.As(err, &shapeErr), "expected ShapeError, got %T", err)
		})
	}
}

func TestValidateNode_SyntaxErrorIsNotShapeError(t *testing.T) {
	err := ValidateNode([]byte(`{"id":`))
	require.Error(t, err)
	var shapeErr *ShapeError
	assert.False(t, errors.As(err, &shapeErr))
}

func TestDecodeNode_NormalizesSlices(t *testing.T) {
	n, err := DecodeNode([]byte(`{"id":"a","type":"x","level":1,"references":[],"children":[{"id":"a:1","type":"x","level":2,"references":[],"children":[]}]}`))
	require.NoError(t, err)
	require.Len(t, n.Children, 1)
	assert.NotNil(t, n.Children[0].References)
	assert.NotNil(t, n.Children[0].Children)

	out, err := json.Marshal(n.Children[0])
	require.NoError(t, err)
	assert.Contains(t, string(out), `"references":[]`)
}

func TestDecodeNode_FractionalLevelRejected(t *testing.T) {
	_, err := DecodeNode([]byte(`{"id":"a","type":"x","level":1.5,"references":[],"children":[]}`))
	assert.Error(t, err)
}

func TestDecodeNode_Lenient(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		level  int
		number string
	}{
		{"integral float level", `{"id":"a","type":"x","level":1.0,"references":[],"children":[]}`, 1, ""},
		{"exponent level", `{"id":"a","type":"x","level":2e0,"references":[],"children":[]}`, 2, ""},
		{"numeric number", `{"id":"a","type":"x","number":12,"level":1,"references":[],"children":[]}`, 1, "12"},
		{"null number", `{"id":"a","type":"x","number":null,"level":1,"references":[],"children":[]}`, 1, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n, err := DecodeNode([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.level, n.Level)
			assert.Equal(t, tc.number, n.Number)
		})
	}
}

func TestDecodeNode_BadChildDroppedParentKept(t *testing.T) {
	tests := []struct {
		name  string
		child string
		kept  bool
	}{
		{"float level", `{"id":"c","type":"x","level":2.0,"references":[],"children":[]}`, true},
		{"numeric number", `{"id":"c","type":"x","number":1,"level":2,"references":[],"children":[]}`, true},
		{"string level", `{"id":"c","type":"x","level":"2","references":[],"children":[]}`, false},
		{"missing children", `{"id":"c","type":"x","level":2,"references":[]}`, false},
		{"fractional level", `{"id":"c","type":"x","level":2.5,"references":[],"children":[]}`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := `{"id":"p","type":"part","level":1,"references":[],"children":[` + tc.child +
				`,{"id":"ok","type":"x","level":2,"references":[],"children":[]}]}`
			n, err := DecodeNode([]byte(raw))
			require.NoError(t, err)
			assert.Equal(t, "p", n.ID)

			var ids []string
			for _, c := range n.Children {
				ids = append(ids, c.ID)
			}
			if tc.kept {
				assert.Equal(t, []string{"c", "ok"}, ids)
			} else {
				assert.Equal(t, []string{"ok"}, ids)
			}
		})
	}
}

func TestDecodeNode_BadReferenceDropped(t *testing.T) {
	n, err := DecodeNode([]byte(`{"id":"a","type":"x","level":1,"references":[7,{"target":"b","text":"B","type":"internal"}],"children":[]}`))
	require.NoError(t, err)
	require.Len(t, n.References, 1)
	assert.Equal(t, "b", n.References[0].Target)
}

func TestMetadataPlaceholders(t *testing.T) {
	assert.True(t, FailedMetadata().IsFailed())
	assert.False(t, UnknownMetadata().IsFailed())
}
