package hierarchy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// nodeSchema is the minimal shape a candidate object must have to be treated
// as a hierarchy node. Children are checked one at a time as they are decoded.
const nodeSchema = `{
	"type": "object",
	"required": ["id", "type", "level", "references", "children"],
	"properties": {
		"id":         {"type": "string"},
		"type":       {"type": "string"},
		"level":      {"type": "number"},
		"references": {"type": "array"},
		"children":   {"type": "array"}
	}
}`

var compiledNodeSchema = jsonschema.MustCompileString("node.schema.json", nodeSchema)

// ShapeError reports a candidate that is valid JSON but not a node.
type ShapeError struct {
	Cause error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("invalid node shape: %v", e.Cause)
}

func (e *ShapeError) Unwrap() error { return e.Cause }

// ValidateValue checks an already-decoded JSON value against the node shape.
func ValidateValue(v any) error {
	if err := compiledNodeSchema.Validate(v); err != nil {
		return &ShapeError{Cause: err}
	}
	return nil
}

// ValidateNode checks raw JSON against the node shape. Syntax errors are
// returned as-is; shape violations as *ShapeError.
func ValidateNode(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return ValidateValue(v)
}

// DecodeNode validates raw and decodes it into a Node. Decoding is lenient
// where the shape allows it: an integral level such as 1.0 is accepted, and
// number, title and text may be JSON numbers or booleans. A child that fails
// the shape check is dropped without losing its parent.
func DecodeNode(raw []byte) (Node, error) {
	if err := ValidateNode(raw); err != nil {
		return Node{}, err
	}
	n, err := decodeNode(raw)
	if err != nil {
		return Node{}, &ShapeError{Cause: err}
	}
	return n.Clone(), nil
}

type looseNode struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Number     json.RawMessage   `json:"number"`
	Title      json.RawMessage   `json:"title"`
	Text       json.RawMessage   `json:"text"`
	Level      float64           `json:"level"`
	References []json.RawMessage `json:"references"`
	Children   []json.RawMessage `json:"children"`
}

func decodeNode(raw []byte) (Node, error) {
	var ln looseNode
	if err := json.Unmarshal(raw, &ln); err != nil {
		return Node{}, err
	}
	if ln.Level != math.Trunc(ln.Level) || math.Abs(ln.Level) > math.MaxInt32 {
		return Node{}, fmt.Errorf("level %v is not an integer", ln.Level)
	}

	n := Node{
		ID:     ln.ID,
		Type:   ln.Type,
		Number: looseString(ln.Number),
		Title:  looseString(ln.Title),
		Text:   looseString(ln.Text),
		Level:  int(ln.Level),
	}
	for _, r := range ln.References {
		var ref Reference
		if err := json.Unmarshal(r, &ref); err != nil {
			continue
		}
		n.References = append(n.References, ref)
	}
	for _, c := range ln.Children {
		if ValidateNode(c) != nil {
			continue
		}
		child, err := decodeNode(c)
		if err != nil {
			continue
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}

// looseString reads a JSON string, number or boolean as text. Anything else
// reads as "".
func looseString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case 't', 'f':
		return string(raw)
	case 'n', '{', '[':
		return ""
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return ""
	}
	return num.String()
}

// DecodeMetadata decodes a metadata object. Unknown keys are ignored.
func DecodeMetadata(raw []byte) (Metadata, error) {
	var md Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return Metadata{}, err
	}
	return md, nil
}
