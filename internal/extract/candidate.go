package extract

import (
	"encoding/json"

	"github.com/dgallion1/docstruct/internal/hierarchy"
)

// CandidateStatus classifies a possible node object found in a buffer.
type CandidateStatus int

const (
	// CandidateIncomplete is an object that has started but not closed yet.
	CandidateIncomplete CandidateStatus = iota
	// CandidateComplete is a closed object with a valid node shape.
	CandidateComplete
	// CandidateInvalid is a closed object that will never become a node.
	CandidateInvalid
)

func (s CandidateStatus) String() string {
	switch s {
	case CandidateComplete:
		return "complete"
	case CandidateInvalid:
		return "invalid"
	default:
		return "incomplete"
	}
}

// Candidate is one top-level object of the hierarchy array.
type Candidate struct {
	Span   Span
	Status CandidateStatus
	Node   hierarchy.Node
	Err    error // why an invalid candidate was rejected
}

// ClassifyCandidate parses raw as a node. closed reports whether the scanner
// saw the object's final brace.
func ClassifyCandidate(raw string, closed bool) Candidate {
	if !closed {
		return Candidate{Status: CandidateIncomplete}
	}
	if !json.Valid([]byte(raw)) {
		var v any
		return Candidate{Status: CandidateInvalid, Err: json.Unmarshal([]byte(raw), &v)}
	}
	n, err := hierarchy.DecodeNode([]byte(raw))
	if err != nil {
		return Candidate{Status: CandidateInvalid, Err: err}
	}
	return Candidate{Status: CandidateComplete, Node: n}
}

// NodeCandidates scans the hierarchy array of text and classifies every
// top-level object in it, in buffer order. The result depends only on text,
// so repeated calls on the same buffer return the same list.
func NodeCandidates(text string) []Candidate {
	at, ok := FindKey(text, "hierarchy")
	if !ok || text[at] != '[' {
		return nil
	}
	spans, open := ScanObjects(text, at+1)
	out := make([]Candidate, 0, len(spans)+1)
	for _, sp := range spans {
		c := ClassifyCandidate(sp.Of(text), true)
		c.Span = sp
		out = append(out, c)
	}
	if open != nil {
		out = append(out, Candidate{Span: *open, Status: CandidateIncomplete})
	}
	return out
}

// metadataCandidate returns the metadata object of text once it has closed
// and decodes.
func metadataCandidate(text string) (*hierarchy.Metadata, CandidateStatus) {
	at, ok := FindKey(text, "metadata")
	if !ok {
		return nil, CandidateIncomplete
	}
	sp, closed := ObjectAt(text, at)
	if !closed {
		if text[at] != '{' {
			return nil, CandidateInvalid
		}
		return nil, CandidateIncomplete
	}
	md, err := hierarchy.DecodeMetadata([]byte(sp.Of(text)))
	if err != nil {
		return nil, CandidateInvalid
	}
	return &md, CandidateComplete
}
