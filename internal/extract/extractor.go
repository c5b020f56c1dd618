package extract

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/dgallion1/docstruct/internal/hierarchy"
)

// EventType tags an extraction event.
type EventType string

const (
	EventMetadata EventType = "metadata"
	EventNode     EventType = "node"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is produced by State.Process. Exactly one payload field is set,
// matching Type.
type Event struct {
	Type     EventType
	Metadata *hierarchy.Metadata
	Node     *hierarchy.Node
	Document *hierarchy.Document
	Err      error
}

// Phase is the extractor state machine position.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseAccumulating
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseAccumulating:
		return "accumulating"
	case PhaseComplete:
		return "complete"
	default:
		return "empty"
	}
}

// State is the extraction state of one model stream. It is a plain value:
// Process returns the next state and never modifies the receiver, so states
// for different streams can live side by side without coordination.
type State struct {
	Text     string
	Metadata *hierarchy.Metadata
	Nodes    []hierarchy.Node // emitted nodes, in emission order
	Complete bool

	// seen counts valid candidates already consumed from the hierarchy array.
	seen int
}

// Phase reports where the state is in EMPTY → ACCUMULATING → COMPLETE.
func (s State) Phase() Phase {
	switch {
	case s.Complete:
		return PhaseComplete
	case s.Text != "":
		return PhaseAccumulating
	default:
		return PhaseEmpty
	}
}

// Process appends fragment to the buffer and returns the new state together
// with the events that became available: metadata (at most once per state),
// newly closed nodes in buffer order, then completion. A failure inside the
// call yields one error event; events computed before the failure are kept.
func (s State) Process(fragment string) (next State, events []Event) {
	next = s
	next.Nodes = slices.Clip(s.Nodes)
	next.Text = s.Text + fragment
	if next.Complete {
		return next, nil
	}

	defer func() {
		if r := recover(); r != nil {
			events = append(events, Event{
				Type: EventError,
				Err:  &ExtractionError{BufferLen: len(next.Text), Cause: fmt.Errorf("%v", r)},
			})
		}
	}()

	if next.Metadata == nil {
		if md, status := metadataCandidate(next.Text); status == CandidateComplete {
			next.Metadata = md
			events = append(events, Event{Type: EventMetadata, Metadata: md})
		}
	}

	var valid []hierarchy.Node
	for _, c := range NodeCandidates(next.Text) {
		if c.Status == CandidateComplete {
			valid = append(valid, c.Node)
		}
	}
	if len(valid) > next.seen {
		ids := make(map[string]bool, len(next.Nodes))
		for _, n := range next.Nodes {
			ids[n.ID] = true
		}
		for _, n := range valid[next.seen:] {
			if ids[n.ID] {
				continue
			}
			ids[n.ID] = true
			next.Nodes = append(next.Nodes, n)
			events = append(events, Event{Type: EventNode, Node: &n})
		}
		next.seen = len(valid)
	}

	if doc, ok := next.completed(); ok {
		next.Complete = true
		events = append(events, Event{Type: EventComplete, Document: &doc})
	}
	return next, events
}

// completed checks the whole buffer. It is complete only when, trimmed, it is
// one JSON object that parses.
func (s State) completed() (hierarchy.Document, bool) {
	trimmed := strings.TrimSpace(s.Text)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return hierarchy.Document{}, false
	}
	if !json.Valid([]byte(trimmed)) {
		return hierarchy.Document{}, false
	}

	md := hierarchy.UnknownMetadata()
	if s.Metadata != nil {
		md = *s.Metadata
	} else {
		var top struct {
			Metadata *hierarchy.Metadata `json:"metadata"`
		}
		if err := json.Unmarshal([]byte(trimmed), &top); err == nil && top.Metadata != nil {
			md = *top.Metadata
		}
	}
	return hierarchy.NewDocument(md, s.Nodes), true
}

// Extractor is a convenience holder for one stream's State.
type Extractor struct {
	state State
}

// NewExtractor returns an extractor in the empty phase.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ProcessChunk feeds one model fragment and returns the resulting events.
func (e *Extractor) ProcessChunk(text string) []Event {
	var events []Event
	e.state, events = e.state.Process(text)
	return events
}

// State returns the current state value.
func (e *Extractor) State() State { return e.state }

// Reset discards the buffer and everything extracted so far.
func (e *Extractor) Reset() { e.state = State{} }
