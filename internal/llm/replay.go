package llm

import (
	"context"
	"sync"
)

// Replay plays back recorded model responses in fixed-size fragments. Each
// StreamText call consumes the next response; the last one repeats.
type Replay struct {
	responses []string
	fragment  int
	model     string

	mu    sync.Mutex
	calls int
	reqs  []Request
}

// NewReplay returns a client that streams responses in fragments of
// fragmentSize bytes (64 when non-positive).
func NewReplay(fragmentSize int, responses ...string) *Replay {
	if fragmentSize <= 0 {
		fragmentSize = 64
	}
	return &Replay{responses: responses, fragment: fragmentSize, model: "replay"}
}

func (r *Replay) Model() string { return r.model }

func (r *Replay) StreamText(ctx context.Context, req Request, onText func(string) error) error {
	r.mu.Lock()
	i := r.calls
	r.calls++
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()

	if len(r.responses) == 0 {
		return nil
	}
	if i >= len(r.responses) {
		i = len(r.responses) - 1
	}
	text := r.responses[i]

	for start := 0; start < len(text); start += r.fragment {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+r.fragment, len(text))
		if err := onText(text[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// Requests returns the requests received so far.
func (r *Replay) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.reqs...)
}
