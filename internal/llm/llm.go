// Package llm streams completions from a language model as text fragments.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single streaming completion call.
type Request struct {
	System    string
	Messages  []Message
	MaxTokens int
}

// DefaultMaxTokens bounds a structuring response.
const DefaultMaxTokens = 16000

// UserRequest builds a request with one user turn.
func UserRequest(system, prompt string) Request {
	return Request{
		System:    system,
		Messages:  []Message{{Role: "user", Content: prompt}},
		MaxTokens: DefaultMaxTokens,
	}
}

// Client streams model output. StreamText calls onText for each text
// fragment in arrival order and returns when the stream ends. An error from
// onText stops the stream and is returned as-is.
type Client interface {
	StreamText(ctx context.Context, req Request, onText func(string) error) error
	Model() string
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Timed records the wall time and output size of every StreamText call in
// stats.
func Timed(c Client, stats *LLMStats) Client {
	if stats == nil {
		return c
	}
	return &timedClient{Client: c, stats: stats}
}

type timedClient struct {
	Client
	stats *LLMStats
}

func (t *timedClient) StreamText(ctx context.Context, req Request, onText func(string) error) error {
	start := time.Now()
	chars := 0
	err := t.Client.StreamText(ctx, req, func(s string) error {
		chars += len(s)
		return onText(s)
	})
	if err != nil {
		t.stats.RecordFailure()
		return err
	}
	t.stats.Record(time.Since(start).Milliseconds(), chars)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
