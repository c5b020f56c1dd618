// Package sse fans parse job events out to server-sent-event clients.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is one job event. Channel is the job id; Seq orders events within
// a job starting at 1.
type Message struct {
	Channel string          `json:"channel"`
	Seq     int64           `json:"seq"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Terminal event names end a job's stream.
const (
	EventComplete = "complete"
	EventError    = "error"
)

func (m Message) terminal() bool {
	return m.Event == EventComplete || m.Event == EventError
}

// Client is one connected event stream.
type Client struct {
	ID       uuid.UUID
	Channels map[string]bool
	Outbound chan Message
	done     chan struct{}
	once     sync.Once
}

// Hub routes messages to the clients subscribed to their channel.
type Hub struct {
	mu            sync.RWMutex
	log           *slog.Logger
	subscriptions map[string]map[*Client]bool
	heartbeat     time.Duration
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "sse_hub"),
		subscriptions: make(map[string]map[*Client]bool),
		heartbeat:     15 * time.Second,
	}
}

func (h *Hub) NewClient() *Client {
	return &Client{
		ID:       uuid.New(),
		Channels: make(map[string]bool),
		Outbound: make(chan Message, 64),
		done:     make(chan struct{}),
	}
}

func (h *Hub) AddChannel(c *Client, channel string) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c.Channels[channel] = true
	clients, ok := h.subscriptions[channel]
	if !ok {
		clients = make(map[*Client]bool)
		h.subscriptions[channel] = clients
	}
	clients[c] = true
	h.log.Debug("sse client subscribed", "client_id", c.ID, "channel", channel)
}

func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range c.Channels {
		if subs, ok := h.subscriptions[ch]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.subscriptions, ch)
			}
		}
	}
	c.Channels = make(map[string]bool)
}

// Subscribers returns how many clients listen on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[channel])
}

// Broadcast delivers msg to every subscriber of its channel without
// blocking. A client whose buffer is full is closed instead: its stream ends
// after the buffered messages, and the reconnecting client resumes from
// Last-Event-ID.
func (h *Hub) Broadcast(msg Message) {
	if msg.Channel == "" {
		return
	}

	var overflow []*Client
	h.mu.RLock()
	for c := range h.subscriptions[msg.Channel] {
		select {
		case c.Outbound <- msg:
		default:
			overflow = append(overflow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range overflow {
		h.log.Warn("closing slow sse client; outbound buffer full", "client_id", c.ID, "channel", msg.Channel, "seq", msg.Seq)
		h.CloseClient(c)
	}
}

// CloseClient unsubscribes c and stops its ServeHTTP loop.
func (h *Hub) CloseClient(c *Client) {
	c.once.Do(func() {
		close(c.done)
		h.RemoveClient(c)
	})
}

// ServeHTTP writes backlog, then live messages, as an event stream until a
// terminal event is written, the client goes away, or CloseClient is called.
// Live messages with a Seq already covered by the backlog are skipped.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, c *Client, backlog []Message) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	var last int64
	write := func(msg Message) bool {
		if msg.Seq != 0 && msg.Seq <= last {
			return false
		}
		last = msg.Seq
		if err := writeEvent(w, msg); err != nil {
			h.log.Warn("failed to write sse event", "client_id", c.ID, "error", err)
			return true
		}
		flusher.Flush()
		return msg.terminal()
	}

	for _, msg := range backlog {
		if write(msg) {
			return
		}
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			// Flush what was queued before the close.
			for {
				select {
				case msg := <-c.Outbound:
					if write(msg) {
						return
					}
				default:
					return
				}
			}
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg := <-c.Outbound:
			if write(msg) {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, msg Message) error {
	data := msg.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if msg.Seq > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", msg.Seq); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, data)
	return err
}
