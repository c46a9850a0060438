// Package sse fans server events out to connected browsers. Publishing never
// blocks: a client whose buffer is full misses the event.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrHubClosed is returned by Subscribe after Close.
var ErrHubClosed = errors.New("sse: hub closed")

const DefaultBuffer = 16

// Event is one named server-sent event with a JSON payload.
type Event struct {
	Name string
	Data []byte
}

// NewEvent encodes data as the event payload.
func NewEvent(name string, data any) (Event, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s event: %w", name, err)
	}
	return Event{Name: name, Data: b}, nil
}

// WriteTo writes the event in text/event-stream framing.
func (e Event) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "event: %s\n", e.Name)
	for _, line := range strings.Split(string(e.Data), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Stats counts events across the hub's lifetime.
type Stats struct {
	Published uint64
	Sent      uint64
	Dropped   uint64
	Clients   int
}

// Hub is safe for concurrent use.
type Hub struct {
	buffer int

	mu      sync.RWMutex
	clients map[uint64]chan Event
	nextID  uint64
	closed  bool

	published atomic.Uint64
	sent      atomic.Uint64
	dropped   atomic.Uint64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{buffer: buffer, clients: make(map[uint64]chan Event)}
}

// Publish encodes data and offers it to every client.
func (h *Hub) Publish(name string, data any) {
	ev, err := NewEvent(name, data)
	if err != nil {
		slog.Error("sse publish", "err", err)
		return
	}
	h.Broadcast(ev)
}

// Broadcast offers ev to every client without blocking.
func (h *Hub) Broadcast(ev Event) {
	h.published.Add(1)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.clients {
		select {
		case ch <- ev:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
			slog.Warn("sse client lagging, event dropped", "client", id, "event", ev.Name)
		}
	}
}

// Subscribe registers a client. The channel is closed by Unsubscribe or Close.
func (h *Hub) Subscribe() (uint64, <-chan Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, nil, ErrHubClosed
	}
	h.nextID++
	ch := make(chan Event, h.buffer)
	h.clients[h.nextID] = ch
	return h.nextID, ch, nil
}

func (h *Hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(ch)
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.clients {
		delete(h.clients, id)
		close(ch)
	}
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	return Stats{
		Published: h.published.Load(),
		Sent:      h.sent.Load(),
		Dropped:   h.dropped.Load(),
		Clients:   n,
	}
}
