package devserver

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ngld/assetpipe/pkg/logging"
	"github.com/ngld/assetpipe/pkg/watch"
)

const heartbeatInterval = 30 * time.Second

// Event is sent to every connected browser
type Event struct {
	Type    string `json:"type"`
	Task    string `json:"task,omitempty"`
	Message string `json:"message,omitempty"`
}

// Hub manages the Server-Sent-Events clients
type Hub struct {
	mu      sync.RWMutex
	nextID  int
	clients map[int]*client
	closed  bool
}

type client struct {
	id   int
	ch   chan Event
	done chan struct{}
}

func NewHub() *Hub {
	return &Hub{clients: map[int]*client{}}
}

// ServeHTTP streams events until the client disconnects or the hub shuts down
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "live reload is shutting down", http.StatusServiceUnavailable)
		return
	}

	c := &client{id: h.nextID, ch: make(chan Event, 8), done: make(chan struct{})}
	h.nextID++
	h.clients[c.id] = c
	h.mu.Unlock()
	defer h.removeClient(c.id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	bw := bufio.NewWriter(w)
	write := func(data string) bool {
		if _, err := bw.WriteString(data); err != nil {
			logging.Log(r.Context()).Debug().Err(err).Msg("live reload write failed")
			return false
		}
		if err := bw.Flush(); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !write(": connected\n\n") {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case <-heartbeat.C:
			if !write(": ping\n\n") {
				return
			}
		case ev := <-c.ch:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if !write("data: " + string(data) + "\n\n") {
				return
			}
		}
	}
}

func (h *Hub) removeClient(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
	}
}

// Clients returns the number of connected browsers
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends ev to every client. Clients that can't keep up are dropped.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}

	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	for _, c := range snapshot {
		select {
		case c.ch <- ev:
		default:
			h.removeClient(c.id)
		}
	}
}

// Reload implements watch.Reloader
func (h *Hub) Reload(kind watch.ReloadKind) {
	if kind == watch.ReloadNone {
		return
	}
	h.Broadcast(Event{Type: kind.String()})
}

// Notify implements adapters.Notifier. The error is logged and shown in the browser console.
func (h *Hub) Notify(ctx context.Context, task string, err error) {
	logging.Log(ctx).Error().Err(err).Msgf("%s failed", task)
	h.Broadcast(Event{Type: "error", Task: task, Message: err.Error()})
}

// Shutdown disconnects all clients and rejects new ones
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*client{}
	h.mu.Unlock()

	for _, c := range clients {
		close(c.done)
	}
}
