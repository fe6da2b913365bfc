package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-facelabel/internal/log"
)

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Name for logging
	name string
	log  *slog.Logger

	// Registered clients
	clients map[*Client]bool

	// Inbound messages to broadcast
	broadcast chan Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Per-client send buffer
	clientBuffer int

	// Mutex for client count (read-only access from outside)
	mu sync.RWMutex

	running atomic.Bool
	dropped atomic.Uint64
	done    chan struct{}
}

// Option configures a Hub.
type Option func(*Hub)

// WithClientBuffer sets how many messages may queue per client before the
// client is dropped as too slow. Video hubs want a small value so a stalled
// viewer is cut off quickly.
func WithClientBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.clientBuffer = n
		}
	}
}

// New creates a new Hub
func New(name string, opts ...Option) *Hub {
	h := &Hub{
		name:         name,
		log:          log.Component("hub").With("hub", name),
		clients:      make(map[*Client]bool),
		broadcast:    make(chan Message, 256),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		clientBuffer: 256,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run is the hub's main loop. It returns when ctx is cancelled, after
// disconnecting every client.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client connected", "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client disconnected", "clients", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.offer(message) {
					close(client.send)
					delete(h.clients, client)
					h.log.Warn("dropped slow client", "type", message.Type, "skipped", client.skipped)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected clients. It never blocks;
// when the hub is backed up the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
		h.log.Debug("broadcast channel full, dropping message")
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// BroadcastBinary broadcasts binary data (e.g., JPEG frames)
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(NewBinaryMessage(data))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many broadcasts were discarded because the hub was
// backed up.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
