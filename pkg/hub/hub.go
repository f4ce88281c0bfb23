package hub

import (
	"context"
	"encoding/json"
	"sync"

	customlog "github.com/open-teleop/dashboard/pkg/log"
)

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	name   string
	logger customlog.Logger

	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// welcome produces the messages a newly registered client starts with
	welcome func() []Message

	mu sync.RWMutex
}

// New creates a new Hub
func New(name string, logger customlog.Logger) *Hub {
	return &Hub{
		name:       name,
		logger:     logger.WithField("hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// SetWelcome sets the snapshot sent to every client on connect
func (h *Hub) SetWelcome(fn func() []Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.welcome = fn
}

// Run is the hub's main loop; it returns when ctx is done, closing every client
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			welcome := h.welcome
			h.mu.Unlock()
			if welcome != nil {
				for _, msg := range welcome() {
					select {
					case client.send <- msg:
					default:
					}
				}
			}
			h.logger.Infof("Client connected (%d total)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Infof("Client disconnected (%d remaining)", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// too slow, drop the client
					close(client.send)
					delete(h.clients, client)
					h.logger.Warnf("Dropped slow client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warnf("Broadcast channel full, dropping message")
	}
}

// BroadcastEvent encodes and broadcasts a JSON event
func (h *Hub) BroadcastEvent(eventType string, data interface{}) error {
	msg, err := NewEventMessage(eventType, data)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// BroadcastJSON marshals v and broadcasts it as-is
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// BroadcastBinary broadcasts binary data (rendered frames)
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(NewBinaryMessage(data))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
