// Package hub fans dashboard streams out to websocket clients. One hub
// serves one stream: the web server runs one for status snapshots and
// another for log lines. A client that cannot keep up with the
// broadcast rate is dropped rather than allowed to stall the loop.
package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned when attaching to a hub that is not running.
var ErrClosed = errors.New("hub: closed")

// MessageType tells the client pump how to frame the payload.
type MessageType int

const (
	// JSONMessage is a JSON-encoded text frame.
	JSONMessage MessageType = iota
	// BinaryMessage is a raw binary frame, such as a JPEG.
	BinaryMessage
)

// Message is one broadcast payload.
type Message struct {
	Type MessageType
	Data []byte
}

// Hub owns the client set and the broadcast loop. The client map lives
// inside run, so only that goroutine ever touches it.
type Hub struct {
	name   string
	logger *slog.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan Message

	mu      sync.Mutex
	count   int
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New creates a hub for one named stream.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 256),
	}
}

// Start launches the broadcast loop. Starting a running hub is a no-op.
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}
	h.running = true
	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	go h.run(h.stop, h.done)
	return nil
}

// Close stops the loop and disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	stop, done := h.stop, h.done
	h.mu.Unlock()

	close(stop)
	<-done
	return nil
}

// Broadcast queues a message for every connected client. When the queue
// is full the message is dropped; status streams always have a fresher
// snapshot coming.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping message", "hub", h.name)
	}
}

// BroadcastJSON encodes v and broadcasts it as a text frame.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(Message{Type: JSONMessage, Data: data})
	return nil
}

// BroadcastBinary broadcasts raw bytes, such as a camera frame.
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(Message{Type: BinaryMessage, Data: data})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

func (h *Hub) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	clients := make(map[*Client]bool)
	defer func() {
		for c := range clients {
			close(c.send)
		}
		h.setCount(0)
	}()

	for {
		select {
		case <-stop:
			return

		case c := <-h.register:
			clients[c] = true
			h.setCount(len(clients))
			h.logger.Debug("dashboard client connected",
				"hub", h.name, "client", c.id, "total", len(clients))

		case c := <-h.unregister:
			if clients[c] {
				delete(clients, c)
				close(c.send)
			}
			h.setCount(len(clients))
			h.logger.Debug("dashboard client disconnected",
				"hub", h.name, "client", c.id, "total", len(clients))

		case msg := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- msg:
				default:
					delete(clients, c)
					close(c.send)
					h.logger.Warn("dropped slow dashboard client",
						"hub", h.name, "client", c.id)
				}
			}
			h.setCount(len(clients))
		}
	}
}
