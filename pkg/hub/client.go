package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	// writeWait bounds a single websocket write.
	writeWait = 10 * time.Second

	// pongWait is how long a client may go silent before it is
	// considered dead. pingPeriod must be shorter.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize allows for camera frames on binary streams.
	maxMessageSize = 512 * 1024

	// clientBuffer is the per-client send queue; overflowing it gets
	// the client dropped.
	clientBuffer = 256
)

// Client is one websocket connection attached to a hub.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan Message
	stopped <-chan struct{}
}

// Attach registers a new client for conn. It fails with ErrClosed when
// the hub is not running.
func (h *Hub) Attach(conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	stop := h.stop
	h.mu.Unlock()

	c := &Client{
		id:      uuid.NewString(),
		hub:     h,
		conn:    conn,
		send:    make(chan Message, clientBuffer),
		stopped: stop,
	}
	select {
	case h.register <- c:
		return c, nil
	case <-stop:
		return nil, ErrClosed
	}
}

// ID returns the client's identifier, used in logs.
func (c *Client) ID() string { return c.id }

// Run pumps the connection until it closes. Call it from the websocket
// handler; it blocks for the life of the connection.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump consumes inbound frames to keep pong handling alive and to
// notice disconnection. Dashboard clients are not expected to send
// anything meaningful.
func (c *Client) readPump() {
	defer func() {
		c.detach()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			frame := websocket.TextMessage
			if msg.Type == BinaryMessage {
				frame = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(frame, msg.Data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// detach hands the client back to the hub, or gives up if the hub
// already stopped.
func (c *Client) detach() {
	select {
	case c.hub.unregister <- c:
	case <-c.stopped:
	}
}
