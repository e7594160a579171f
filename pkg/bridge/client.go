package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a rosbridge client over a single WebSocket connection.
type Client struct {
	cfg    Config
	logger *slog.Logger
	topics *Topics

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool

	// gorilla allows one concurrent writer
	writeMu sync.Mutex

	// Advertised topics (cached so each is advertised once)
	advertised map[string]string

	// Topic handlers and in-flight action goals
	subs    map[string]func(data []byte)
	actions map[string]*actionGoal

	// Stats
	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
	reconnectCount   atomic.Int64
}

type actionGoal struct {
	action     string
	onFeedback func(values []byte)
	onResult   func(status int, values []byte)
}

// New creates a new bridge client.
// Call Connect() to establish the connection.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:        cfg,
		logger:     logger,
		topics:     NewTopics(cfg.Namespace),
		advertised: make(map[string]string),
		subs:       make(map[string]func(data []byte)),
		actions:    make(map[string]*actionGoal),
	}, nil
}

// Connect establishes the WebSocket connection and starts the read pump.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if c.conn != nil {
		return nil // Already connected
	}

	c.logger.Info("connecting to rosbridge", "url", c.cfg.URL)

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial rosbridge: %w", err)
	}

	c.conn = conn
	go c.readPump(conn)

	c.logger.Info("connected to rosbridge", "url", c.cfg.URL)
	return nil
}

// ConnectWithRetry connects with automatic retry on failure.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := c.Connect(ctx)
		if err == nil {
			return nil
		}

		attempts++
		c.reconnectCount.Add(1)

		if c.cfg.MaxReconnectAttempts > 0 && attempts >= c.cfg.MaxReconnectAttempts {
			return fmt.Errorf("max reconnect attempts (%d) reached: %w", c.cfg.MaxReconnectAttempts, err)
		}

		c.logger.Warn("rosbridge connection failed, retrying",
			"error", err,
			"attempt", attempts,
			"retry_in", c.cfg.ReconnectInterval,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ReconnectInterval):
		}
	}
}

// Topics returns the topics helper.
func (c *Client) Topics() *Topics {
	return c.topics
}

// IsConnected returns true if the client has a live connection.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.closed
}

// readPump reads frames until the connection drops or the client closes.
func (c *Client) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()

			if !closed {
				c.logger.Warn("rosbridge connection lost", "error", err)
			}
			return
		}

		c.messagesReceived.Add(1)
		c.dispatch(data)
	}
}

// dispatch routes one inbound frame to its topic or action handler.
func (c *Client) dispatch(data []byte) {
	env, err := ParseEnvelope(data)
	if err != nil {
		c.logger.Debug("dropping malformed frame", "error", err)
		return
	}

	switch env.Op {
	case OpPublish:
		c.mu.RLock()
		handler := c.subs[env.Topic]
		c.mu.RUnlock()
		if handler != nil {
			handler(env.Msg)
		}

	case OpActionFeedback:
		c.mu.RLock()
		goal := c.actions[env.ID]
		c.mu.RUnlock()
		if goal != nil && goal.onFeedback != nil {
			goal.onFeedback(env.Values)
		}

	case OpActionResult:
		c.mu.Lock()
		goal := c.actions[env.ID]
		delete(c.actions, env.ID)
		c.mu.Unlock()
		if goal != nil && goal.onResult != nil {
			goal.onResult(env.Status, env.Values)
		}

	case OpStatus:
		c.logger.Debug("rosbridge status", "level", env.Level, "id", env.ID)

	default:
		c.logger.Debug("ignoring frame", "op", string(env.Op))
	}
}

// send writes one frame. Serialized so concurrent publishers are safe.
func (c *Client) send(env *Envelope) error {
	c.mu.RLock()
	conn := c.conn
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	err := conn.WriteJSON(env)
	c.writeMu.Unlock()
	if err != nil {
		return err
	}

	c.messagesSent.Add(1)
	return nil
}

// Publish sends msg on the topic, advertising it first if needed.
func (c *Client) Publish(topic string, msg interface{}) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("bridge: marshal message for %s: %w", topic, err)
	}

	rosType := TypeFor(topic)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	_, known := c.advertised[topic]
	if !known && rosType != "" {
		c.advertised[topic] = rosType
	}
	c.mu.Unlock()

	if !known && rosType != "" {
		if err := c.send(&Envelope{Op: OpAdvertise, Topic: topic, Type: rosType}); err != nil {
			// Next publish re-advertises
			c.mu.Lock()
			delete(c.advertised, topic)
			c.mu.Unlock()
			return &SendError{Topic: topic, Err: err}
		}
	}

	if err := c.send(&Envelope{Op: OpPublish, Topic: topic, Msg: raw}); err != nil {
		return &SendError{Topic: topic, Err: err}
	}
	return nil
}

// Subscribe registers handler for the topic and tells the server.
func (c *Client) Subscribe(topic string, handler func(data []byte)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.subs[topic] = handler
	c.mu.Unlock()

	env := &Envelope{Op: OpSubscribe, Topic: topic, Type: TypeFor(topic)}
	if err := c.send(env); err != nil {
		c.mu.Lock()
		delete(c.subs, topic)
		c.mu.Unlock()
		return &SendError{Topic: topic, Err: err}
	}

	c.logger.Debug("subscribed to topic", "topic", topic)
	return nil
}

// Unsubscribe removes the topic handler and tells the server.
func (c *Client) Unsubscribe(topic string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	delete(c.subs, topic)
	c.mu.Unlock()

	if err := c.send(&Envelope{Op: OpUnsubscribe, Topic: topic}); err != nil {
		return &SendError{Topic: topic, Err: err}
	}
	return nil
}

// SendActionGoal submits an action goal. onResult fires exactly once when
// the server reports a terminal status; onFeedback may fire many times
// before that. The id must be unique per goal.
func (c *Client) SendActionGoal(action, actionType, id string, args interface{},
	onFeedback func(values []byte), onResult func(status int, values []byte)) error {

	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("bridge: marshal action args: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.actions[id] = &actionGoal{action: action, onFeedback: onFeedback, onResult: onResult}
	c.mu.Unlock()

	env := &Envelope{
		Op:         OpSendActionGoal,
		ID:         id,
		Action:     action,
		ActionType: actionType,
		Args:       raw,
		Feedback:   onFeedback != nil,
	}
	if err := c.send(env); err != nil {
		c.mu.Lock()
		delete(c.actions, id)
		c.mu.Unlock()
		return err
	}

	c.logger.Debug("action goal sent", "action", action, "id", id)
	return nil
}

// CancelActionGoal asks the server to cancel an in-flight goal. The
// result still arrives through the goal's onResult callback.
func (c *Client) CancelActionGoal(id string) error {
	c.mu.RLock()
	goal := c.actions[id]
	c.mu.RUnlock()

	if goal == nil {
		return ErrNoSuchAction
	}
	return c.send(&Envelope{Op: OpCancelActionGoal, ID: id, Action: goal.action})
}

// Close closes the connection and releases resources.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	c.subs = nil
	c.actions = nil
	c.advertised = nil

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
		c.conn = nil
	}

	c.logger.Info("bridge client closed")
	return nil
}

// Stats returns client statistics.
func (c *Client) Stats() ClientStats {
	c.mu.RLock()
	connected := c.conn != nil && !c.closed
	c.mu.RUnlock()

	return ClientStats{
		Connected:        connected,
		MessagesSent:     c.messagesSent.Load(),
		MessagesReceived: c.messagesReceived.Load(),
		ReconnectCount:   c.reconnectCount.Load(),
	}
}

// ClientStats contains client statistics.
type ClientStats struct {
	Connected        bool  `json:"connected"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesReceived int64 `json:"messages_received"`
	ReconnectCount   int64 `json:"reconnect_count"`
}

// TypeFor resolves the ROS message type for a known topic, matching by
// suffix so namespaced topics resolve too. Returns "" for unknown topics.
func TypeFor(topic string) string {
	switch {
	case strings.HasSuffix(topic, TopicCmdVel):
		return TypeTwist
	case strings.HasSuffix(topic, TopicBattery):
		return TypeBatteryState
	case strings.HasSuffix(topic, TopicScan):
		return TypeLaserScan
	case strings.HasSuffix(topic, TopicIMU):
		return TypeIMU
	case strings.HasSuffix(topic, TopicOdom):
		return TypeOdometry
	case strings.HasSuffix(topic, TopicAMCLPose), strings.HasSuffix(topic, TopicInitialPose):
		return TypePoseWithCov
	case strings.HasSuffix(topic, TopicDiagnostics):
		return TypeDiagnosticArray
	case strings.HasSuffix(topic, TopicCameraImage):
		return TypeCompressedImage
	case strings.HasSuffix(topic, TopicAudio), strings.HasSuffix(topic, TopicAudioOut):
		return TypeAudioData
	}
	return ""
}

var _ Bus = (*Client)(nil)
