package bridge

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

// Loopback is an in-process Bus for simulation mode. Messages publish to
// subscribers on the caller's goroutine; handlers must not block.
type Loopback struct {
	mu     sync.RWMutex
	subs   map[string]func(data []byte)
	closed bool

	messagesSent atomic.Int64
}

// NewLoopback creates an empty loopback bus.
func NewLoopback() *Loopback {
	return &Loopback{
		subs: make(map[string]func(data []byte)),
	}
}

// Publish delivers msg to the topic's subscriber, if any.
func (l *Loopback) Publish(topic string, msg interface{}) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("bridge: marshal message for %s: %w", topic, err)
	}

	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return ErrClosed
	}
	handler := l.subs[topic]
	l.mu.RUnlock()

	l.messagesSent.Add(1)

	// Invoked outside the lock so handlers can publish in turn.
	if handler != nil {
		handler(raw)
	}
	return nil
}

// Subscribe registers handler for the topic.
func (l *Loopback) Subscribe(topic string, handler func(data []byte)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	l.subs[topic] = handler
	return nil
}

// Unsubscribe removes the topic handler.
func (l *Loopback) Unsubscribe(topic string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	delete(l.subs, topic)
	return nil
}

// Close shuts the bus down.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.subs = nil
	return nil
}

// Sent returns how many messages were published.
func (l *Loopback) Sent() int64 {
	return l.messagesSent.Load()
}

var _ Bus = (*Loopback)(nil)
