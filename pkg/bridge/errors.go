package bridge

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotConnected is returned when the client has no live connection.
	ErrNotConnected = errors.New("bridge: not connected")

	// ErrClosed is returned for operations on a closed transport.
	ErrClosed = errors.New("bridge: closed")

	// ErrNoSuchAction is returned when cancelling an unknown action goal.
	ErrNoSuchAction = errors.New("bridge: no such action goal")
)

// SendError wraps a transport failure with the topic it happened on.
type SendError struct {
	Topic string
	Err   error
}

// Error implements the error interface.
func (e *SendError) Error() string {
	return fmt.Sprintf("bridge: send on %s: %v", e.Topic, e.Err)
}

// Unwrap returns the underlying error.
func (e *SendError) Unwrap() error {
	return e.Err
}
