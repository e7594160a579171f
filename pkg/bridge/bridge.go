// Package bridge provides the robot message transport: the rosbridge
// JSON protocol over a WebSocket connection.
//
// This package handles:
//   - Connection management with automatic retry
//   - Topic publish/subscribe with advertise caching
//   - Nav2 action goal submission, feedback, and cancellation
//   - An in-process loopback bus for simulation mode
package bridge

// Bus is the topic transport the automation modules talk through.
// Client implements it against a rosbridge server; Loopback implements
// it in-process for simulation.
type Bus interface {
	// Publish sends msg as JSON on the topic.
	Publish(topic string, msg interface{}) error

	// Subscribe registers handler for raw message payloads on the topic.
	// One handler per topic; subscribing again replaces it.
	Subscribe(topic string, handler func(data []byte)) error

	// Unsubscribe removes the topic handler.
	Unsubscribe(topic string) error

	// Close tears the transport down. Further calls fail with ErrClosed.
	Close() error
}
