package command

import (
	"log/slog"
	"sync"
	"time"

	"github.com/asadbey/turtlebot3-automation/pkg/bridge"
)

// DefaultMoveDuration is how long a directional command drives before
// the wheels are zeroed.
const DefaultMoveDuration = 2 * time.Second

// Mover executes timed velocity commands: publish a Twist, hold it for
// a duration, then publish zero. The hold is preemptible; whichever of
// the timer, a Stop, or a replacing Move gets there first, the zero for
// a given move goes out exactly once.
type Mover struct {
	bus    bridge.Bus
	topics *bridge.Topics
	logger *slog.Logger

	mu     sync.Mutex
	gen    int
	active bool
	stopCh chan struct{}
}

// NewMover creates a mover publishing on the velocity topic.
func NewMover(bus bridge.Bus, topics *bridge.Topics, logger *slog.Logger) *Mover {
	if topics == nil {
		topics = bridge.NewTopics("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mover{bus: bus, topics: topics, logger: logger}
}

// Move publishes the velocity and arms the zero for after the hold. A
// move already in progress is preempted first, its zero going out
// before the new velocity.
func (m *Mover) Move(linear, angular float64, hold time.Duration) error {
	if hold <= 0 {
		hold = DefaultMoveDuration
	}

	m.mu.Lock()
	m.preemptLocked()
	if err := m.publish(bridge.PlanarTwist(linear, angular)); err != nil {
		m.mu.Unlock()
		return err
	}
	m.gen++
	m.active = true
	m.stopCh = make(chan struct{})
	gen, stopCh := m.gen, m.stopCh
	m.mu.Unlock()

	m.logger.Debug("timed move started",
		"linear", linear, "angular", angular, "hold", hold)
	go m.hold(gen, stopCh, hold)
	return nil
}

// Stop preempts any running move and guarantees a single zero-velocity
// publish either way.
func (m *Mover) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.preemptLocked() {
		return nil
	}
	return m.publish(bridge.ZeroTwist())
}

// Preempt cancels a running move, publishing its zero. It reports
// whether there was a move to preempt.
func (m *Mover) Preempt() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preemptLocked()
}

// Moving reports whether a timed move is currently holding velocity.
func (m *Mover) Moving() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// preemptLocked ends the current move and publishes its zero. Callers
// hold m.mu.
func (m *Mover) preemptLocked() bool {
	if !m.active {
		return false
	}
	m.active = false
	close(m.stopCh)
	if err := m.publish(bridge.ZeroTwist()); err != nil {
		m.logger.Warn("zero velocity publish failed", "error", err)
	}
	return true
}

// hold waits out the move duration unless preempted. Only the
// generation that armed the timer may publish its zero.
func (m *Mover) hold(gen int, stopCh <-chan struct{}, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-stopCh:
		// Preempted; the preemptor already published the zero.
	case <-timer.C:
		m.mu.Lock()
		if m.gen == gen && m.active {
			m.active = false
			if err := m.publish(bridge.ZeroTwist()); err != nil {
				m.logger.Warn("zero velocity publish failed", "error", err)
			}
		}
		m.mu.Unlock()
	}
}

func (m *Mover) publish(tw bridge.Twist) error {
	if m.bus == nil {
		return nil
	}
	return m.bus.Publish(m.topics.CmdVel(), tw)
}
