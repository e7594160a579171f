package command

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/asadbey/turtlebot3-automation/pkg/bridge"
	"github.com/asadbey/turtlebot3-automation/pkg/perception"
)

// Follow control defaults. Offsets and widths are normalized image
// coordinates; a person drifting right of frame center turns the robot
// right, and a narrow box means the person is far enough to approach.
const (
	DefaultFollowRate     = 200 * time.Millisecond
	DefaultFollowGain     = 1.2
	DefaultFollowDeadZone = 0.05
	DefaultFollowFarWidth = 0.25
	DefaultFollowSpeed    = 0.2
	DefaultFollowMaxTurn  = 1.0

	// followMissLimit is how many control ticks without a person are
	// tolerated before the wheels are zeroed.
	followMissLimit = 10
)

// PersonFinder supplies the freshest person detection.
type PersonFinder interface {
	BestPerson() (perception.Detection, bool)
}

// Follow steers the robot toward the tracked person while enabled.
// Angular velocity is proportional to the person's horizontal offset
// from frame center with a dead zone; forward velocity applies while
// the person reads as far away. Disabling publishes a single zero.
type Follow struct {
	bus    bridge.Bus
	topics *bridge.Topics
	finder PersonFinder
	logger *slog.Logger

	rate     time.Duration
	gain     float64
	deadZone float64
	farWidth float64
	speed    float64
	maxTurn  float64

	mu      sync.Mutex
	enabled bool
	misses  int
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// FollowOption configures a Follow controller.
type FollowOption func(*Follow)

// WithFollowRate sets the control loop period.
func WithFollowRate(d time.Duration) FollowOption {
	return func(f *Follow) {
		if d > 0 {
			f.rate = d
		}
	}
}

// WithFollowGain sets the angular gain in rad/s per unit offset.
func WithFollowGain(gain float64) FollowOption {
	return func(f *Follow) {
		if gain > 0 {
			f.gain = gain
		}
	}
}

// WithFollowSpeed sets the approach speed in m/s.
func WithFollowSpeed(speed float64) FollowOption {
	return func(f *Follow) {
		if speed > 0 {
			f.speed = speed
		}
	}
}

// NewFollow creates a follow controller reading detections from finder.
func NewFollow(bus bridge.Bus, topics *bridge.Topics, finder PersonFinder, logger *slog.Logger, opts ...FollowOption) *Follow {
	if topics == nil {
		topics = bridge.NewTopics("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	f := &Follow{
		bus:      bus,
		topics:   topics,
		finder:   finder,
		logger:   logger,
		rate:     DefaultFollowRate,
		gain:     DefaultFollowGain,
		deadZone: DefaultFollowDeadZone,
		farWidth: DefaultFollowFarWidth,
		speed:    DefaultFollowSpeed,
		maxTurn:  DefaultFollowMaxTurn,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name implements the automation module interface.
func (f *Follow) Name() string { return "follow" }

// Init implements the automation module interface.
func (f *Follow) Init(ctx context.Context) error { return nil }

// Start launches the control loop. Following stays disabled until
// Enable is called.
func (f *Follow) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil
	}
	f.running = true
	f.stop = make(chan struct{})
	f.done = make(chan struct{})
	go f.run(f.stop, f.done)
	return nil
}

// Shutdown disables following and stops the loop.
func (f *Follow) Shutdown(ctx context.Context) error {
	if err := f.Disable(); err != nil {
		f.logger.Warn("disable on shutdown failed", "error", err)
	}

	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = false
	stop, done := f.stop, f.done
	f.mu.Unlock()

	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enable turns person-following on.
func (f *Follow) Enable() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enabled {
		return
	}
	f.enabled = true
	f.misses = 0
	f.logger.Info("follow mode enabled")
}

// Disable turns person-following off and zeroes the wheels. The zero is
// published under mu, so once Disable returns no further follow command
// can reach the bus. Disabling an already-disabled controller is a no-op.
func (f *Follow) Disable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.enabled {
		return nil
	}
	f.enabled = false
	f.logger.Info("follow mode disabled")
	return f.publish(bridge.ZeroTwist())
}

// Enabled reports whether follow mode is on.
func (f *Follow) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *Follow) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(f.rate)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			f.step()
		}
	}
}

// step computes and publishes one control command. The publish happens
// under mu so that a concurrent Disable cannot be followed by a stale
// velocity from an in-flight tick.
func (f *Follow) step() {
	if f.finder == nil || !f.Enabled() {
		return
	}

	person, ok := f.finder.BestPerson()

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.enabled {
		// Disabled while sampling; Disable already zeroed the wheels.
		return
	}

	if !ok {
		f.misses++
		if f.misses == followMissLimit {
			f.logger.Info("lost the person, holding position")
			if err := f.publish(bridge.ZeroTwist()); err != nil {
				f.logger.Warn("zero velocity publish failed", "error", err)
			}
		}
		return
	}
	f.misses = 0

	cx, _ := person.Center()
	offset := cx - 0.5

	var angular float64
	if math.Abs(offset) > f.deadZone {
		angular = clamp(-f.gain*offset, -f.maxTurn, f.maxTurn)
	}
	var linear float64
	if person.W < f.farWidth {
		linear = f.speed
	}

	if err := f.publish(bridge.PlanarTwist(linear, angular)); err != nil {
		f.logger.Warn("follow command publish failed", "error", err)
	}
}

func (f *Follow) publish(tw bridge.Twist) error {
	if f.bus == nil {
		return nil
	}
	return f.bus.Publish(f.topics.CmdVel(), tw)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
