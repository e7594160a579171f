package nav

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/asadbey/turtlebot3-automation/pkg/bridge"
)

// DefaultSimSpeed is the straight-line travel speed assumed when no
// speed is configured.
const DefaultSimSpeed = 0.5 // m/s

// SimService fakes navigation by walking a straight line at constant
// speed. Travel time is distance over speed, so a goal two meters out
// at the default speed completes in four seconds, matching what the
// rest of the stack expects from a real robot on short hops.
type SimService struct {
	speed    float64
	logger   *slog.Logger
	poseFn   func() (x, y, yaw float64)
	onArrive func(x, y, yaw float64)

	mu    sync.Mutex
	goals map[string]*simGoal
}

type simGoal struct {
	id         string
	from       bridge.Pose
	to         bridge.Pose
	distance   float64
	duration   time.Duration
	cancel     chan struct{}
	cancelOnce sync.Once
	onFeedback func(Feedback)
	onResult   func(status int)
}

// requestCancel closes the cancel channel exactly once. Cancellation
// can arrive from the tracker and its watchdog at the same time.
func (g *simGoal) requestCancel() {
	g.cancelOnce.Do(func() { close(g.cancel) })
}

// SimOption configures a SimService.
type SimOption func(*SimService)

// WithPoseSource sets where the simulated robot currently is. Without
// one, every goal starts from the origin.
func WithPoseSource(fn func() (x, y, yaw float64)) SimOption {
	return func(s *SimService) { s.poseFn = fn }
}

// WithArrival registers a callback fired with the goal pose when travel
// completes, typically to move the simulated sensor feed.
func WithArrival(fn func(x, y, yaw float64)) SimOption {
	return func(s *SimService) { s.onArrive = fn }
}

// NewSimService builds a simulated navigation service.
func NewSimService(speed float64, logger *slog.Logger, opts ...SimOption) *SimService {
	if speed <= 0 {
		speed = DefaultSimSpeed
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &SimService{
		speed:  speed,
		logger: logger,
		goals:  make(map[string]*simGoal),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendGoal implements Service.
func (s *SimService) SendGoal(id string, pose bridge.PoseStamped, onFeedback func(Feedback), onResult func(status int)) error {
	var fx, fy float64
	if s.poseFn != nil {
		fx, fy, _ = s.poseFn()
	}
	tx, ty := pose.Pose.Position.X, pose.Pose.Position.Y
	distance := math.Hypot(tx-fx, ty-fy)

	g := &simGoal{
		id:         id,
		from:       bridge.Pose{Position: bridge.Point{X: fx, Y: fy}},
		to:         pose.Pose,
		distance:   distance,
		duration:   time.Duration(distance / s.speed * float64(time.Second)),
		cancel:     make(chan struct{}),
		onFeedback: onFeedback,
		onResult:   onResult,
	}

	s.mu.Lock()
	if _, exists := s.goals[id]; exists {
		s.mu.Unlock()
		return fmt.Errorf("sim: duplicate goal id %s", id)
	}
	s.goals[id] = g
	s.mu.Unlock()

	s.logger.Debug("simulated goal started",
		"goal_id", id, "distance", distance, "eta", g.duration)
	go s.travel(g)
	return nil
}

// CancelGoal implements Service.
func (s *SimService) CancelGoal(id string) error {
	s.mu.Lock()
	g, ok := s.goals[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("sim: %w", ErrNoActiveGoal)
	}
	g.requestCancel()
	return nil
}

// Close cancels every goal in flight.
func (s *SimService) Close() {
	s.mu.Lock()
	goals := make([]*simGoal, 0, len(s.goals))
	for _, g := range s.goals {
		goals = append(goals, g)
	}
	s.mu.Unlock()
	for _, g := range goals {
		g.requestCancel()
	}
}

func (s *SimService) travel(g *simGoal) {
	start := time.Now()

	// Feedback starts right away so callers see execution begin, then
	// continues on a cadence scaled to the trip length.
	g.feedback(0)
	tick := g.duration / 8
	if tick < 20*time.Millisecond {
		tick = 20 * time.Millisecond
	}
	if tick > 500*time.Millisecond {
		tick = 500 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	timer := time.NewTimer(g.duration)
	defer timer.Stop()

	for {
		select {
		case <-g.cancel:
			s.finish(g, bridge.GoalStatusCanceled)
			return
		case <-ticker.C:
			frac := float64(time.Since(start)) / float64(g.duration)
			if frac > 1 {
				frac = 1
			}
			g.feedback(frac)
		case <-timer.C:
			if s.onArrive != nil {
				s.onArrive(g.to.Position.X, g.to.Position.Y, g.to.Orientation.Yaw())
			}
			s.finish(g, bridge.GoalStatusSucceeded)
			return
		}
	}
}

func (g *simGoal) feedback(frac float64) {
	if g.onFeedback == nil {
		return
	}
	g.onFeedback(Feedback{
		DistanceRemaining: g.distance * (1 - frac),
		CurrentPose: bridge.Pose{
			Position: bridge.Point{
				X: g.from.Position.X + (g.to.Position.X-g.from.Position.X)*frac,
				Y: g.from.Position.Y + (g.to.Position.Y-g.from.Position.Y)*frac,
			},
			Orientation: g.to.Orientation,
		},
	})
}

func (s *SimService) finish(g *simGoal, status int) {
	s.mu.Lock()
	delete(s.goals, g.id)
	s.mu.Unlock()
	s.logger.Debug("simulated goal finished", "goal_id", g.id, "status", status)
	if g.onResult != nil {
		g.onResult(status)
	}
}

var _ Service = (*SimService)(nil)
