package nav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asadbey/turtlebot3-automation/pkg/bridge"
)

// Tracker owns the single navigation goal that may be in flight. All
// submissions go through it so the one-active-goal rule holds no matter
// how many callers issue commands.
type Tracker struct {
	svc     Service
	bus     bridge.Bus
	topics  *bridge.Topics
	logger  *slog.Logger
	timeout time.Duration
	notify  func(Snapshot)

	// locations has its own lock so command dispatch can read the table
	// while a goal transition holds mu.
	locMu     sync.RWMutex
	locations map[string]Target

	mu           sync.Mutex
	state        State
	goalID       string
	target       Target
	feedback     Feedback
	lastResult   State
	lastErr      error
	startedAt    time.Time
	finishedAt   time.Time
	timeoutTimer *time.Timer
	resultCh     chan State
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithGoalTimeout bounds how long a goal may stay active before the
// tracker gives up on the action server. Zero disables the bound.
func WithGoalTimeout(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.timeout = d }
}

// WithLocations installs the named location table. Keys are matched
// case-insensitively.
func WithLocations(locs map[string]Target) TrackerOption {
	return func(t *Tracker) {
		t.locations = make(map[string]Target, len(locs))
		for name, tgt := range locs {
			t.locations[strings.ToLower(strings.TrimSpace(name))] = tgt
		}
	}
}

// WithTransitionNotify registers a callback fired after every state
// transition with a fresh snapshot.
func WithTransitionNotify(fn func(Snapshot)) TrackerOption {
	return func(t *Tracker) { t.notify = fn }
}

// NewTracker builds a tracker on the given transport. bus may be nil if
// the caller never needs StopRobot or SetInitialPose.
func NewTracker(svc Service, bus bridge.Bus, topics *bridge.Topics, logger *slog.Logger, opts ...TrackerOption) *Tracker {
	if topics == nil {
		topics = bridge.NewTopics("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		svc:    svc,
		bus:    bus,
		topics: topics,
		logger: logger,
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name implements the automation module interface.
func (t *Tracker) Name() string { return "nav" }

// Init implements the automation module interface.
func (t *Tracker) Init(ctx context.Context) error { return nil }

// Start implements the automation module interface. The tracker has no
// background loop; goals run on the transport's goroutines.
func (t *Tracker) Start(ctx context.Context) error { return nil }

// Shutdown cancels any active goal and stops the wheels.
func (t *Tracker) Shutdown(ctx context.Context) error {
	if err := t.Cancel(); err != nil && !errors.Is(err, ErrNoActiveGoal) && !errors.Is(err, ErrInvalidTransition) {
		t.logger.Warn("cancel on shutdown failed", "error", err)
	}
	return t.StopRobot()
}

// NavigateTo submits a goal for the given map-frame pose and returns
// its id. It fails with ErrGoalActive while another goal is in flight.
func (t *Tracker) NavigateTo(x, y, yaw float64) (string, error) {
	t.mu.Lock()
	if t.state.Active() {
		id, st := t.goalID, t.state
		t.mu.Unlock()
		return "", fmt.Errorf("%w: goal %s is %s", ErrGoalActive, id, st)
	}
	id := uuid.NewString()
	t.state = StateSubmitting
	t.goalID = id
	t.target = Target{X: x, Y: y, Yaw: yaw}
	t.feedback = Feedback{}
	t.lastErr = nil
	t.startedAt = time.Now()
	t.finishedAt = time.Time{}
	t.resultCh = make(chan State, 1)
	t.mu.Unlock()
	t.emit()

	err := t.svc.SendGoal(id, bridge.MapPose(x, y, yaw), t.feedbackFunc(id), t.resultFunc(id))
	if err != nil {
		t.mu.Lock()
		if t.goalID == id && t.state == StateSubmitting {
			t.toTerminalLocked(StateRejected, err)
		}
		t.mu.Unlock()
		t.emit()
		return "", fmt.Errorf("submit goal: %w", err)
	}

	t.mu.Lock()
	accepted := t.goalID == id && t.state == StateSubmitting
	if accepted {
		t.state = StateAccepted
		t.armTimeoutLocked(id)
	}
	t.mu.Unlock()
	if accepted {
		t.logger.Info("navigation goal accepted", "goal_id", id, "x", x, "y", y, "yaw", yaw)
		t.emit()
	}
	return id, nil
}

// NavigateToLocation resolves a named location and submits a goal for
// it. Unknown names fail with ErrUnknownLocation.
func (t *Tracker) NavigateToLocation(name string) (string, error) {
	t.locMu.RLock()
	tgt, ok := t.locations[strings.ToLower(strings.TrimSpace(name))]
	t.locMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLocation, name)
	}
	return t.NavigateTo(tgt.X, tgt.Y, tgt.Yaw)
}

// AddLocation registers a named destination at runtime.
func (t *Tracker) AddLocation(name string, target Target) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return errors.New("nav: location name required")
	}
	t.locMu.Lock()
	if t.locations == nil {
		t.locations = make(map[string]Target)
	}
	t.locations[name] = target
	t.locMu.Unlock()
	t.logger.Info("location added", "name", name, "x", target.X, "y", target.Y, "yaw", target.Yaw)
	return nil
}

// Locations returns the configured location names sorted, for command
// help, spoken responses, and round-robin exploration.
func (t *Tracker) Locations() []string {
	t.locMu.RLock()
	names := make([]string, 0, len(t.locations))
	for name := range t.locations {
		names = append(names, name)
	}
	t.locMu.RUnlock()
	sort.Strings(names)
	return names
}

// Cancel asks the transport to stop the active goal. The terminal
// transition arrives asynchronously through the goal's result. Cancel
// fails with ErrNoActiveGoal when nothing is in flight and with
// ErrInvalidTransition while a goal is still being submitted.
func (t *Tracker) Cancel() error {
	t.mu.Lock()
	if t.state == StateSubmitting {
		t.mu.Unlock()
		return fmt.Errorf("%w: goal still submitting", ErrInvalidTransition)
	}
	if !t.state.Active() {
		t.mu.Unlock()
		return ErrNoActiveGoal
	}
	id := t.goalID
	t.mu.Unlock()

	t.logger.Info("canceling navigation goal", "goal_id", id)
	if err := t.svc.CancelGoal(id); err != nil {
		return fmt.Errorf("cancel goal: %w", err)
	}
	return nil
}

// WaitResult blocks until the goal reaches a terminal state or ctx
// ends. At most one caller may wait per goal.
func (t *Tracker) WaitResult(ctx context.Context, id string) (State, error) {
	t.mu.Lock()
	ch := t.resultCh
	match := t.goalID == id
	t.mu.Unlock()
	if !match || ch == nil {
		return "", fmt.Errorf("%w: goal %s", ErrNoActiveGoal, id)
	}

	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// FollowWaypoints drives through the targets in order, waiting for each
// leg to finish before starting the next. It stops at the first leg
// that does not succeed. Cancellation of the in-flight leg happens when
// ctx ends.
func (t *Tracker) FollowWaypoints(ctx context.Context, targets []Target) error {
	for i, wp := range targets {
		id, err := t.NavigateTo(wp.X, wp.Y, wp.Yaw)
		if err != nil {
			return fmt.Errorf("waypoint %d: %w", i, err)
		}
		t.logger.Info("waypoint leg started", "leg", i, "total", len(targets), "goal_id", id)

		res, err := t.WaitResult(ctx, id)
		if err != nil {
			if cerr := t.Cancel(); cerr != nil && !errors.Is(cerr, ErrNoActiveGoal) {
				t.logger.Warn("cancel after interrupted waypoint failed", "error", cerr)
			}
			return fmt.Errorf("waypoint %d: %w", i, err)
		}
		if res != StateSucceeded {
			return fmt.Errorf("waypoint %d ended %s", i, res)
		}
	}
	return nil
}

// StopRobot publishes a zero velocity command. It does not touch the
// goal lifecycle; pair it with Cancel for a full stop.
func (t *Tracker) StopRobot() error {
	if t.bus == nil {
		return nil
	}
	if err := t.bus.Publish(t.topics.CmdVel(), bridge.ZeroTwist()); err != nil {
		return fmt.Errorf("publish stop: %w", err)
	}
	t.logger.Info("published zero velocity")
	return nil
}

// SetInitialPose seeds the localizer with a map-frame pose estimate.
func (t *Tracker) SetInitialPose(x, y, yaw float64) error {
	if t.bus == nil {
		return nil
	}
	msg := bridge.PoseWithCovarianceStamped{
		Header: bridge.Header{Stamp: bridge.Now(), FrameID: "map"},
		Pose: bridge.PoseWithCovariance{
			Pose: bridge.Pose{
				Position:    bridge.Point{X: x, Y: y},
				Orientation: bridge.YawQuaternion(yaw),
			},
		},
	}
	if err := t.bus.Publish(t.topics.InitialPose(), msg); err != nil {
		return fmt.Errorf("publish initial pose: %w", err)
	}
	t.logger.Info("initial pose set", "x", x, "y", y, "yaw", yaw)
	return nil
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Active reports whether a goal is in flight.
func (t *Tracker) Active() bool {
	return t.State().Active()
}

// Snapshot returns the full tracker view.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := Snapshot{
		State:      t.state,
		GoalID:     t.goalID,
		Target:     t.target,
		Feedback:   t.feedback,
		LastResult: t.lastResult,
		StartedAt:  t.startedAt,
		FinishedAt: t.finishedAt,
	}
	if t.lastErr != nil {
		snap.LastError = t.lastErr.Error()
	}
	return snap
}

func (t *Tracker) emit() {
	if t.notify == nil {
		return
	}
	t.notify(t.Snapshot())
}

func (t *Tracker) feedbackFunc(id string) func(Feedback) {
	return func(fb Feedback) {
		t.mu.Lock()
		if t.goalID != id || !t.state.Active() {
			t.mu.Unlock()
			return
		}
		began := t.state != StateExecuting
		t.armTimeoutLocked(id)
		t.state = StateExecuting
		t.feedback = fb
		t.mu.Unlock()
		if began {
			t.logger.Debug("navigation executing", "goal_id", id)
			t.emit()
		}
	}
}

func (t *Tracker) resultFunc(id string) func(status int) {
	return func(status int) {
		t.mu.Lock()
		if t.goalID != id || !t.state.Active() {
			t.mu.Unlock()
			return
		}
		res := stateForStatus(status)
		t.toTerminalLocked(res, nil)
		t.mu.Unlock()
		t.emit()
	}
}

// toTerminalLocked records the outcome and returns the tracker to idle.
// Requires t.mu held.
func (t *Tracker) toTerminalLocked(result State, err error) {
	if t.timeoutTimer != nil {
		t.timeoutTimer.Stop()
		t.timeoutTimer = nil
	}
	t.state = StateIdle
	t.lastResult = result
	t.lastErr = err
	t.finishedAt = time.Now()
	t.logger.Info("navigation goal finished", "goal_id", t.goalID, "result", result)
	if t.resultCh != nil {
		select {
		case t.resultCh <- result:
		default:
		}
	}
}

// armTimeoutLocked starts the goal watchdog once per goal. Requires
// t.mu held; the feedback and accept paths may both reach it, whichever
// runs first wins.
func (t *Tracker) armTimeoutLocked(id string) {
	if t.timeout <= 0 || t.timeoutTimer != nil {
		return
	}
	t.timeoutTimer = time.AfterFunc(t.timeout, func() { t.onTimeout(id) })
}

func (t *Tracker) onTimeout(id string) {
	t.mu.Lock()
	if t.goalID != id || !t.state.Active() {
		t.mu.Unlock()
		return
	}
	t.logger.Warn("navigation goal timed out", "goal_id", id, "timeout", t.timeout)
	t.toTerminalLocked(StateAborted, fmt.Errorf("goal timeout after %s", t.timeout))
	t.mu.Unlock()
	t.emit()

	// Best effort: the server may still be running the goal. Any late
	// result is ignored by the id and state guards.
	if err := t.svc.CancelGoal(id); err != nil {
		t.logger.Debug("timeout cancel failed", "goal_id", id, "error", err)
	}
}
