package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/asadbey/turtlebot3-automation/pkg/nav"
	"github.com/asadbey/turtlebot3-automation/pkg/speech"
)

// Navigator is the slice of the goal tracker the commander drives.
type Navigator interface {
	NavigateToLocation(name string) (string, error)
	Locations() []string
	Cancel() error
	Active() bool
}

// Perceiver reports what the camera currently sees.
type Perceiver interface {
	Summary() string
}

// Follower toggles person-following mode.
type Follower interface {
	Enable()
	Disable() error
	Enabled() bool
}

// Config holds the movement parameters for directional commands.
type Config struct {
	MoveSpeed    float64
	TurnSpeed    float64
	MoveDuration time.Duration
}

// DefaultConfig returns the stock movement parameters.
func DefaultConfig() Config {
	return Config{
		MoveSpeed:    0.5,
		TurnSpeed:    0.5,
		MoveDuration: DefaultMoveDuration,
	}
}

// Commander classifies utterances and executes the matched intent. Any
// of the dispatch targets may be absent; the affected intents then
// answer with a degraded response instead of failing the whole command
// layer.
type Commander struct {
	cfg       Config
	mover     *Mover
	navigator Navigator
	perceiver Perceiver
	follower  Follower
	speaker   speech.Speaker
	logger    *slog.Logger
	notify    func(Result)

	mu         sync.Mutex
	exploreIdx int
}

// CommanderOption configures a Commander.
type CommanderOption func(*Commander)

// WithNavigator wires the goal tracker.
func WithNavigator(n Navigator) CommanderOption {
	return func(c *Commander) { c.navigator = n }
}

// WithPerceiver wires the detection observer.
func WithPerceiver(p Perceiver) CommanderOption {
	return func(c *Commander) { c.perceiver = p }
}

// WithFollower wires the follow controller.
func WithFollower(f Follower) CommanderOption {
	return func(c *Commander) { c.follower = f }
}

// WithSpeaker wires spoken acknowledgments.
func WithSpeaker(s speech.Speaker) CommanderOption {
	return func(c *Commander) { c.speaker = s }
}

// WithResultNotify registers a callback fired with every Result.
func WithResultNotify(fn func(Result)) CommanderOption {
	return func(c *Commander) { c.notify = fn }
}

// NewCommander creates a commander dispatching through the given mover.
func NewCommander(cfg Config, mover *Mover, logger *slog.Logger, opts ...CommanderOption) *Commander {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MoveSpeed <= 0 {
		cfg.MoveSpeed = 0.5
	}
	if cfg.TurnSpeed <= 0 {
		cfg.TurnSpeed = 0.5
	}
	if cfg.MoveDuration <= 0 {
		cfg.MoveDuration = DefaultMoveDuration
	}
	c := &Commander{cfg: cfg, mover: mover, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute classifies the utterance, runs exactly one dispatch, and
// returns the acknowledgment. The response is spoken when a speaker is
// wired and always delivered to the result notify callback.
func (c *Commander) Execute(ctx context.Context, text string) Result {
	intent := Classify(text)
	res := Result{Intent: intent, Text: text, At: time.Now()}

	switch intent {
	case IntentMoveForward:
		res.Response, res.Err = c.dispatchMove("Moving forward.", c.cfg.MoveSpeed, 0)
	case IntentMoveBackward:
		res.Response, res.Err = c.dispatchMove("Moving backward.", -c.cfg.MoveSpeed, 0)
	case IntentTurnLeft:
		res.Response, res.Err = c.dispatchMove("Turning left.", 0, c.cfg.TurnSpeed)
	case IntentTurnRight:
		res.Response, res.Err = c.dispatchMove("Turning right.", 0, -c.cfg.TurnSpeed)
	case IntentStop:
		res.Response, res.Err = c.dispatchStop()
	case IntentNavigate:
		res.Response, res.Err = c.dispatchNavigate(text)
	case IntentExplore:
		res.Response, res.Err = c.dispatchExplore()
	case IntentQueryDetections:
		res.Response, res.Err = c.dispatchQuery()
	case IntentFollowMe:
		res.Response, res.Err = c.dispatchFollow()
	case IntentEmergencyStop:
		res.Response, res.Err = c.dispatchEmergency()
	default:
		res.Response = "I didn't understand that command."
	}

	if res.Err != nil {
		res.Error = res.Err.Error()
		c.logger.Warn("command dispatch failed",
			"intent", intent, "text", text, "error", res.Err)
	} else {
		c.logger.Info("command dispatched",
			"intent", intent, "response", res.Response)
	}

	if c.speaker != nil && res.Response != "" {
		if err := c.speaker.Speak(ctx, res.Response); err != nil {
			c.logger.Warn("spoken acknowledgment failed", "error", err)
		}
	}
	if c.notify != nil {
		c.notify(res)
	}
	return res
}

func (c *Commander) dispatchMove(response string, linear, angular float64) (string, error) {
	if err := c.mover.Move(linear, angular, c.cfg.MoveDuration); err != nil {
		return "I couldn't move.", err
	}
	return response, nil
}

func (c *Commander) dispatchStop() (string, error) {
	var errs []error
	if c.follower != nil && c.follower.Enabled() {
		if err := c.follower.Disable(); err != nil {
			errs = append(errs, fmt.Errorf("disable follow: %w", err))
		}
	}
	if err := c.mover.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("zero velocity: %w", err))
	}
	return "Stopping.", errors.Join(errs...)
}

func (c *Commander) dispatchNavigate(text string) (string, error) {
	if c.navigator == nil {
		return "Navigation is not available right now.", ErrUnavailable
	}
	names := c.navigator.Locations()
	name := matchLocation(text, names)
	if name == "" {
		if len(names) == 0 {
			return "I don't have any locations yet.", ErrUnknownLocation
		}
		return fmt.Sprintf("I don't know that location. I know %s.",
			strings.Join(names, ", ")), ErrUnknownLocation
	}
	if _, err := c.navigator.NavigateToLocation(name); err != nil {
		if errors.Is(err, nav.ErrGoalActive) {
			return "I'm already navigating. Tell me to stop first.", err
		}
		return "I couldn't start navigating.", err
	}
	return "Navigating to " + name + ".", nil
}

// dispatchExplore submits the next waypoint, round-robin over the
// location table.
func (c *Commander) dispatchExplore() (string, error) {
	if c.navigator == nil {
		return "Navigation is not available right now.", ErrUnavailable
	}
	names := c.navigator.Locations()
	if len(names) == 0 {
		return "I don't have anywhere to explore.", ErrUnavailable
	}

	c.mu.Lock()
	name := names[c.exploreIdx%len(names)]
	c.exploreIdx++
	c.mu.Unlock()

	if _, err := c.navigator.NavigateToLocation(name); err != nil {
		if errors.Is(err, nav.ErrGoalActive) {
			return "I'm already navigating. Tell me to stop first.", err
		}
		return "I couldn't start exploring.", err
	}
	return "Exploring. Heading to " + name + ".", nil
}

func (c *Commander) dispatchQuery() (string, error) {
	if c.perceiver == nil {
		return "Perception is not available.", ErrUnavailable
	}
	return c.perceiver.Summary(), nil
}

func (c *Commander) dispatchFollow() (string, error) {
	if c.follower == nil {
		return "I can't follow you without perception.", ErrUnavailable
	}
	if c.follower.Enabled() {
		if err := c.follower.Disable(); err != nil {
			return "I stopped following you.", err
		}
		return "I stopped following you.", nil
	}
	c.follower.Enable()
	return "Following you. Say stop when you want me to wait.", nil
}

// dispatchEmergency stops everything it can reach and reports even when
// parts of that fail.
func (c *Commander) dispatchEmergency() (string, error) {
	var errs []error
	if c.navigator != nil && c.navigator.Active() {
		if err := c.navigator.Cancel(); err != nil {
			errs = append(errs, fmt.Errorf("cancel goal: %w", err))
		}
	}
	if c.follower != nil {
		if err := c.follower.Disable(); err != nil {
			errs = append(errs, fmt.Errorf("disable follow: %w", err))
		}
	}
	if err := c.mover.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("zero velocity: %w", err))
	}
	return "Emergency stop activated.", errors.Join(errs...)
}

// Verify the follow controller satisfies the commander's interface.
var _ Follower = (*Follow)(nil)
