// Package nav drives the robot to target poses and tracks the
// lifecycle of the single goal that may be in flight at a time.
//
// The tracker accepts one goal, watches it through acceptance,
// execution, and a terminal outcome, then returns to idle. Transport is
// pluggable: a rosbridge-backed service sends real Nav2 actions, a
// simulated service walks a straight line at constant speed so the rest
// of the stack behaves identically without a robot.
package nav

import (
	"time"

	"github.com/asadbey/turtlebot3-automation/pkg/bridge"
)

// State is the goal lifecycle state.
type State string

const (
	// StateIdle means no goal is in flight.
	StateIdle State = "idle"

	// StateSubmitting covers the window between submission and the
	// transport taking the goal.
	StateSubmitting State = "submitting"

	// StateAccepted means the action server took the goal but has not
	// reported progress yet.
	StateAccepted State = "accepted"

	// StateExecuting means the server is actively navigating.
	StateExecuting State = "executing"

	StateSucceeded State = "succeeded"
	StateAborted   State = "aborted"
	StateCanceled  State = "canceled"
	StateRejected  State = "rejected"
)

// Active reports whether the state admits no further goal.
func (s State) Active() bool {
	switch s {
	case StateSubmitting, StateAccepted, StateExecuting:
		return true
	}
	return false
}

// Terminal reports whether the state is a final outcome.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateAborted, StateCanceled, StateRejected:
		return true
	}
	return false
}

// stateForStatus maps action_msgs/GoalStatus codes to terminal states.
func stateForStatus(status int) State {
	switch status {
	case bridge.GoalStatusSucceeded:
		return StateSucceeded
	case bridge.GoalStatusCanceled:
		return StateCanceled
	default:
		return StateAborted
	}
}

// Feedback is in-flight progress for the current goal.
type Feedback struct {
	DistanceRemaining float64     `json:"distance_remaining"`
	CurrentPose       bridge.Pose `json:"current_pose"`
}

// Target is a goal pose in the map frame.
type Target struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Yaw float64 `json:"yaw"`
}

// Snapshot is a point-in-time view of the tracker.
type Snapshot struct {
	// State is idle or one of the active states. Terminal outcomes are
	// visible in LastResult; the tracker itself returns to idle.
	State State `json:"state"`

	// GoalID identifies the active goal, or the most recent one if the
	// tracker is idle.
	GoalID string `json:"goal_id,omitempty"`

	Target     Target    `json:"target"`
	Feedback   Feedback  `json:"feedback"`
	LastResult State     `json:"last_result,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
