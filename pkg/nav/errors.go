package nav

import "errors"

var (
	// ErrGoalActive is returned when a goal is submitted while another
	// is still in flight.
	ErrGoalActive = errors.New("a goal is already active")

	// ErrNoActiveGoal is returned when cancel is requested with nothing
	// in flight.
	ErrNoActiveGoal = errors.New("no active goal")

	// ErrInvalidTransition is returned for operations the current state
	// does not admit, such as canceling a goal still being submitted.
	ErrInvalidTransition = errors.New("invalid goal transition")

	// ErrUnknownLocation is returned when a named location is not in
	// the configured table.
	ErrUnknownLocation = errors.New("unknown location")
)
