package command

import "errors"

var (
	// ErrUnavailable is returned when a dispatch target is not wired,
	// e.g. a detection query with no perception module.
	ErrUnavailable = errors.New("command: dependency unavailable")

	// ErrUnknownLocation is returned when a navigation utterance names
	// no location from the table.
	ErrUnknownLocation = errors.New("command: unknown location")
)
