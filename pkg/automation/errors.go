package automation

import "errors"

var (
	// ErrDuplicateModule is returned when a module name is already registered.
	ErrDuplicateModule = errors.New("module already registered")

	// ErrUnknownModule is returned when a name does not match any module.
	ErrUnknownModule = errors.New("unknown module")

	// ErrManagerClosed is returned for operations after ShutdownAll ran.
	ErrManagerClosed = errors.New("manager closed")
)
