// Package automation owns the module lifecycle: registration,
// initialization, start, and shutdown of every subsystem in the suite.
//
// Modules initialize in registration order and shut down in reverse. A
// module that fails to initialize is marked failed and skipped; the rest
// of the suite keeps running degraded.
package automation

import "context"

// Module is one managed subsystem.
type Module interface {
	// Name identifies the module in logs and status reports.
	Name() string

	// Init prepares the module. It must not start long-running work.
	Init(ctx context.Context) error

	// Start launches the module's goroutines and returns promptly.
	Start(ctx context.Context) error

	// Shutdown stops the module and joins its goroutines, bounded by ctx.
	Shutdown(ctx context.Context) error
}

// Status is a module's lifecycle state.
type Status string

const (
	StatusRegistered  Status = "registered"
	StatusInitialized Status = "initialized"
	StatusRunning     Status = "running"
	StatusStopped     Status = "stopped"
	StatusFailed      Status = "failed"
	StatusDegraded    Status = "degraded"
)

// Capabilities describes what the environment offers. Assembly consults
// it to pick real or simulated implementations; a missing capability
// selects a fallback, it never aborts startup.
type Capabilities struct {
	// Middleware is true when a rosbridge server is reachable.
	Middleware bool `json:"middleware"`

	// Perception is true when a detection model and camera feed exist.
	Perception bool `json:"perception"`

	// Speech is true when speech credentials are configured.
	Speech bool `json:"speech"`
}
