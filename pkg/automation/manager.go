package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// DefaultShutdownTimeout bounds each module's Shutdown call.
const DefaultShutdownTimeout = 5 * time.Second

// ModuleStatus is a point-in-time view of one module.
type ModuleStatus struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

type entry struct {
	mod    Module
	status Status
	err    error
}

// Manager drives registered modules through their lifecycle.
//
// Registration order is significant: InitAll and StartAll walk the
// modules in the order they were registered, ShutdownAll walks them in
// reverse so dependents stop before their dependencies.
type Manager struct {
	logger          *slog.Logger
	shutdownTimeout time.Duration

	mu      sync.RWMutex
	ordered []*entry
	byName  map[string]*entry

	closed   atomic.Bool
	stopOnce sync.Once
}

// Option configures a Manager.
type Option func(*Manager)

// WithShutdownTimeout overrides the per-module shutdown bound.
func WithShutdownTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.shutdownTimeout = d
		}
	}
}

// NewManager returns an empty manager. A nil logger falls back to the
// default slog logger.
func NewManager(logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		logger:          logger,
		shutdownTimeout: DefaultShutdownTimeout,
		byName:          make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a module. Names must be unique and non-empty.
func (m *Manager) Register(mod Module) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}
	name := mod.Name()
	if name == "" {
		return errors.New("module name is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateModule, name)
	}
	e := &entry{mod: mod, status: StatusRegistered}
	m.ordered = append(m.ordered, e)
	m.byName[name] = e
	return nil
}

// InitAll initializes every registered module in order. A failing module
// is marked failed and skipped for the rest of the lifecycle; the sweep
// continues. The returned error aggregates all failures, and a non-nil
// return still leaves the manager usable.
func (m *Manager) InitAll(ctx context.Context) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}

	var failed []error
	for _, e := range m.snapshot() {
		if m.statusOf(e) != StatusRegistered {
			continue
		}
		name := e.mod.Name()
		m.logger.Debug("initializing module", "module", name)
		if err := e.mod.Init(ctx); err != nil {
			m.setStatus(e, StatusFailed, err)
			m.logger.Error("module init failed", "module", name, "error", err)
			failed = append(failed, fmt.Errorf("%s: %w", name, err))
			continue
		}
		m.setStatus(e, StatusInitialized, nil)
		m.logger.Info("module initialized", "module", name)
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d module(s) failed to initialize: %w", len(failed), errors.Join(failed...))
	}
	return nil
}

// StartAll starts every initialized module in order. Modules that failed
// init are skipped. A failing start marks the module failed and the
// sweep continues.
func (m *Manager) StartAll(ctx context.Context) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}

	var failed []error
	for _, e := range m.snapshot() {
		name := e.mod.Name()
		switch m.statusOf(e) {
		case StatusInitialized:
		case StatusFailed:
			m.logger.Debug("skipping failed module", "module", name)
			continue
		default:
			continue
		}
		if err := e.mod.Start(ctx); err != nil {
			m.setStatus(e, StatusFailed, err)
			m.logger.Error("module start failed", "module", name, "error", err)
			failed = append(failed, fmt.Errorf("%s: %w", name, err))
			continue
		}
		m.setStatus(e, StatusRunning, nil)
		m.logger.Info("module started", "module", name)
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d module(s) failed to start: %w", len(failed), errors.Join(failed...))
	}
	return nil
}

// ShutdownAll stops modules in reverse registration order. Each module
// gets its own timeout derived from ctx; a shutdown error is logged and
// does not stop the sweep. The call is idempotent and concurrent-safe:
// only one sweep runs, later calls return nil once it finishes.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	m.stopOnce.Do(func() {
		m.closed.Store(true)
		snap := m.snapshot()
		for i := len(snap) - 1; i >= 0; i-- {
			e := snap[i]
			switch m.statusOf(e) {
			case StatusRunning, StatusDegraded, StatusInitialized:
			default:
				continue
			}
			name := e.mod.Name()
			sctx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
			err := e.mod.Shutdown(sctx)
			cancel()
			if err != nil {
				m.setStatus(e, StatusFailed, err)
				m.logger.Error("module shutdown failed", "module", name, "error", err)
				continue
			}
			m.setStatus(e, StatusStopped, nil)
			m.logger.Info("module stopped", "module", name)
		}
	})
	return nil
}

// RunUntilSignal blocks until ctx is canceled or SIGINT/SIGTERM arrives,
// then runs ShutdownAll with a fresh context so teardown is not cut
// short by the canceled one.
func (m *Manager) RunUntilSignal(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	m.logger.Info("shutdown requested")
	return m.ShutdownAll(context.Background())
}

// SetDegraded flags a running module as degraded without stopping it.
// Assembly uses this when a module falls back to reduced function, for
// example simulated navigation after the middleware went away.
func (m *Manager) SetDegraded(name string, reason error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	if e.status == StatusRunning {
		e.status = StatusDegraded
		e.err = reason
	}
	return nil
}

// Status reports every module in registration order.
func (m *Manager) Status() []ModuleStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ModuleStatus, 0, len(m.ordered))
	for _, e := range m.ordered {
		ms := ModuleStatus{Name: e.mod.Name(), Status: e.status}
		if e.err != nil {
			ms.Error = e.err.Error()
		}
		out = append(out, ms)
	}
	return out
}

// StatusOf reports a single module's state.
func (m *Manager) StatusOf(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byName[name]
	if !ok {
		return "", false
	}
	return e.status, true
}

func (m *Manager) snapshot() []*entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*entry, len(m.ordered))
	copy(out, m.ordered)
	return out
}

func (m *Manager) statusOf(e *entry) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return e.status
}

func (m *Manager) setStatus(e *entry, s Status, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.status = s
	e.err = err
}
