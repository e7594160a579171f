// Package web serves the diagnostics dashboard: REST endpoints for
// current state, a command entry point, and websocket streams for live
// status events and log lines.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/asadbey/turtlebot3-automation/internal/log"
	"github.com/asadbey/turtlebot3-automation/pkg/automation"
	"github.com/asadbey/turtlebot3-automation/pkg/command"
	"github.com/asadbey/turtlebot3-automation/pkg/health"
	"github.com/asadbey/turtlebot3-automation/pkg/hub"
	"github.com/asadbey/turtlebot3-automation/pkg/nav"
	"github.com/asadbey/turtlebot3-automation/pkg/perception"
	"github.com/asadbey/turtlebot3-automation/pkg/speech"
	"github.com/asadbey/turtlebot3-automation/pkg/voice"
)

const (
	// statusPeriod is how often the full status document is broadcast.
	statusPeriod = time.Second

	// logBuffer bounds the replay ring and the mirror queue.
	logBuffer = 200
)

// HealthSource yields the current health report.
type HealthSource interface {
	Report() health.Report
	Healthy() bool
}

// GoalSource yields the current navigation goal snapshot.
type GoalSource interface {
	Snapshot() nav.Snapshot
}

// DetectionSource yields recent detections and detector counters.
type DetectionSource interface {
	Latest() ([]perception.Detection, time.Time)
	Stats() perception.Stats
}

// ModuleSource yields module lifecycle statuses.
type ModuleSource interface {
	Status() []automation.ModuleStatus
}

// VoiceSource yields voice pipeline counters.
type VoiceSource interface {
	Stats() voice.Stats
	SourceStats() speech.SourceStats
}

// CommandExecutor runs one text command on behalf of the dashboard.
type CommandExecutor interface {
	Execute(ctx context.Context, text string) command.Result
}

// LogEntry is one mirrored log line for the dashboard.
type LogEntry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Event is the envelope for everything broadcast on the status stream.
type Event struct {
	Type string `json:"type"`
	Time string `json:"time"`
	Data any    `json:"data"`
}

// Status is the periodic composite document. Sections are omitted when
// the backing subsystem is not wired.
type Status struct {
	Healthy    *bool                     `json:"healthy,omitempty"`
	Health     *health.Report            `json:"health,omitempty"`
	Goal       *nav.Snapshot             `json:"goal,omitempty"`
	Modules    []automation.ModuleStatus `json:"modules,omitempty"`
	Detections int                       `json:"detections"`
	Voice      *voice.Stats              `json:"voice,omitempty"`
}

// Server is the dashboard: a Fiber app plus two broadcast hubs. It is
// registered with the module manager like any other subsystem.
type Server struct {
	app    *fiber.App
	logger *slog.Logger
	addr   string

	healths  HealthSource
	goals    GoalSource
	detect   DetectionSource
	modules  ModuleSource
	voices   VoiceSource
	executor CommandExecutor

	statusHub *hub.Hub
	logHub    *hub.Hub

	// logCh decouples the log mirror from broadcasting so a hub that
	// logs while broadcasting cannot re-enter itself. Overflow drops
	// silently for the same reason.
	logCh chan LogEntry

	mu         sync.Mutex
	logs       []LogEntry
	lastStatus []byte
	running    bool
	stop       chan struct{}
	done       chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithHealth wires the health monitor.
func WithHealth(h HealthSource) Option {
	return func(s *Server) { s.healths = h }
}

// WithGoals wires the goal tracker.
func WithGoals(g GoalSource) Option {
	return func(s *Server) { s.goals = g }
}

// WithDetections wires the detection observer.
func WithDetections(d DetectionSource) Option {
	return func(s *Server) { s.detect = d }
}

// WithModules wires the module manager.
func WithModules(m ModuleSource) Option {
	return func(s *Server) { s.modules = m }
}

// WithVoice wires the voice pipeline.
func WithVoice(v VoiceSource) Option {
	return func(s *Server) { s.voices = v }
}

// WithExecutor wires the command interpreter behind POST /api/command.
func WithExecutor(e CommandExecutor) Option {
	return func(s *Server) { s.executor = e }
}

// NewServer creates the dashboard on the given port. Sources left
// unwired answer their endpoints with 503 instead of failing startup.
func NewServer(port int, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:    logger,
		addr:      fmt.Sprintf(":%d", port),
		statusHub: hub.New("status", logger),
		logHub:    hub.New("logs", logger),
		logCh:     make(chan LogEntry, logBuffer),
		logs:      make([]LogEntry, 0, logBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		AppName:               "turtlebot3 dashboard",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())
	s.routes(app)
	s.app = app
	return s
}

// Name implements the automation module interface.
func (s *Server) Name() string { return "dashboard" }

// Init implements the automation module interface.
func (s *Server) Init(ctx context.Context) error { return nil }

// Start launches the hubs, the broadcast loop, and the listener.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if err := s.statusHub.Start(); err != nil {
		return err
	}
	if err := s.logHub.Start(); err != nil {
		return err
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	log.SetMirror(s.mirrorLog)

	go s.run(s.stop, s.done)
	go s.serve()

	s.logger.Info("dashboard listening", "addr", s.addr)
	return nil
}

// Shutdown stops the listener, the loop, and both hubs.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	log.SetMirror(nil)
	close(stop)
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	err := s.app.ShutdownWithContext(ctx)
	if cerr := s.statusHub.Close(); err == nil {
		err = cerr
	}
	if cerr := s.logHub.Close(); err == nil {
		err = cerr
	}
	return err
}

// PublishEvent broadcasts one event on the status stream. The app uses
// it for command results, goal transitions, and health snapshots.
func (s *Server) PublishEvent(kind string, data any) {
	evt := Event{Type: kind, Time: time.Now().Format(time.RFC3339), Data: data}
	if err := s.statusHub.BroadcastJSON(evt); err != nil {
		s.logger.Warn("failed to broadcast event", "type", kind, "error", err)
	}
}

// serve blocks on the listener; a listen failure degrades the dashboard
// rather than the suite.
func (s *Server) serve() {
	if err := s.app.Listen(s.addr); err != nil {
		s.logger.Error("dashboard listener stopped", "addr", s.addr, "error", err)
	}
}

// run broadcasts the periodic status document and drains mirrored logs.
func (s *Server) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(statusPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.broadcastStatus()
		case entry := <-s.logCh:
			if err := s.logHub.BroadcastJSON(entry); err != nil {
				s.logger.Warn("failed to broadcast log entry", "error", err)
			}
		}
	}
}

// status composes the current document from whichever sources are wired.
func (s *Server) status() Status {
	var doc Status
	if s.healths != nil {
		healthy := s.healths.Healthy()
		report := s.healths.Report()
		doc.Healthy = &healthy
		doc.Health = &report
	}
	if s.goals != nil {
		snap := s.goals.Snapshot()
		doc.Goal = &snap
	}
	if s.modules != nil {
		doc.Modules = s.modules.Status()
	}
	if s.detect != nil {
		dets, _ := s.detect.Latest()
		doc.Detections = len(dets)
	}
	if s.voices != nil {
		stats := s.voices.Stats()
		doc.Voice = &stats
	}
	return doc
}

func (s *Server) broadcastStatus() {
	evt := Event{Type: "status", Time: time.Now().Format(time.RFC3339), Data: s.status()}
	data, err := json.Marshal(evt)
	if err != nil {
		s.logger.Warn("failed to encode status", "error", err)
		return
	}

	s.mu.Lock()
	s.lastStatus = data
	s.mu.Unlock()

	s.statusHub.Broadcast(hub.Message{Type: hub.JSONMessage, Data: data})
}

// mirrorLog receives a copy of every log record. It must not log.
func (s *Server) mirrorLog(level, msg string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Level:   level,
		Message: msg,
	}

	s.mu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > logBuffer {
		s.logs = s.logs[1:]
	}
	s.mu.Unlock()

	select {
	case s.logCh <- entry:
	default:
	}
}

// recentLogs returns a copy of the replay ring.
func (s *Server) recentLogs() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}
