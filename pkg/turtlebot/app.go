// Package turtlebot assembles the automation suite. It probes the
// environment, picks a real or simulated implementation for each
// capability, wires the modules together, and drives them through the
// lifecycle manager.
//
// Assembly never aborts on a missing capability: an unreachable
// rosbridge falls back to the in-process loopback bus with a synthetic
// sensor feed, a missing detection model falls back to the mock
// detector, and missing speech credentials fall back to the mock
// recognizer. The suite always comes up; what it came up with is
// visible in Capabilities and the module status list.
package turtlebot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/asadbey/turtlebot3-automation/internal/config"
	"github.com/asadbey/turtlebot3-automation/pkg/automation"
	"github.com/asadbey/turtlebot3-automation/pkg/bridge"
	"github.com/asadbey/turtlebot3-automation/pkg/command"
	"github.com/asadbey/turtlebot3-automation/pkg/health"
	"github.com/asadbey/turtlebot3-automation/pkg/nav"
	"github.com/asadbey/turtlebot3-automation/pkg/perception"
	"github.com/asadbey/turtlebot3-automation/pkg/speech"
	"github.com/asadbey/turtlebot3-automation/pkg/voice"
	"github.com/asadbey/turtlebot3-automation/pkg/web"
)

// App owns the assembled suite.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	caps   automation.Capabilities

	manager *automation.Manager
	topics  *bridge.Topics

	client *bridge.Client   // real middleware, nil in simulation
	loop   *bridge.Loopback // simulation bus, nil with a real bridge
	bus    bridge.Bus
	feed   *bridge.SimFeed
	simSvc *nav.SimService

	monitor   *health.Monitor
	tracker   *nav.Tracker
	observer  *perception.Observer
	follow    *command.Follow
	mover     *command.Mover
	commander *command.Commander
	speaker   speech.Speaker
	pipeline  *voice.Pipeline
	server    *web.Server
}

// New builds an unassembled app. Invalid configuration values are
// corrected to their defaults and logged loudly; a bad file degrades
// the affected module instead of stopping startup.
func New(cfg *config.Config, logger *slog.Logger) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	for _, fix := range cfg.Normalize() {
		logger.Error("invalid configuration value", "fix", fix)
	}
	return &App{
		cfg:     cfg,
		logger:  logger,
		manager: automation.NewManager(logger),
	}
}

// Init assembles the modules and initializes them in dependency order.
// The returned error aggregates per-module init failures; the app is
// still runnable in degraded form when it is non-nil.
func (a *App) Init(ctx context.Context) error {
	a.connectMiddleware(ctx)
	a.buildHealth()
	a.buildNavigation()
	a.buildPerception()
	a.buildSpeech(ctx)
	a.buildCommand()
	a.buildVoice(ctx)
	a.buildDashboard()

	a.logger.Info("capabilities resolved",
		"middleware", a.caps.Middleware,
		"perception", a.caps.Perception,
		"speech", a.caps.Speech)

	if err := a.register(); err != nil {
		return err
	}
	return a.manager.InitAll(ctx)
}

// Run starts every initialized module and blocks until SIGINT/SIGTERM
// or ctx cancellation, then shuts the modules down.
func (a *App) Run(ctx context.Context) error {
	if err := a.manager.StartAll(ctx); err != nil {
		a.logger.Error("some modules failed to start", "error", err)
	}
	return a.manager.RunUntilSignal(ctx)
}

// Shutdown stops all modules and closes the transport. Safe after Run
// has returned, and safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.manager.ShutdownAll(ctx)
	if a.simSvc != nil {
		a.simSvc.Close()
	}
	if a.speaker != nil {
		if cerr := a.speaker.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if a.client != nil {
		if cerr := a.client.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if a.loop != nil {
		if cerr := a.loop.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Execute runs one text command through the interpreter. The console
// and the dashboard both enter here.
func (a *App) Execute(ctx context.Context, text string) command.Result {
	return a.commander.Execute(ctx, text)
}

// Manager exposes module status for consoles and tests.
func (a *App) Manager() *automation.Manager { return a.manager }

// Capabilities reports what the assembly resolved.
func (a *App) Capabilities() automation.Capabilities { return a.caps }

// connectMiddleware dials rosbridge unless simulation is forced, and
// falls back to the loopback bus with a synthetic sensor feed when the
// bridge cannot be reached.
func (a *App) connectMiddleware(ctx context.Context) {
	if !a.cfg.Simulation.Enabled {
		bcfg := bridge.DefaultConfig()
		bcfg.URL = config.BridgeURL(a.cfg.Bridge.URL)

		client, err := bridge.New(bcfg, a.logger)
		if err == nil {
			dialCtx, cancel := context.WithTimeout(ctx, bcfg.DialTimeout)
			err = client.Connect(dialCtx)
			cancel()
		}
		if err == nil {
			a.client = client
			a.bus = client
			a.topics = client.Topics()
			a.caps.Middleware = true
			a.logger.Info("rosbridge connected", "url", bcfg.URL)
			return
		}
		a.logger.Warn("rosbridge unreachable, falling back to simulation",
			"url", bcfg.URL, "error", err)
	}

	a.loop = bridge.NewLoopback()
	a.bus = a.loop
	a.topics = bridge.NewTopics("")
	a.feed = bridge.NewSimFeed(a.bus, a.topics,
		a.cfg.Simulation.FeedPeriod.Duration(), a.logger)
}

func (a *App) buildHealth() {
	a.monitor = health.New(a.cfg.Maintenance, a.bus, a.topics, a.logger,
		health.WithNotify(func(r health.Report) {
			if a.server != nil {
				a.server.PublishEvent("health", r)
			}
		}))
}

func (a *App) buildNavigation() {
	var svc nav.Service
	if a.caps.Middleware {
		svc = nav.NewBridgeService(a.client, a.topics, a.logger)
	} else {
		a.simSvc = nav.NewSimService(a.cfg.Simulation.SpeedMPS, a.logger,
			nav.WithPoseSource(a.feed.Pose),
			nav.WithArrival(a.feed.SetPose))
		svc = a.simSvc
	}

	locs := make(map[string]nav.Target, len(a.cfg.Navigation.Locations))
	for name, p := range a.cfg.Navigation.Locations {
		locs[name] = nav.Target{X: p.X, Y: p.Y, Yaw: p.Yaw}
	}
	a.tracker = nav.NewTracker(svc, a.bus, a.topics, a.logger,
		nav.WithGoalTimeout(a.cfg.Navigation.GoalTimeout.Duration()),
		nav.WithLocations(locs),
		nav.WithTransitionNotify(func(s nav.Snapshot) {
			if a.server != nil {
				a.server.PublishEvent("goal", s)
			}
		}))
}

func (a *App) buildPerception() {
	var det perception.Detector = perception.NewMockDetector()
	if a.cfg.Detection.Enabled {
		ycfg := perception.DefaultYOLOConfig()
		ycfg.ModelPath = a.cfg.Detection.ModelPath
		if a.cfg.Detection.Confidence > 0 {
			ycfg.Confidence = float32(a.cfg.Detection.Confidence)
		}
		if a.cfg.Detection.NMS > 0 {
			ycfg.NMS = float32(a.cfg.Detection.NMS)
		}
		y, err := perception.NewYOLO(ycfg, a.logger)
		if err != nil {
			a.logger.Warn("object detector unavailable, using mock", "error", err)
		} else {
			det = y
			a.caps.Perception = true
		}
	}
	a.observer = perception.NewObserver(det, a.bus, a.topics, a.logger)
}

func (a *App) buildSpeech(ctx context.Context) {
	a.caps.Speech = config.CredentialsFile() != ""
	if !a.caps.Speech {
		return
	}
	spk, err := speech.NewGoogleSpeaker(ctx,
		speech.WithSpeakerLanguage(a.cfg.Voice.Language),
		speech.WithSpeakerSampleRate(a.cfg.Voice.SampleRate),
		speech.WithSink(speech.BusSink(a.bus, a.topics.AudioOut())),
		speech.WithSpeakerLogger(a.logger),
	)
	if err != nil {
		a.logger.Warn("speech synthesis unavailable", "error", err)
		return
	}
	a.speaker = spk
}

func (a *App) buildCommand() {
	a.mover = command.NewMover(a.bus, a.topics, a.logger)
	a.follow = command.NewFollow(a.bus, a.topics, a.observer, a.logger)

	opts := []command.CommanderOption{
		command.WithNavigator(a.tracker),
		command.WithPerceiver(a.observer),
		command.WithFollower(a.follow),
		command.WithResultNotify(func(r command.Result) {
			if a.server != nil {
				a.server.PublishEvent("command", r)
			}
		}),
	}
	if a.speaker != nil {
		opts = append(opts, command.WithSpeaker(a.speaker))
	}
	a.commander = command.NewCommander(command.Config{
		MoveSpeed:    a.cfg.Voice.MoveSpeed,
		TurnSpeed:    a.cfg.Voice.TurnSpeed,
		MoveDuration: a.cfg.Voice.MoveDuration.Duration(),
	}, a.mover, a.logger, opts...)
}

func (a *App) buildVoice(ctx context.Context) {
	if !a.cfg.Voice.Enabled {
		return
	}
	var rec speech.Recognizer
	if a.caps.Speech {
		r, err := speech.NewGoogleRecognizer(ctx,
			speech.WithRecognizerLanguage(a.cfg.Voice.Language),
			speech.WithRecognizerLogger(a.logger))
		if err != nil {
			a.logger.Warn("speech recognition unavailable, voice runs on the mock", "error", err)
		} else {
			rec = r
		}
	}
	if rec == nil {
		rec = speech.NewMockRecognizer()
	}
	a.pipeline = voice.NewPipeline(a.bus, a.topics, rec, a.commander, a.logger,
		voice.WithWakeWord(a.cfg.Voice.WakeWord),
		voice.WithRecognizeRate(a.cfg.Voice.SampleRate))
}

func (a *App) buildDashboard() {
	if !a.cfg.Dashboard.Enabled {
		return
	}
	opts := []web.Option{
		web.WithHealth(a.monitor),
		web.WithGoals(a.tracker),
		web.WithDetections(a.observer),
		web.WithModules(a.manager),
		web.WithExecutor(a.commander),
	}
	if a.pipeline != nil {
		opts = append(opts, web.WithVoice(a.pipeline))
	}
	a.server = web.NewServer(a.cfg.Dashboard.Port, a.logger, opts...)
}

// register adds the modules in dependency order: the sensor feed first
// so consumers start against live traffic, the dashboard last so it
// stops first on the reverse shutdown sweep.
func (a *App) register() error {
	var modules []automation.Module
	if a.feed != nil {
		modules = append(modules, a.feed)
	}
	modules = append(modules, a.monitor, a.tracker, a.observer, a.follow)
	if a.pipeline != nil {
		modules = append(modules, a.pipeline)
	}
	if a.server != nil {
		modules = append(modules, a.server)
	}
	for _, m := range modules {
		if err := a.manager.Register(m); err != nil {
			return fmt.Errorf("register %s: %w", m.Name(), err)
		}
	}
	return nil
}
