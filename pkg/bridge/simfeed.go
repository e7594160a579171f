package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SimFeed synthesizes sensor traffic in simulation mode so the health
// monitor and dashboard see a live robot. It publishes battery, scan,
// IMU, odometry, and localization messages at a fixed period.
type SimFeed struct {
	bus    Bus
	topics *Topics
	period time.Duration
	logger *slog.Logger

	mu      sync.RWMutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	x, y, yaw float64
	started   time.Time
}

// NewSimFeed creates a feeder publishing on bus every period.
func NewSimFeed(bus Bus, topics *Topics, period time.Duration, logger *slog.Logger) *SimFeed {
	if logger == nil {
		logger = slog.Default()
	}
	if topics == nil {
		topics = NewTopics("")
	}
	return &SimFeed{
		bus:    bus,
		topics: topics,
		period: period,
		logger: logger,
	}
}

// Name identifies the module.
func (f *SimFeed) Name() string { return "simfeed" }

// Init implements the module lifecycle. Nothing to prepare.
func (f *SimFeed) Init(ctx context.Context) error { return nil }

// Start launches the feed loop. Safe to call twice.
func (f *SimFeed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return nil
	}
	f.running = true
	f.started = time.Now()
	f.stop = make(chan struct{})
	f.done = make(chan struct{})

	go f.run(ctx, f.stop, f.done)
	f.logger.Info("simulated sensor feed started", "period", f.period)
	return nil
}

// Shutdown stops the loop and waits for it, bounded by ctx.
func (f *SimFeed) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = false
	close(f.stop)
	done := f.done
	f.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// SetPose moves the simulated robot. The navigation simulator calls this
// when a goal completes so localization traffic tracks goal progress.
func (f *SimFeed) SetPose(x, y, yaw float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.x, f.y, f.yaw = x, y, yaw
}

// Pose reports where the simulated robot currently is.
func (f *SimFeed) Pose() (x, y, yaw float64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.x, f.y, f.yaw
}

func (f *SimFeed) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(f.period)
	defer ticker.Stop()

	// First burst immediately so sources leave Unknown without waiting
	// a full period.
	f.publishAll()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			f.publishAll()
		}
	}
}

func (f *SimFeed) publishAll() {
	f.mu.RLock()
	x, y, yaw := f.x, f.y, f.yaw
	elapsed := time.Since(f.started)
	f.mu.RUnlock()

	// Slow drain from full, floored where a real pack would cut out.
	level := 100.0 - elapsed.Minutes()*0.5
	if level < 20 {
		level = 20
	}

	publish := func(topic string, msg interface{}) {
		if err := f.bus.Publish(topic, msg); err != nil {
			f.logger.Debug("sim feed publish failed", "topic", topic, "error", err)
		}
	}

	publish(f.topics.Battery(), BatteryState{
		Header:     Header{Stamp: Now()},
		Voltage:    11.1 * level / 100,
		Percentage: level,
	})

	ranges := make([]float64, 24)
	for i := range ranges {
		ranges[i] = 1.5
	}
	publish(f.topics.Scan(), LaserScan{
		Header:   Header{Stamp: Now(), FrameID: "base_scan"},
		AngleMin: -3.14, AngleMax: 3.14,
		RangeMin: 0.12, RangeMax: 3.5,
		Ranges: ranges,
	})

	publish(f.topics.IMU(), IMU{
		Header:      Header{Stamp: Now(), FrameID: "imu_link"},
		Orientation: YawQuaternion(yaw),
	})

	pose := PoseWithCovariance{
		Pose: Pose{Position: Point{X: x, Y: y}, Orientation: YawQuaternion(yaw)},
	}
	publish(f.topics.AMCLPose(), PoseWithCovarianceStamped{
		Header: Header{Stamp: Now(), FrameID: "map"},
		Pose:   pose,
	})

	odom := Odometry{
		Header: Header{Stamp: Now(), FrameID: "odom"},
		Pose:   pose,
	}
	publish(f.topics.Odom(), odom)
}
