package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/asadbey/turtlebot3-automation/internal/config"
	"github.com/asadbey/turtlebot3-automation/pkg/bridge"
)

// Monitor tracks sensor freshness and host resources on a periodic
// check loop. Between checks, Report and Healthy recompute staleness
// from the cached observations, so callers always see current ages.
type Monitor struct {
	cfg     config.MaintenanceConfig
	bus     bridge.Bus
	topics  *bridge.Topics
	sampler ResourceSampler
	logger  *slog.Logger
	notify  func(Report)

	mu      sync.RWMutex
	seen    map[Source]time.Time
	battery float64
	voltage float64
	lastCPU float64
	lastMem float64
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithSampler replaces the host resource sampler.
func WithSampler(s ResourceSampler) Option {
	return func(m *Monitor) { m.sampler = s }
}

// WithNotify registers a callback invoked with every check's report.
func WithNotify(fn func(Report)) Option {
	return func(m *Monitor) { m.notify = fn }
}

// New builds a monitor. bus may be nil for a standalone monitor that is
// fed through the Observe methods directly.
func New(cfg config.MaintenanceConfig, bus bridge.Bus, topics *bridge.Topics, logger *slog.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if topics == nil {
		topics = bridge.NewTopics("")
	}
	m := &Monitor{
		cfg:     cfg,
		bus:     bus,
		topics:  topics,
		sampler: SystemSampler{},
		logger:  logger,
		seen:    make(map[Source]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements the automation module interface.
func (m *Monitor) Name() string { return "health" }

// Init subscribes to the sensor topics the monitor watches.
func (m *Monitor) Init(ctx context.Context) error {
	if m.bus == nil {
		return nil
	}
	subs := []struct {
		topic   string
		handler func([]byte)
	}{
		{m.topics.Battery(), m.onBattery},
		{m.topics.Scan(), func([]byte) { m.ObserveScan() }},
		{m.topics.IMU(), func([]byte) { m.ObserveIMU() }},
		{m.topics.AMCLPose(), func([]byte) { m.ObservePose() }},
	}
	for _, s := range subs {
		if err := m.bus.Subscribe(s.topic, s.handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", s.topic, err)
		}
	}
	return nil
}

// Start launches the periodic check loop. Calling it on a running
// monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(m.stop, m.done)
	return nil
}

// Shutdown stops the check loop and waits for it to exit, bounded by
// ctx. Calling it on a stopped monitor is a no-op.
func (m *Monitor) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	stop := m.stop
	done := m.done
	m.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if m.bus != nil {
		for _, topic := range []string{m.topics.Battery(), m.topics.Scan(), m.topics.IMU(), m.topics.AMCLPose()} {
			_ = m.bus.Unsubscribe(topic)
		}
	}
	return nil
}

// ObserveBattery records a battery reading.
func (m *Monitor) ObserveBattery(percent, voltage float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[SourceBattery] = time.Now()
	m.battery = percent
	m.voltage = voltage
}

// ObserveScan records that a laser scan arrived.
func (m *Monitor) ObserveScan() { m.observe(SourceScan) }

// ObserveIMU records that an IMU sample arrived.
func (m *Monitor) ObserveIMU() { m.observe(SourceIMU) }

// ObservePose records that a localization pose arrived.
func (m *Monitor) ObservePose() { m.observe(SourcePose) }

func (m *Monitor) observe(src Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[src] = time.Now()
}

// Healthy reports whether the robot should accept new work.
func (m *Monitor) Healthy() bool {
	return m.Report().Healthy
}

// Report assembles a fresh snapshot. Staleness is computed at call
// time; CPU and memory come from the most recent check.
func (m *Monitor) Report() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	rep := Report{
		Sensors:        make([]SensorHealth, 0, len(Sources)),
		BatteryPercent: m.battery,
		BatteryVoltage: m.voltage,
		CPUPercent:     m.lastCPU,
		MemoryPercent:  m.lastMem,
		CheckedAt:      now,
	}
	for _, src := range Sources {
		rep.Sensors = append(rep.Sensors, m.assess(src, now))
	}
	ceiling := m.cfg.ResourceCeiling
	rep.ResourcesOk = m.lastCPU < ceiling && m.lastMem < ceiling
	rep.Healthy = healthyFrom(rep)
	return rep
}

// assess requires m.mu held for reading.
func (m *Monitor) assess(src Source, now time.Time) SensorHealth {
	seen, ok := m.seen[src]
	if !ok {
		return SensorHealth{Source: src, Condition: ConditionUnknown, Message: "no data received yet"}
	}

	age := now.Sub(seen)
	warn := m.warnTimeout(src)
	sh := SensorHealth{Source: src, Condition: ConditionOk, AgeSeconds: age.Seconds()}
	switch {
	case age >= 2*warn:
		sh.Condition = ConditionError
		sh.Message = fmt.Sprintf("no data for %.0fs", age.Seconds())
	case age >= warn:
		sh.Condition = ConditionWarning
		sh.Message = fmt.Sprintf("data aging (%.0fs)", age.Seconds())
	}

	if src == SourceBattery && m.battery <= m.cfg.BatteryCritical {
		sh.Condition = ConditionError
		sh.Message = fmt.Sprintf("battery critically low (%.1f%%)", m.battery)
	}
	return sh
}

func (m *Monitor) warnTimeout(src Source) time.Duration {
	switch src {
	case SourceBattery:
		return m.cfg.BatteryWarnTimeout.Duration()
	case SourceScan:
		return m.cfg.ScanWarnTimeout.Duration()
	case SourceIMU:
		return m.cfg.IMUWarnTimeout.Duration()
	default:
		return m.cfg.PoseWarnTimeout.Duration()
	}
}

// healthyFrom applies the admission rule: battery must not be warning
// or worse, no critical sensor may be in error, and resources must sit
// below the ceiling. Sources that never reported stay unknown and do
// not count against the robot.
func healthyFrom(rep Report) bool {
	for _, s := range rep.Sensors {
		if s.Source == SourceBattery {
			if s.Condition == ConditionWarning || s.Condition == ConditionError {
				return false
			}
			continue
		}
		if s.Condition == ConditionError {
			return false
		}
	}
	return rep.ResourcesOk
}

func (m *Monitor) run(stop, done chan struct{}) {
	defer close(done)

	// First check fires immediately so a fresh report exists before the
	// first full period elapses.
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}

		if err := m.check(); err != nil {
			m.logger.Warn("health check failed, retrying",
				"error", err, "backoff", m.cfg.RetryBackoff.Duration())
			timer.Reset(m.cfg.RetryBackoff.Duration())
			continue
		}
		timer.Reset(m.cfg.CheckPeriod.Duration())
	}
}

func (m *Monitor) check() error {
	cpuPct, memPct, err := m.sampler.Sample()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.lastCPU = cpuPct
	m.lastMem = memPct
	m.mu.Unlock()

	rep := m.Report()
	if rep.Healthy {
		m.logger.Info("health check",
			"battery", fmt.Sprintf("%.0f%%", rep.BatteryPercent),
			"cpu", fmt.Sprintf("%.0f%%", rep.CPUPercent),
			"memory", fmt.Sprintf("%.0f%%", rep.MemoryPercent))
	} else {
		m.logger.Warn("robot unhealthy",
			"battery", rep.Sensor(SourceBattery).Condition,
			"scan", rep.Sensor(SourceScan).Condition,
			"imu", rep.Sensor(SourceIMU).Condition,
			"pose", rep.Sensor(SourcePose).Condition,
			"resources_ok", rep.ResourcesOk)
	}

	if m.bus != nil {
		if perr := m.bus.Publish(m.topics.Diagnostics(), rep.Diagnostics()); perr != nil {
			m.logger.Warn("diagnostics publish failed", "error", perr)
		}
	}
	if m.notify != nil {
		m.notify(rep)
	}
	return nil
}

func (m *Monitor) onBattery(data []byte) {
	var msg bridge.BatteryState
	if err := json.Unmarshal(data, &msg); err != nil {
		m.logger.Warn("malformed battery message", "error", err)
		return
	}
	m.ObserveBattery(msg.Percentage, msg.Voltage)
}
