package health

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/asadbey/turtlebot3-automation/internal/config"
	"github.com/asadbey/turtlebot3-automation/pkg/bridge"
)

type fakeSampler struct {
	mu    sync.Mutex
	cpu   float64
	mem   float64
	fails int
}

func (f *fakeSampler) Sample() (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return 0, 0, errors.New("proc unavailable")
	}
	return f.cpu, f.mem, nil
}

func testCfg() config.MaintenanceConfig {
	return config.MaintenanceConfig{
		CheckPeriod:        config.Duration(10 * time.Millisecond),
		RetryBackoff:       config.Duration(5 * time.Millisecond),
		ResourceCeiling:    90,
		BatteryWarnTimeout: config.Duration(200 * time.Millisecond),
		ScanWarnTimeout:    config.Duration(200 * time.Millisecond),
		IMUWarnTimeout:     config.Duration(200 * time.Millisecond),
		PoseWarnTimeout:    config.Duration(200 * time.Millisecond),
		BatteryCritical:    15,
	}
}

func TestMonitorUnknownSourcesStayHealthy(t *testing.T) {
	m := New(testCfg(), nil, bridge.NewTopics(""), nil, WithSampler(&fakeSampler{cpu: 10, mem: 20}))

	rep := m.Report()
	if !rep.Healthy {
		t.Error("Expected healthy robot when no source has reported yet")
	}
	for _, src := range Sources {
		if got := rep.Sensor(src).Condition; got != ConditionUnknown {
			t.Errorf("Expected %s unknown, got %v", src, got)
		}
	}
}

func TestMonitorFreshSourcesOk(t *testing.T) {
	m := New(testCfg(), nil, bridge.NewTopics(""), nil, WithSampler(&fakeSampler{}))
	m.ObserveBattery(80, 12.4)
	m.ObserveScan()
	m.ObserveIMU()
	m.ObservePose()

	rep := m.Report()
	if !rep.Healthy {
		t.Error("Expected healthy robot with fresh sources")
	}
	for _, src := range Sources {
		if got := rep.Sensor(src).Condition; got != ConditionOk {
			t.Errorf("Expected %s ok, got %v", src, got)
		}
	}
	if rep.BatteryPercent != 80 {
		t.Errorf("Expected battery 80, got %v", rep.BatteryPercent)
	}
	if rep.BatteryVoltage != 12.4 {
		t.Errorf("Expected voltage 12.4, got %v", rep.BatteryVoltage)
	}
}

func TestMonitorStalenessProgression(t *testing.T) {
	m := New(testCfg(), nil, bridge.NewTopics(""), nil, WithSampler(&fakeSampler{}))
	m.ObserveScan()

	time.Sleep(300 * time.Millisecond)
	rep := m.Report()
	if got := rep.Sensor(SourceScan).Condition; got != ConditionWarning {
		t.Errorf("Expected scan warning past warn timeout, got %v", got)
	}
	if !rep.Healthy {
		t.Error("Expected healthy robot with a sensor merely in warning")
	}

	time.Sleep(200 * time.Millisecond)
	rep = m.Report()
	if got := rep.Sensor(SourceScan).Condition; got != ConditionError {
		t.Errorf("Expected scan error past twice the warn timeout, got %v", got)
	}
	if rep.Healthy {
		t.Error("Expected unhealthy robot with a critical sensor in error")
	}

	m.ObserveScan()
	rep = m.Report()
	if got := rep.Sensor(SourceScan).Condition; got != ConditionOk {
		t.Errorf("Expected scan to recover on a fresh observation, got %v", got)
	}
	if !rep.Healthy {
		t.Error("Expected healthy robot after the scan recovered")
	}
}

func TestMonitorFrozenBatteryGoesError(t *testing.T) {
	m := New(testCfg(), nil, bridge.NewTopics(""), nil, WithSampler(&fakeSampler{}))
	m.ObserveBattery(65, 11.8)

	time.Sleep(300 * time.Millisecond)
	rep := m.Report()
	if got := rep.Sensor(SourceBattery).Condition; got != ConditionWarning {
		t.Errorf("Expected battery warning past warn timeout, got %v", got)
	}
	if rep.Healthy {
		t.Error("Expected unhealthy robot once battery reports go stale")
	}

	time.Sleep(200 * time.Millisecond)
	rep = m.Report()
	if got := rep.Sensor(SourceBattery).Condition; got != ConditionError {
		t.Errorf("Expected battery error past twice the warn timeout, got %v", got)
	}
	if rep.Healthy {
		t.Error("Expected unhealthy robot with battery in error")
	}
}

func TestMonitorBatteryCritical(t *testing.T) {
	m := New(testCfg(), nil, bridge.NewTopics(""), nil, WithSampler(&fakeSampler{}))
	m.ObserveBattery(10, 10.2)

	rep := m.Report()
	sh := rep.Sensor(SourceBattery)
	if sh.Condition != ConditionError {
		t.Errorf("Expected battery error despite fresh reading, got %v", sh.Condition)
	}
	if sh.Message == "" {
		t.Error("Expected critical battery message")
	}
	if rep.Healthy {
		t.Error("Expected unhealthy robot on critical battery")
	}
}

func TestMonitorResourceCeiling(t *testing.T) {
	sampler := &fakeSampler{cpu: 95, mem: 40}
	m := New(testCfg(), nil, bridge.NewTopics(""), nil, WithSampler(sampler))
	m.ObserveBattery(80, 12.4)

	if err := m.check(); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	rep := m.Report()
	if rep.ResourcesOk {
		t.Error("Expected resources over ceiling")
	}
	if rep.Healthy {
		t.Error("Expected unhealthy robot with CPU over ceiling")
	}
	if rep.CPUPercent != 95 || rep.MemoryPercent != 40 {
		t.Errorf("Expected cached resource readings, got cpu=%v mem=%v", rep.CPUPercent, rep.MemoryPercent)
	}
}

func TestMonitorRunLoop(t *testing.T) {
	reports := make(chan Report, 16)
	sampler := &fakeSampler{cpu: 5, mem: 10, fails: 1}
	m := New(testCfg(), nil, bridge.NewTopics(""), nil,
		WithSampler(sampler),
		WithNotify(func(r Report) {
			select {
			case reports <- r:
			default:
			}
		}))

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}

	// First sample fails; the loop retries after the backoff and keeps
	// producing reports on the period.
	for i := 0; i < 2; i++ {
		select {
		case <-reports:
		case <-time.After(2 * time.Second):
			t.Fatal("Timed out waiting for health report")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Second Shutdown failed: %v", err)
	}
}

func TestMonitorOverBus(t *testing.T) {
	lb := bridge.NewLoopback()
	defer lb.Close()
	topics := bridge.NewTopics("")

	diags := make(chan bridge.DiagnosticArray, 4)
	err := lb.Subscribe(topics.Diagnostics(), func(data []byte) {
		var arr bridge.DiagnosticArray
		if err := json.Unmarshal(data, &arr); err != nil {
			t.Errorf("Bad diagnostics payload: %v", err)
			return
		}
		select {
		case diags <- arr:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	m := New(testCfg(), lb, topics, nil, WithSampler(&fakeSampler{cpu: 5, mem: 10}))
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if err := lb.Publish(topics.Battery(), bridge.BatteryState{Percentage: 42, Voltage: 11.1}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if got := m.Report().BatteryPercent; got != 42 {
		t.Errorf("Expected battery 42 from bus, got %v", got)
	}
	if got := m.Report().BatteryVoltage; got != 11.1 {
		t.Errorf("Expected voltage 11.1 from bus, got %v", got)
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	}()

	select {
	case arr := <-diags:
		if len(arr.Status) != len(Sources)+1 {
			t.Fatalf("Expected %d diagnostic statuses, got %d", len(Sources)+1, len(arr.Status))
		}
		byName := make(map[string]bridge.DiagnosticStatus)
		for _, st := range arr.Status {
			byName[st.Name] = st
		}
		if st := byName["turtlebot: battery"]; st.Level != bridge.DiagnosticOK {
			t.Errorf("Expected battery diagnostic ok, got level %d", st.Level)
		}
		if st := byName["turtlebot: scan"]; st.Level != bridge.DiagnosticStale {
			t.Errorf("Expected scan diagnostic stale, got level %d", st.Level)
		}
		if st := byName["turtlebot: resources"]; st.Level != bridge.DiagnosticOK {
			t.Errorf("Expected resources diagnostic ok, got level %d", st.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for diagnostics publish")
	}
}

func TestConditionDiagnosticLevel(t *testing.T) {
	cases := []struct {
		cond  Condition
		level int
	}{
		{ConditionOk, bridge.DiagnosticOK},
		{ConditionWarning, bridge.DiagnosticWarn},
		{ConditionError, bridge.DiagnosticError},
		{ConditionUnknown, bridge.DiagnosticStale},
	}
	for _, c := range cases {
		if got := c.cond.DiagnosticLevel(); got != c.level {
			t.Errorf("Expected %s level %d, got %d", c.cond, c.level, got)
		}
	}
}

func TestReportSensorMissing(t *testing.T) {
	rep := Report{}
	sh := rep.Sensor(SourceIMU)
	if sh.Source != SourceIMU || sh.Condition != ConditionUnknown {
		t.Errorf("Expected unknown placeholder, got %+v", sh)
	}
}
