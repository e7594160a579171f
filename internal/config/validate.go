package config

import (
	"fmt"
	"strings"
)

// Normalize corrects invalid values to their defaults and returns one
// human-readable line per correction. It never fails: a bad value degrades
// to the default instead of stopping the program.
func (c *Config) Normalize() []string {
	def := Default()
	var fixes []string

	fix := func(field string, got interface{}, why string) {
		fixes = append(fixes, fmt.Sprintf("%s: %v (%s), using default", field, got, why))
	}

	if c.Simulation.SpeedMPS <= 0 {
		fix("simulation.speed_mps", c.Simulation.SpeedMPS, "must be positive")
		c.Simulation.SpeedMPS = def.Simulation.SpeedMPS
	}
	if c.Simulation.FeedPeriod <= 0 {
		fix("simulation.feed_period", c.Simulation.FeedPeriod.Duration(), "must be positive")
		c.Simulation.FeedPeriod = def.Simulation.FeedPeriod
	}

	if c.Navigation.GoalTimeout <= 0 {
		fix("navigation.goal_timeout", c.Navigation.GoalTimeout.Duration(), "must be positive")
		c.Navigation.GoalTimeout = def.Navigation.GoalTimeout
	}
	if len(c.Navigation.Locations) == 0 {
		fix("navigation.locations", "empty", "at least one location required")
		c.Navigation.Locations = def.Navigation.Locations
	}

	if c.Detection.ModelPath == "" {
		fix("detection.model_path", `""`, "must be set")
		c.Detection.ModelPath = def.Detection.ModelPath
	}
	if c.Detection.Confidence <= 0 || c.Detection.Confidence > 1 {
		fix("detection.confidence", c.Detection.Confidence, "must be in (0, 1]")
		c.Detection.Confidence = def.Detection.Confidence
	}
	if c.Detection.NMS <= 0 || c.Detection.NMS > 1 {
		fix("detection.nms", c.Detection.NMS, "must be in (0, 1]")
		c.Detection.NMS = def.Detection.NMS
	}

	if c.Voice.SampleRate <= 0 {
		fix("voice.sample_rate", c.Voice.SampleRate, "must be positive")
		c.Voice.SampleRate = def.Voice.SampleRate
	}
	if c.Voice.MoveSpeed <= 0 {
		fix("voice.move_speed", c.Voice.MoveSpeed, "must be positive")
		c.Voice.MoveSpeed = def.Voice.MoveSpeed
	}
	if c.Voice.TurnSpeed <= 0 {
		fix("voice.turn_speed", c.Voice.TurnSpeed, "must be positive")
		c.Voice.TurnSpeed = def.Voice.TurnSpeed
	}
	if c.Voice.MoveDuration <= 0 {
		fix("voice.move_duration", c.Voice.MoveDuration.Duration(), "must be positive")
		c.Voice.MoveDuration = def.Voice.MoveDuration
	}

	if c.Maintenance.CheckPeriod <= 0 {
		fix("maintenance.check_period", c.Maintenance.CheckPeriod.Duration(), "must be positive")
		c.Maintenance.CheckPeriod = def.Maintenance.CheckPeriod
	}
	if c.Maintenance.RetryBackoff <= 0 {
		fix("maintenance.retry_backoff", c.Maintenance.RetryBackoff.Duration(), "must be positive")
		c.Maintenance.RetryBackoff = def.Maintenance.RetryBackoff
	}
	if c.Maintenance.ResourceCeiling <= 0 || c.Maintenance.ResourceCeiling > 100 {
		fix("maintenance.resource_ceiling", c.Maintenance.ResourceCeiling, "must be in (0, 100]")
		c.Maintenance.ResourceCeiling = def.Maintenance.ResourceCeiling
	}
	if c.Maintenance.BatteryWarnTimeout <= 0 {
		fix("maintenance.battery_warn_timeout", c.Maintenance.BatteryWarnTimeout.Duration(), "must be positive")
		c.Maintenance.BatteryWarnTimeout = def.Maintenance.BatteryWarnTimeout
	}
	if c.Maintenance.ScanWarnTimeout <= 0 {
		fix("maintenance.scan_warn_timeout", c.Maintenance.ScanWarnTimeout.Duration(), "must be positive")
		c.Maintenance.ScanWarnTimeout = def.Maintenance.ScanWarnTimeout
	}
	if c.Maintenance.IMUWarnTimeout <= 0 {
		fix("maintenance.imu_warn_timeout", c.Maintenance.IMUWarnTimeout.Duration(), "must be positive")
		c.Maintenance.IMUWarnTimeout = def.Maintenance.IMUWarnTimeout
	}
	if c.Maintenance.PoseWarnTimeout <= 0 {
		fix("maintenance.pose_warn_timeout", c.Maintenance.PoseWarnTimeout.Duration(), "must be positive")
		c.Maintenance.PoseWarnTimeout = def.Maintenance.PoseWarnTimeout
	}
	if c.Maintenance.BatteryCritical < 0 || c.Maintenance.BatteryCritical >= 100 {
		fix("maintenance.battery_critical", c.Maintenance.BatteryCritical, "must be in [0, 100)")
		c.Maintenance.BatteryCritical = def.Maintenance.BatteryCritical
	}

	if !strings.HasPrefix(c.Bridge.URL, "ws://") && !strings.HasPrefix(c.Bridge.URL, "wss://") {
		fix("bridge.url", c.Bridge.URL, "must be a ws:// or wss:// URL")
		c.Bridge.URL = def.Bridge.URL
	}

	if c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535 {
		fix("dashboard.port", c.Dashboard.Port, "must be a valid port")
		c.Dashboard.Port = def.Dashboard.Port
	}

	return fixes
}
