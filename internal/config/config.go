// Package config loads the automation suite configuration document.
// Values omitted from the file keep their defaults; invalid values are
// corrected to defaults by Normalize so a bad file degrades the affected
// component instead of killing the process.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration document.
type Config struct {
	Simulation  SimulationConfig  `yaml:"simulation"`
	Navigation  NavigationConfig  `yaml:"navigation"`
	Detection   DetectionConfig   `yaml:"detection"`
	Voice       VoiceConfig       `yaml:"voice"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Bridge      BridgeConfig      `yaml:"bridge"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
}

// SimulationConfig controls the built-in simulation mode.
type SimulationConfig struct {
	Enabled    bool     `yaml:"enabled"`
	SpeedMPS   float64  `yaml:"speed_mps"`
	FeedPeriod Duration `yaml:"feed_period"`
}

// Pose is a named 2D pose in the map frame.
type Pose struct {
	X   float64 `yaml:"x"`
	Y   float64 `yaml:"y"`
	Yaw float64 `yaml:"yaw"`
}

// NavigationConfig holds the location table and goal limits.
type NavigationConfig struct {
	Locations   map[string]Pose `yaml:"locations"`
	GoalTimeout Duration        `yaml:"goal_timeout"`
}

// DetectionConfig configures the object detector.
type DetectionConfig struct {
	Enabled    bool    `yaml:"enabled"`
	ModelPath  string  `yaml:"model_path"`
	Confidence float64 `yaml:"confidence"`
	NMS        float64 `yaml:"nms"`
}

// VoiceConfig configures voice control and spoken responses.
type VoiceConfig struct {
	Enabled      bool     `yaml:"enabled"`
	WakeWord     string   `yaml:"wake_word"`
	Language     string   `yaml:"language"`
	SampleRate   int      `yaml:"sample_rate"`
	MoveSpeed    float64  `yaml:"move_speed"`
	TurnSpeed    float64  `yaml:"turn_speed"`
	MoveDuration Duration `yaml:"move_duration"`
}

// MaintenanceConfig configures the health monitor.
type MaintenanceConfig struct {
	CheckPeriod        Duration `yaml:"check_period"`
	RetryBackoff       Duration `yaml:"retry_backoff"`
	ResourceCeiling    float64  `yaml:"resource_ceiling"`
	BatteryWarnTimeout Duration `yaml:"battery_warn_timeout"`
	ScanWarnTimeout    Duration `yaml:"scan_warn_timeout"`
	IMUWarnTimeout     Duration `yaml:"imu_warn_timeout"`
	PoseWarnTimeout    Duration `yaml:"pose_warn_timeout"`
	BatteryCritical    float64  `yaml:"battery_critical"`
}

// BridgeConfig points at the rosbridge endpoint.
type BridgeConfig struct {
	URL string `yaml:"url"`
}

// DashboardConfig configures the web dashboard.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Default returns the configuration used when no file is given.
// Simulation is on by default so the suite runs without a robot.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Enabled:    true,
			SpeedMPS:   0.5,
			FeedPeriod: Duration(2 * time.Second),
		},
		Navigation: NavigationConfig{
			Locations: map[string]Pose{
				"kitchen":     {X: 3.0, Y: 2.0, Yaw: 0.0},
				"living room": {X: 1.0, Y: 1.0, Yaw: 1.57},
				"bedroom":     {X: 2.0, Y: 3.0, Yaw: -1.57},
				"entrance":    {X: 0.0, Y: 0.0, Yaw: 0.0},
				"home":        {X: 0.0, Y: 0.0, Yaw: 0.0},
			},
			GoalTimeout: Duration(120 * time.Second),
		},
		Detection: DetectionConfig{
			Enabled:    false,
			ModelPath:  "models/yolov8n.onnx",
			Confidence: 0.5,
			NMS:        0.45,
		},
		Voice: VoiceConfig{
			Enabled:      false,
			WakeWord:     "turtlebot",
			Language:     "en-US",
			SampleRate:   16000,
			MoveSpeed:    0.5,
			TurnSpeed:    0.5,
			MoveDuration: Duration(2 * time.Second),
		},
		Maintenance: MaintenanceConfig{
			CheckPeriod:        Duration(30 * time.Second),
			RetryBackoff:       Duration(5 * time.Second),
			ResourceCeiling:    90,
			BatteryWarnTimeout: Duration(60 * time.Second),
			ScanWarnTimeout:    Duration(10 * time.Second),
			IMUWarnTimeout:     Duration(10 * time.Second),
			PoseWarnTimeout:    Duration(5 * time.Second),
			BatteryCritical:    15,
		},
		Bridge: BridgeConfig{
			URL: "ws://localhost:9090",
		},
		Dashboard: DashboardConfig{
			Enabled: true,
			Port:    8080,
		},
	}
}

// Load reads a YAML config file on top of the defaults. On a read or parse
// error it returns the defaults together with the error so callers can log
// and keep going.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return Default(), fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Duration decodes either a Go duration string ("30s") or a bare number of
// seconds, which is what the older configuration files used.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		dur, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("config: bad duration %q: %w", s, perr)
		}
		*d = Duration(dur)
		return nil
	}

	var secs float64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("config: cannot parse duration from %q", value.Value)
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the value as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
