package bridge

import (
	"fmt"
	"strings"
	"time"
)

// Config holds bridge client configuration.
type Config struct {
	// URL is the rosbridge WebSocket endpoint.
	// Examples: "ws://localhost:9090", "ws://192.168.68.40:9090"
	URL string `yaml:"url" json:"url"`

	// Namespace is prepended to every topic, for multi-robot setups.
	// Empty for a single robot ("/tb3_0" for a namespaced one).
	Namespace string `yaml:"namespace" json:"namespace"`

	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration `yaml:"dial_timeout" json:"dial_timeout"`

	// ReconnectInterval is how often to attempt reconnection on failure.
	ReconnectInterval time.Duration `yaml:"reconnect_interval" json:"reconnect_interval"`

	// MaxReconnectAttempts is the maximum number of reconnection attempts.
	// 0 means unlimited.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts" json:"max_reconnect_attempts"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:                  "ws://localhost:9090",
		Namespace:            "",
		DialTimeout:          5 * time.Second,
		ReconnectInterval:    2 * time.Second,
		MaxReconnectAttempts: 0, // Unlimited
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(c.URL, "ws://") && !strings.HasPrefix(c.URL, "wss://") {
		return fmt.Errorf("url must be ws:// or wss://, got '%s'", c.URL)
	}
	if c.Namespace != "" && !strings.HasPrefix(c.Namespace, "/") {
		return fmt.Errorf("namespace must start with '/', got '%s'", c.Namespace)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be positive")
	}
	return nil
}
