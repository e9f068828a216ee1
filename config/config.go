// Package config loads and validates the hub's service configuration from a
// YAML document. Missing values fall back to defaults so a minimal file with
// just the NATS URL is a working configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ftcid/AutomatedHomeV2/errors"
)

// Persistence mode constants
const (
	PersistModeNoop = "noop" // discard state changes
	PersistModeKV   = "kv"   // NATS JetStream key-value bucket
)

// Config represents the complete application configuration
type Config struct {
	NATS     NATSConfig     `yaml:"nats"`
	Rules    RulesConfig    `yaml:"rules"`
	HTTP     HTTPConfig     `yaml:"http"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Persist  PersistConfig  `yaml:"persist"`
	Liveness LivenessConfig `yaml:"liveness"`
	Clock    ClockConfig    `yaml:"clock"`
	Log      LogConfig      `yaml:"log"`
}

// NATSConfig holds connection settings for the message bus
type NATSConfig struct {
	URL            string        `yaml:"url"`
	Username       string        `yaml:"username,omitempty"`
	Password       string        `yaml:"password,omitempty"`
	Token          string        `yaml:"token,omitempty"`
	ClientName     string        `yaml:"client_name"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReconnectWait  time.Duration `yaml:"reconnect_wait"`
	MaxReconnects  int           `yaml:"max_reconnects"`
}

// RulesConfig locates the rule document and sets the reload cadence
type RulesConfig struct {
	Path         string        `yaml:"path"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// HTTPConfig holds gateway settings
type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DispatchConfig holds action queue settings
type DispatchConfig struct {
	QueueSize    int           `yaml:"queue_size"`
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// PersistConfig selects the state persistence backend
type PersistConfig struct {
	Mode      string `yaml:"mode"`
	Bucket    string `yaml:"bucket"`
	QueueSize int    `yaml:"queue_size"`
}

// LivenessConfig holds device liveness tracking settings
type LivenessConfig struct {
	PingTopic      string `yaml:"ping_topic"`
	ReservedPrefix string `yaml:"reserved_prefix"`
}

// ClockConfig controls the date/time publisher
type ClockConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config", "Load", "read "+path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "parse "+path)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.NATS.URL == "" {
		c.NATS.URL = "nats://127.0.0.1:4222"
	}
	if c.NATS.ClientName == "" {
		c.NATS.ClientName = "automatedhome"
	}
	if c.NATS.ConnectTimeout <= 0 {
		c.NATS.ConnectTimeout = 5 * time.Second
	}
	if c.NATS.ReconnectWait <= 0 {
		c.NATS.ReconnectWait = 2 * time.Second
	}
	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = -1
	}

	if c.Rules.Path == "" {
		c.Rules.Path = "rules.yaml"
	}
	if c.Rules.PollInterval <= 0 {
		c.Rules.PollInterval = time.Minute
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = 10 * time.Second
	}

	if c.Dispatch.QueueSize <= 0 {
		c.Dispatch.QueueSize = 1024
	}
	if c.Dispatch.MaxRetries <= 0 {
		c.Dispatch.MaxRetries = 3
	}
	if c.Dispatch.InitialDelay <= 0 {
		c.Dispatch.InitialDelay = 100 * time.Millisecond
	}
	if c.Dispatch.MaxDelay <= 0 {
		c.Dispatch.MaxDelay = 5 * time.Second
	}

	if c.Persist.Mode == "" {
		c.Persist.Mode = PersistModeNoop
	}
	if c.Persist.Bucket == "" {
		c.Persist.Bucket = "automatedhome-state"
	}
	if c.Persist.QueueSize <= 0 {
		c.Persist.QueueSize = 512
	}

	if c.Liveness.PingTopic == "" {
		c.Liveness.PingTopic = "/global/ping/devices"
	}
	if c.Liveness.ReservedPrefix == "" {
		c.Liveness.ReservedPrefix = "/global/"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		return errors.WrapInvalid(
			fmt.Errorf("nats url %q must use nats:// or tls://", c.NATS.URL),
			"config", "Validate", "nats section")
	}

	if c.Persist.Mode != PersistModeNoop && c.Persist.Mode != PersistModeKV {
		return errors.WrapInvalid(
			fmt.Errorf("persist mode %q must be %q or %q", c.Persist.Mode, PersistModeNoop, PersistModeKV),
			"config", "Validate", "persist section")
	}

	if !strings.HasPrefix(c.Liveness.PingTopic, "/") {
		return errors.WrapInvalid(
			fmt.Errorf("ping topic %q must start with /", c.Liveness.PingTopic),
			"config", "Validate", "liveness section")
	}
	if !strings.HasPrefix(c.Liveness.ReservedPrefix, "/") {
		return errors.WrapInvalid(
			fmt.Errorf("reserved prefix %q must start with /", c.Liveness.ReservedPrefix),
			"config", "Validate", "liveness section")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("log level %q must be debug, info, warn or error", c.Log.Level),
			"config", "Validate", "log section")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("log format %q must be text or json", c.Log.Format),
			"config", "Validate", "log section")
	}

	return nil
}
