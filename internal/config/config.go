// ABOUTME: YAML configuration with defaults and per-section validation
// ABOUTME: Covers audio format, output location, device backends, routing, metrics, logging
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/audiotap/audiotap/internal/audio"
)

// Config is the complete service configuration.
type Config struct {
	Audio   AudioConfig   `yaml:"audio"`
	Output  OutputConfig  `yaml:"output"`
	Device  DeviceConfig  `yaml:"device"`
	Routing RoutingConfig `yaml:"routing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// AudioConfig fixes the PCM format for every session.
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	BitDepth   int `yaml:"bit_depth"`
}

// OutputConfig locates the recording files.
type OutputConfig struct {
	Directory string `yaml:"directory"`
}

// DeviceConfig selects the audio backends.
type DeviceConfig struct {
	CaptureBackend  string `yaml:"capture_backend"`  // malgo | portaudio
	PlaybackBackend string `yaml:"playback_backend"` // malgo | oto | portaudio
}

// RoutingConfig controls the advisory route preference hint.
type RoutingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	PreferredRoute string `yaml:"preferred_route"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
			BitDepth:   16,
		},
		Output: OutputConfig{
			Directory: "recordings",
		},
		Device: DeviceConfig{
			CaptureBackend:  "malgo",
			PlaybackBackend: "malgo",
		},
		Routing: RoutingConfig{
			Enabled: false,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9100",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and validates the configuration file at path. An empty
// path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Format returns the session format described by the audio section.
func (c *Config) Format() audio.Format {
	return audio.Format{
		SampleRate:    c.Audio.SampleRate,
		Channels:      c.Audio.Channels,
		BitsPerSample: c.Audio.BitDepth,
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output config: %w", err)
	}
	if err := c.Device.Validate(); err != nil {
		return fmt.Errorf("device config: %w", err)
	}
	if err := c.Routing.Validate(); err != nil {
		return fmt.Errorf("routing config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (a AudioConfig) Validate() error {
	format := audio.Format{SampleRate: a.SampleRate, Channels: a.Channels, BitsPerSample: a.BitDepth}
	return format.Validate()
}

func (o OutputConfig) Validate() error {
	if o.Directory == "" {
		return fmt.Errorf("directory must not be empty")
	}
	return nil
}

func (d DeviceConfig) Validate() error {
	switch d.CaptureBackend {
	case "malgo", "portaudio":
	default:
		return fmt.Errorf("unknown capture backend %q (supported: malgo, portaudio)", d.CaptureBackend)
	}
	switch d.PlaybackBackend {
	case "malgo", "oto", "portaudio":
	default:
		return fmt.Errorf("unknown playback backend %q (supported: malgo, oto, portaudio)", d.PlaybackBackend)
	}
	return nil
}

func (r RoutingConfig) Validate() error {
	if r.Enabled && r.PreferredRoute == "" {
		return fmt.Errorf("preferred_route must be set when routing is enabled")
	}
	return nil
}

func (m MetricsConfig) Validate() error {
	if m.Enabled && m.Address == "" {
		return fmt.Errorf("address must be set when metrics are enabled")
	}
	return nil
}

func (l LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q (supported: debug, info, warn, error)", l.Level)
	}
	switch l.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (supported: text, json)", l.Format)
	}
	return nil
}
