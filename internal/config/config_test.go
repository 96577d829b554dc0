// ABOUTME: Tests for configuration loading and validation
// ABOUTME: Covers defaults, partial overrides, and per-section rejection
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration should validate: %v", err)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 || cfg.Audio.BitDepth != 16 {
		t.Errorf("unexpected default audio config: %+v", cfg.Audio)
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *cfg != *Default() {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
audio:
  sample_rate: 44100
  channels: 2
  bit_depth: 16
routing:
  enabled: true
  preferred_route: "headset"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Audio.SampleRate != 44100 || cfg.Audio.Channels != 2 {
		t.Errorf("audio section not applied: %+v", cfg.Audio)
	}
	if !cfg.Routing.Enabled || cfg.Routing.PreferredRoute != "headset" {
		t.Errorf("routing section not applied: %+v", cfg.Routing)
	}
	// Untouched sections keep their defaults.
	if cfg.Output.Directory != "recordings" {
		t.Errorf("output directory = %q, want default", cfg.Output.Directory)
	}
	if cfg.Device.PlaybackBackend != "malgo" {
		t.Errorf("playback backend = %q, want default", cfg.Device.PlaybackBackend)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("audio: ["), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load should fail for malformed YAML")
	}
}

func TestValidationRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"bad bit depth", func(c *Config) { c.Audio.BitDepth = 24 }},
		{"empty output dir", func(c *Config) { c.Output.Directory = "" }},
		{"unknown capture backend", func(c *Config) { c.Device.CaptureBackend = "alsa" }},
		{"unknown playback backend", func(c *Config) { c.Device.PlaybackBackend = "pulse" }},
		{"routing enabled without route", func(c *Config) { c.Routing.Enabled = true }},
		{"metrics enabled without address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Address = ""
		}},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "logfmt" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate should reject this configuration")
			}
		})
	}
}

func TestFormatMirrorsAudioSection(t *testing.T) {
	cfg := Default()
	cfg.Audio.SampleRate = 8000

	format := cfg.Format()
	if format.SampleRate != 8000 || format.Channels != 1 || format.BitsPerSample != 16 {
		t.Errorf("Format() = %+v, want 8000/1/16", format)
	}
}
