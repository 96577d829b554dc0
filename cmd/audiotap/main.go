// ABOUTME: Entry point for the audiotap monitor/recorder
// ABOUTME: Parses CLI flags, wires devices to the pipeline, and handles shutdown
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audiotap/audiotap/internal/config"
	"github.com/audiotap/audiotap/internal/device"
	"github.com/audiotap/audiotap/internal/metrics"
	"github.com/audiotap/audiotap/internal/pipeline"
	"github.com/audiotap/audiotap/internal/routing"
	"github.com/audiotap/audiotap/internal/version"
	"github.com/audiotap/audiotap/internal/wav"
)

var (
	configPath  = flag.String("config", "", "Path to YAML config file (optional)")
	outputDir   = flag.String("output-dir", "", "Recording directory (overrides config)")
	duration    = flag.Duration("duration", 0, "Stop automatically after this long (0 runs until interrupted)")
	listDevices = flag.Bool("list-devices", false, "List audio devices and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audiotap: %v\n", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Output.Directory = *outputDir
	}

	initLogger(cfg.Logging)

	if err := run(cfg); err != nil {
		slog.Error("session failed", "error", err)
		os.Exit(1)
	}
}

// initLogger installs the process-wide slog handler from the logging
// config. Validation has already vetted the level and format strings.
func initLogger(cfg config.LoggingConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func run(cfg *config.Config) error {
	eng, err := device.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to initialize audio engine: %w", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Warn("audio engine close failed", "error", err)
		}
	}()

	if *listDevices {
		return printDevices(eng)
	}

	capture, err := buildCapture(cfg, eng)
	if err != nil {
		return err
	}
	playback, err := buildPlayback(cfg, eng)
	if err != nil {
		return err
	}

	hint := routing.Noop()
	if cfg.Routing.Enabled {
		hint = routing.NewPreference(eng, cfg.Routing.PreferredRoute)
	}

	pipe, err := pipeline.New(pipeline.Config{
		Format:    cfg.Format(),
		Capture:   capture,
		Playback:  playback,
		Hint:      hint,
		OutputDir: cfg.Output.Directory,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Address)
	}

	slog.Info("starting session",
		"format", cfg.Format().String(),
		"output_dir", cfg.Output.Directory,
		"capture_backend", cfg.Device.CaptureBackend,
		"playback_backend", cfg.Device.PlaybackBackend)
	if err := pipe.Start(); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	waitForEnd(pipe, *duration)

	stopErr := pipe.Stop()
	if stopErr == nil {
		// A session that faulted before we asked it to stop still has
		// its terminal error on record.
		stopErr = pipe.Err()
	}
	reportRecording(pipe.LastFile())
	return stopErr
}

// waitForEnd blocks until an interrupt arrives, the optional duration
// elapses, or the pipeline terminates itself after a fault.
func waitForEnd(pipe *pipeline.Pipeline, limit time.Duration) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var timeout <-chan time.Time
	if limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		timeout = timer.C
	}

	// The pipeline exposes no completion channel to its controller, so
	// poll for a self-terminated session.
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case sig := <-sigCh:
			slog.Info("shutdown signal received", "signal", sig.String())
			return
		case <-timeout:
			slog.Info("duration limit reached", "limit", limit.String())
			return
		case <-ticker.C:
			if !pipe.Active() {
				if err := pipe.Err(); err != nil {
					slog.Error("session ended on its own", "error", err)
				}
				return
			}
		}
	}
}

func buildCapture(cfg *config.Config, eng *device.Engine) (device.Capture, error) {
	switch cfg.Device.CaptureBackend {
	case "malgo":
		return device.NewCapture(eng), nil
	case "portaudio":
		return device.NewPortAudioCapture(), nil
	default:
		return nil, fmt.Errorf("unknown capture backend %q", cfg.Device.CaptureBackend)
	}
}

func buildPlayback(cfg *config.Config, eng *device.Engine) (device.Playback, error) {
	switch cfg.Device.PlaybackBackend {
	case "malgo":
		return device.NewPlayback(eng), nil
	case "oto":
		return device.NewOtoPlayback(), nil
	case "portaudio":
		return device.NewPortAudioPlayback(), nil
	default:
		return nil, fmt.Errorf("unknown playback backend %q", cfg.Device.PlaybackBackend)
	}
}

func printDevices(eng *device.Engine) error {
	captures, err := eng.CaptureRoutes()
	if err != nil {
		return fmt.Errorf("failed to enumerate capture devices: %w", err)
	}
	playbacks, err := eng.PlaybackRoutes()
	if err != nil {
		return fmt.Errorf("failed to enumerate playback devices: %w", err)
	}

	fmt.Println("Capture devices:")
	for _, r := range captures {
		printRoute(r)
	}
	fmt.Println("Playback devices:")
	for _, r := range playbacks {
		printRoute(r)
	}
	return nil
}

func printRoute(r device.Route) {
	marker := " "
	if r.IsDefault {
		marker = "*"
	}
	fmt.Printf("  %s %s\n", marker, r.Name)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	slog.Info("metrics endpoint listening", "address", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Warn("metrics endpoint stopped", "error", err)
	}
}

// reportRecording summarizes the finished file so the user can see at a
// glance whether anything was captured.
func reportRecording(path string) {
	if path == "" {
		return
	}
	info, err := wav.ReadInfo(path)
	if err != nil {
		slog.Warn("recording written but unreadable", "path", path, "error", err)
		return
	}
	slog.Info("recording saved",
		"path", path,
		"format", info.Format.String(),
		"data_bytes", info.DataBytes,
		"duration", info.Duration.Round(time.Millisecond).String())
}
