// ABOUTME: Capture to playback to WAV transfer pipeline and its start/stop state machine
// ABOUTME: One worker goroutine owns all device and file handles for a session
package pipeline

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/audiotap/audiotap/internal/audio"
	"github.com/audiotap/audiotap/internal/device"
	"github.com/audiotap/audiotap/internal/metrics"
	"github.com/audiotap/audiotap/internal/routing"
	"github.com/audiotap/audiotap/internal/wav"
)

// State identifies where the pipeline is in its session lifecycle.
type State int

const (
	Idle State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// defaultJoinTimeout bounds how long Stop waits for the worker to wind
// down. Past it the caller proceeds as if stopped; the leak is logged,
// never retried.
const defaultJoinTimeout = 5 * time.Second

// Config wires the pipeline's collaborators. Capture, Playback, and
// Hint are interfaces so tests can substitute in-memory pairs.
type Config struct {
	Format    audio.Format
	Capture   device.Capture
	Playback  device.Playback
	Hint      routing.Hint
	OutputDir string

	// JoinTimeout bounds how long Stop waits for the worker to exit.
	// Defaults to 5 seconds.
	JoinTimeout time.Duration

	// Now supplies the clock for recording file names. Defaults to
	// time.Now.
	Now func() time.Time
}

// Pipeline drives the capture/playback/file loop for one session at a
// time. Start and Stop are issued by a single controller, strictly
// alternately; the worker goroutine owns every device and file handle
// between them. Each session gets its own stop flag, and a generation
// counter keeps a worker leaked past the join timeout from touching the
// state or devices of a later session.
type Pipeline struct {
	cfg Config

	mu       sync.Mutex
	state    State
	gen      uint64
	done     chan struct{}
	stop     *atomic.Bool
	lastErr  error
	lastFile string
}

// New validates the configuration and returns an idle pipeline.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format: %w", err)
	}
	if cfg.Capture == nil || cfg.Playback == nil {
		return nil, fmt.Errorf("capture and playback devices are required")
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if cfg.Hint == nil {
		cfg.Hint = routing.Noop()
	}
	if cfg.JoinTimeout == 0 {
		cfg.JoinTimeout = defaultJoinTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{cfg: cfg, state: Idle}, nil
}

// Start begins a recording session. A redundant Start while a session
// is active is a no-op with a warning.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Idle {
		slog.Warn("start ignored: session already active", "state", p.state.String())
		return nil
	}

	p.state = Starting
	p.gen++
	p.lastErr = nil
	p.done = make(chan struct{})
	p.stop = new(atomic.Bool)

	sessionID := uuid.NewString()
	path := filepath.Join(p.cfg.OutputDir, recordingName(p.cfg.Now()))
	metrics.SessionsStarted.Inc()

	go p.run(sessionID, path, p.done, p.stop, p.gen)
	return nil
}

// Stop signals the worker and blocks up to the join timeout for it to
// wind down. Returns the session's terminal error, if any. A Stop with no
// active session is a no-op with a warning.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if p.state != Running && p.state != Starting {
		state := p.state
		p.mu.Unlock()
		slog.Warn("stop ignored: no active session", "state", state.String())
		return nil
	}
	p.state = Stopping
	done := p.done
	stop := p.stop
	p.mu.Unlock()

	stop.Store(true)

	select {
	case <-done:
	case <-time.After(p.cfg.JoinTimeout):
		slog.Error("worker did not exit within timeout; releasing control anyway",
			"timeout", p.cfg.JoinTimeout)
	}

	p.mu.Lock()
	p.state = Idle
	err := p.lastErr
	p.mu.Unlock()
	return err
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Active reports whether a session is starting, running, or stopping.
func (p *Pipeline) Active() bool {
	return p.State() != Idle
}

// Err returns the most recent session's terminal error, or nil.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// LastFile returns the path of the most recent recording, or "".
func (p *Pipeline) LastFile() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFile
}

// recordingName builds the per-session file name from the start time.
func recordingName(t time.Time) string {
	return "audio_" + t.Format("2006-01-02T15-04-05") + ".wav"
}

// run is the session worker. It owns the devices and the file for the
// whole session; the controller only flips the session's stop flag.
// gen identifies this session: once a newer session starts, this worker
// no longer owns the shared devices or the pipeline state.
func (p *Pipeline) run(sessionID, path string, done chan struct{}, stop *atomic.Bool, gen uint64) {
	defer close(done)

	began := time.Now()
	log := slog.With("session_id", sessionID)

	var (
		captureOpen  bool
		playbackOpen bool
		writer       *wav.Writer
		fileErr      error
	)

	// Teardown runs in a fixed order regardless of which step failed,
	// and every step is attempted even if an earlier one errors. A
	// worker leaked past the join timeout only closes its own file: the
	// devices and routing state belong to the newer session by then.
	cleanup := func() {
		owned := p.ownsSession(gen)
		if !owned {
			log.Warn("late worker exit: devices left to the current session")
		}
		if captureOpen && owned {
			if err := p.cfg.Capture.Stop(); err != nil {
				log.Warn("capture stop failed", "err", err)
			}
			if err := p.cfg.Capture.Release(); err != nil {
				log.Warn("capture release failed", "err", err)
			}
		}
		if playbackOpen && owned {
			if err := p.cfg.Playback.Stop(); err != nil {
				log.Warn("playback stop failed", "err", err)
			}
			if err := p.cfg.Playback.Release(); err != nil {
				log.Warn("playback release failed", "err", err)
			}
		}
		if writer != nil {
			if fileErr == nil {
				if err := writer.Finalize(); err != nil {
					log.Error("wav finalize failed", "path", path, "err", err)
				}
			} else {
				_ = writer.Close()
				log.Warn("recording left with placeholder header", "path", path)
			}
		}
		if owned {
			if err := p.cfg.Hint.Revert(); err != nil {
				log.Warn("routing revert failed", "err", err)
			}
		}
	}

	// fail aborts session startup: cleanup in the normal order, then
	// straight back to Idle.
	fail := func(err error) {
		log.Error("session start failed", "err", err)
		p.recordErr(gen, err)
		metrics.SessionsFailed.Inc()
		cleanup()
		p.setIdle(gen)
	}

	if err := p.cfg.Capture.Open(p.cfg.Format); err != nil {
		fail(fmt.Errorf("open capture: %w", err))
		return
	}
	captureOpen = true

	// Routing is applied before playback opens so the preferred endpoint
	// is the one actually selected. Advisory: the session proceeds either
	// way.
	if err := p.cfg.Hint.Apply(); err != nil {
		log.Warn("routing hint not applied", "err", err)
	}

	if err := p.cfg.Playback.Open(p.cfg.Format); err != nil {
		fail(fmt.Errorf("open playback: %w", err))
		return
	}
	playbackOpen = true

	w, err := wav.Create(path, p.cfg.Format)
	if err != nil {
		fail(fmt.Errorf("create recording: %w", err))
		return
	}
	writer = w
	p.mu.Lock()
	if p.gen == gen {
		p.lastFile = path
	}
	p.mu.Unlock()

	if err := p.cfg.Capture.Start(); err != nil {
		fail(fmt.Errorf("start capture: %w", err))
		return
	}
	if err := p.cfg.Playback.Start(); err != nil {
		fail(fmt.Errorf("start playback: %w", err))
		return
	}

	// If Stop already arrived, stay out of Running; the loop below is
	// skipped via the flag either way.
	p.setRunning(gen)

	blockFrames := p.cfg.Capture.BlockFrames()
	log.Info("session running",
		"path", path,
		"format", p.cfg.Format.String(),
		"block_frames", blockFrames,
	)

	// The block and its byte image are reused every iteration: no
	// allocation in steady state, and only this goroutine touches them.
	block := make([]int16, blockFrames*p.cfg.Format.Channels)
	scratch := make([]byte, len(block)*2)

	var (
		totalBytes  int64
		shortWrites int64
		fatal       error
	)

	for !stop.Load() {
		n, err := p.cfg.Capture.Read(block)
		if err != nil {
			fatal = fmt.Errorf("capture read: %w", err)
			break
		}
		if n == 0 {
			continue
		}

		wn, err := p.cfg.Playback.Write(block[:n])
		if err != nil {
			fatal = fmt.Errorf("playback write: %w", err)
			break
		}
		if wn < n {
			// Real-time delivery beats completeness on the monitor
			// branch; the recording still gets the full block.
			shortWrites++
			metrics.PlaybackShortWrites.Inc()
			log.Warn("short playback write", "want", n, "got", wn)
		}

		nb := audio.Int16ToBytes(scratch, block[:n])
		if _, err := writer.Append(scratch[:nb]); err != nil {
			fileErr = err
			fatal = fmt.Errorf("append recording: %w", err)
			break
		}
		totalBytes += int64(nb)
		metrics.BlocksCaptured.Inc()
		metrics.PCMBytesRecorded.Add(float64(nb))
	}

	if fatal != nil {
		p.recordErr(gen, fatal)
		metrics.SessionsFailed.Inc()
		log.Error("session ending on fault", "err", fatal)
	} else {
		metrics.SessionsCompleted.Inc()
	}

	cleanup()
	metrics.SessionDuration.Observe(time.Since(began).Seconds())
	log.Info("session ended",
		"path", path,
		"pcm_bytes", totalBytes,
		"short_writes", shortWrites,
		"duration", time.Since(began).Round(time.Millisecond),
	)
	p.setIdle(gen)
}

// ownsSession reports whether gen is still the current session, i.e. no
// newer Start has taken over the shared devices.
func (p *Pipeline) ownsSession(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen == gen
}

func (p *Pipeline) recordErr(gen uint64, err error) {
	p.mu.Lock()
	if p.gen == gen {
		p.lastErr = err
	}
	p.mu.Unlock()
}

func (p *Pipeline) setIdle(gen uint64) {
	p.mu.Lock()
	if p.gen == gen {
		p.state = Idle
	}
	p.mu.Unlock()
}

func (p *Pipeline) setRunning(gen uint64) {
	p.mu.Lock()
	if p.gen == gen && p.state == Starting {
		p.state = Running
	}
	p.mu.Unlock()
}
