// ABOUTME: miniaudio-backed capture and playback devices via malgo
// ABOUTME: Bridges malgo's callback model to blocking block transfers through ring buffers
package device

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/audiotap/audiotap/internal/audio"
)

// ringPeriods is the ring capacity in device periods. Large enough to
// absorb scheduling hiccups on the worker side without growing latency
// past a few hundred milliseconds.
const ringPeriods = 16

// Engine owns the malgo context shared by all devices in the process.
// It also holds the current playback route preference: devices opened
// after UsePlaybackRoute target that endpoint instead of the default.
type Engine struct {
	ctx *malgo.AllocatedContext

	mu        sync.Mutex
	preferred *malgo.DeviceID
}

// NewEngine initializes the platform audio backend.
func NewEngine() (*Engine, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	return &Engine{ctx: ctx}, nil
}

// Close tears down the audio context. Devices must be released first.
func (e *Engine) Close() error {
	if e.ctx == nil {
		return nil
	}
	err := e.ctx.Uninit()
	e.ctx.Free()
	e.ctx = nil
	if err != nil {
		return fmt.Errorf("failed to uninit audio context: %w", err)
	}
	return nil
}

// Route identifies an audio endpoint reported by the platform.
type Route struct {
	Name      string
	IsDefault bool
}

// PlaybackRoutes enumerates the available output endpoints.
func (e *Engine) PlaybackRoutes() ([]Route, error) {
	return e.routes(malgo.Playback)
}

// CaptureRoutes enumerates the available input endpoints.
func (e *Engine) CaptureRoutes() ([]Route, error) {
	return e.routes(malgo.Capture)
}

func (e *Engine) routes(kind malgo.DeviceType) ([]Route, error) {
	if e.ctx == nil {
		return nil, ErrClosed
	}
	infos, err := e.ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	routes := make([]Route, 0, len(infos))
	for _, info := range infos {
		routes = append(routes, Route{
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		})
	}
	return routes, nil
}

// UsePlaybackRoute resolves name to a playback endpoint and directs
// playback devices opened afterwards at it. The preference holds until
// UseDefaultPlayback.
func (e *Engine) UsePlaybackRoute(name string) error {
	if e.ctx == nil {
		return ErrClosed
	}
	infos, err := e.ctx.Devices(malgo.Playback)
	if err != nil {
		return fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, info := range infos {
		if info.Name() == name {
			id := info.ID
			e.mu.Lock()
			e.preferred = &id
			e.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("no playback device named %q", name)
}

// UseDefaultPlayback restores default playback device selection.
func (e *Engine) UseDefaultPlayback() {
	e.mu.Lock()
	e.preferred = nil
	e.mu.Unlock()
}

func (e *Engine) preferredPlayback() *malgo.DeviceID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.preferred
}

// periodFrames is the device period used for both directions: 10ms, the
// conventional low-latency period for miniaudio.
func periodFrames(format audio.Format) int {
	return format.SampleRate / 100
}

// malgoCapture is the default Capture backend.
type malgoCapture struct {
	eng         *Engine
	device      *malgo.Device
	ring        *ring
	scratch     []int16
	format      audio.Format
	blockFrames int
}

// NewCapture returns a Capture backed by the default input device.
func NewCapture(eng *Engine) Capture {
	return &malgoCapture{eng: eng}
}

func (c *malgoCapture) Open(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if c.eng.ctx == nil {
		return ErrClosed
	}

	period := periodFrames(format)
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(format.Channels)
	cfg.SampleRate = uint32(format.SampleRate)
	cfg.PeriodSizeInFrames = uint32(period)
	cfg.Alsa.NoMMap = 1

	c.ring = newRing(period * format.Channels * ringPeriods)
	c.scratch = make([]int16, period*format.Channels)

	// The data callback runs on miniaudio's real-time thread: decode
	// into the preallocated scratch and push without blocking.
	onData := func(_, pInput []byte, frameCount uint32) {
		samples := int(frameCount) * format.Channels
		if samples > len(c.scratch) {
			c.scratch = make([]int16, samples)
		}
		n := audio.BytesToInt16(c.scratch[:samples], pInput)
		c.ring.push(c.scratch[:n])
	}

	device, err := malgo.InitDevice(c.eng.ctx.Context, cfg, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		c.ring.close()
		return fmt.Errorf("%w: failed to open capture device (%s): %v", ErrUnavailable, format, err)
	}

	c.device = device
	c.format = format
	c.blockFrames = 2 * period
	return nil
}

func (c *malgoCapture) Start() error {
	if c.device == nil {
		return ErrClosed
	}
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

func (c *malgoCapture) Read(dst []int16) (int, error) {
	if c.ring == nil {
		return 0, ErrClosed
	}
	return c.ring.readBlock(dst)
}

func (c *malgoCapture) Stop() error {
	if c.device == nil {
		return ErrClosed
	}
	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}

func (c *malgoCapture) Release() error {
	if c.ring != nil {
		c.ring.close()
		if dropped := c.ring.droppedSamples(); dropped > 0 {
			slog.Warn("capture ring overflowed during session", "dropped_samples", dropped)
		}
	}
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	return nil
}

func (c *malgoCapture) BlockFrames() int {
	return c.blockFrames
}

// malgoPlayback is the default Playback backend.
type malgoPlayback struct {
	eng         *Engine
	device      *malgo.Device
	ring        *ring
	scratch     []int16
	format      audio.Format
	blockFrames int
}

// NewPlayback returns a Playback backed by the default output device.
func NewPlayback(eng *Engine) Playback {
	return &malgoPlayback{eng: eng}
}

func (p *malgoPlayback) Open(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if p.eng.ctx == nil {
		return ErrClosed
	}

	period := periodFrames(format)
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(format.Channels)
	cfg.SampleRate = uint32(format.SampleRate)
	cfg.PeriodSizeInFrames = uint32(period)
	cfg.Alsa.NoMMap = 1
	if id := p.eng.preferredPlayback(); id != nil {
		cfg.Playback.DeviceID = id.Pointer()
	}

	p.ring = newRing(period * format.Channels * ringPeriods)
	p.scratch = make([]int16, period*format.Channels)

	// Underruns are zero-filled by pull: silence beats stalling the
	// output device.
	onData := func(pOutput, _ []byte, frameCount uint32) {
		samples := int(frameCount) * format.Channels
		if samples > len(p.scratch) {
			p.scratch = make([]int16, samples)
		}
		p.ring.pull(p.scratch[:samples])
		audio.Int16ToBytes(pOutput, p.scratch[:samples])
	}

	device, err := malgo.InitDevice(p.eng.ctx.Context, cfg, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		p.ring.close()
		return fmt.Errorf("%w: failed to open playback device (%s): %v", ErrUnavailable, format, err)
	}

	p.device = device
	p.format = format
	p.blockFrames = 2 * period
	return nil
}

func (p *malgoPlayback) Start() error {
	if p.device == nil {
		return ErrClosed
	}
	if err := p.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

func (p *malgoPlayback) Write(src []int16) (int, error) {
	if p.ring == nil {
		return 0, ErrClosed
	}
	return p.ring.writeBlock(src)
}

func (p *malgoPlayback) Stop() error {
	if p.device == nil {
		return ErrClosed
	}
	if err := p.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}
	return nil
}

func (p *malgoPlayback) Release() error {
	if p.ring != nil {
		p.ring.close()
	}
	if p.device != nil {
		p.device.Uninit()
		p.device = nil
	}
	return nil
}

func (p *malgoPlayback) BlockFrames() int {
	return p.blockFrames
}
