//go:build portaudio

// ABOUTME: PortAudio capture and playback devices
// ABOUTME: Optional backend enabled with -tags portaudio
package device

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/audiotap/audiotap/internal/audio"
)

// paCapture implements Capture on the default PortAudio input stream.
type paCapture struct {
	stream      *portaudio.Stream
	buf         []int16
	blockFrames int
}

// NewPortAudioCapture returns a Capture backed by PortAudio.
func NewPortAudioCapture() Capture {
	return &paCapture{}
}

func (c *paCapture) Open(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: failed to initialize portaudio: %v", ErrUnavailable, err)
	}

	c.blockFrames = 2 * periodFrames(format)
	c.buf = make([]int16, c.blockFrames*format.Channels)

	stream, err := portaudio.OpenDefaultStream(format.Channels, 0, float64(format.SampleRate), c.blockFrames, c.buf)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: failed to open capture stream (%s): %v", ErrUnavailable, format, err)
	}
	c.stream = stream
	return nil
}

func (c *paCapture) Start() error {
	if c.stream == nil {
		return ErrClosed
	}
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start capture stream: %w", err)
	}
	return nil
}

func (c *paCapture) Read(dst []int16) (int, error) {
	if c.stream == nil {
		return 0, ErrClosed
	}
	if err := c.stream.Read(); err != nil {
		return 0, fmt.Errorf("capture stream read failed: %w", err)
	}
	n := copy(dst, c.buf)
	return n, nil
}

func (c *paCapture) Stop() error {
	if c.stream == nil {
		return ErrClosed
	}
	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture stream: %w", err)
	}
	return nil
}

func (c *paCapture) Release() error {
	if c.stream == nil {
		return nil
	}
	err := c.stream.Close()
	c.stream = nil
	_ = portaudio.Terminate()
	if err != nil {
		return fmt.Errorf("failed to close capture stream: %w", err)
	}
	return nil
}

func (c *paCapture) BlockFrames() int {
	return c.blockFrames
}

// paPlayback implements Playback on the default PortAudio output stream.
type paPlayback struct {
	stream      *portaudio.Stream
	buf         []int16
	blockFrames int
}

// NewPortAudioPlayback returns a Playback backed by PortAudio.
func NewPortAudioPlayback() Playback {
	return &paPlayback{}
}

func (p *paPlayback) Open(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: failed to initialize portaudio: %v", ErrUnavailable, err)
	}

	p.blockFrames = 2 * periodFrames(format)
	p.buf = make([]int16, p.blockFrames*format.Channels)

	stream, err := portaudio.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), p.blockFrames, p.buf)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: failed to open playback stream (%s): %v", ErrUnavailable, format, err)
	}
	p.stream = stream
	return nil
}

func (p *paPlayback) Start() error {
	if p.stream == nil {
		return ErrClosed
	}
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("failed to start playback stream: %w", err)
	}
	return nil
}

func (p *paPlayback) Write(src []int16) (int, error) {
	if p.stream == nil {
		return 0, ErrClosed
	}
	n := copy(p.buf, src)
	for i := n; i < len(p.buf); i++ {
		p.buf[i] = 0
	}
	if err := p.stream.Write(); err != nil {
		return 0, fmt.Errorf("playback stream write failed: %w", err)
	}
	return n, nil
}

func (p *paPlayback) Stop() error {
	if p.stream == nil {
		return ErrClosed
	}
	if err := p.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback stream: %w", err)
	}
	return nil
}

func (p *paPlayback) Release() error {
	if p.stream == nil {
		return nil
	}
	err := p.stream.Close()
	p.stream = nil
	_ = portaudio.Terminate()
	if err != nil {
		return fmt.Errorf("failed to close playback stream: %w", err)
	}
	return nil
}

func (p *paPlayback) BlockFrames() int {
	return p.blockFrames
}
