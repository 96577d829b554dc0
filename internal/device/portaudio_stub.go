//go:build !portaudio

// ABOUTME: PortAudio stubs when the library is not compiled in
// ABOUTME: Open fails with a hint to rebuild with -tags portaudio
package device

import (
	"fmt"

	"github.com/audiotap/audiotap/internal/audio"
)

var errNoPortAudio = fmt.Errorf("%w: portaudio support not enabled (build with -tags portaudio)", ErrUnavailable)

type paStub struct{}

// NewPortAudioCapture returns a Capture stub that fails at Open.
func NewPortAudioCapture() Capture {
	return paStub{}
}

// NewPortAudioPlayback returns a Playback stub that fails at Open.
func NewPortAudioPlayback() Playback {
	return paStub{}
}

func (paStub) Open(audio.Format) error    { return errNoPortAudio }
func (paStub) Start() error               { return errNoPortAudio }
func (paStub) Read([]int16) (int, error)  { return 0, errNoPortAudio }
func (paStub) Write([]int16) (int, error) { return 0, errNoPortAudio }
func (paStub) Stop() error                { return errNoPortAudio }
func (paStub) Release() error             { return nil }
func (paStub) BlockFrames() int           { return 0 }
