// ABOUTME: Capture and Playback device interfaces and shared error sentinels
// ABOUTME: Narrow lifecycle contracts implemented by the malgo, oto, and portaudio backends
package device

import (
	"errors"

	"github.com/audiotap/audiotap/internal/audio"
)

var (
	// ErrUnavailable reports that a device cannot be opened in the
	// requested format. Fatal to session start; never retried.
	ErrUnavailable = errors.New("audio device unavailable")

	// ErrClosed reports a transfer attempted on a released device.
	ErrClosed = errors.New("audio device closed")
)

// Capture is a real-time audio input endpoint. Open negotiates the
// format, Start begins delivery, and Read blocks for fixed-size sample
// blocks until Stop or Release. A Capture is owned by one goroutine for
// the duration of a session.
type Capture interface {
	// Open initializes the device for the given format. Returns an
	// error wrapping ErrUnavailable if the platform cannot provide it.
	Open(format audio.Format) error

	// Start begins real-time sample delivery.
	Start() error

	// Read blocks until dst is filled with captured samples and returns
	// the number of samples transferred. A zero count with a nil error
	// means no data is currently flowing; an error is a hard fault.
	Read(dst []int16) (int, error)

	// Stop halts delivery without releasing the device.
	Stop() error

	// Release frees the device. Further transfers return ErrClosed.
	Release() error

	// BlockFrames reports the per-transfer block size negotiated at
	// Open: twice the backend period, absorbing delivery jitter without
	// unbounded latency growth.
	BlockFrames() int
}

// Playback is a real-time audio output endpoint with the same lifecycle
// as Capture. Write blocks while the device drains its queue; a short
// count without an error means samples were dropped to preserve
// real-time delivery.
type Playback interface {
	Open(format audio.Format) error
	Start() error

	// Write queues samples for playback and returns the number accepted.
	Write(src []int16) (int, error)

	Stop() error
	Release() error
	BlockFrames() int
}
