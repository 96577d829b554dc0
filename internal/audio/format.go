// ABOUTME: Audio format definitions for a recording session
// ABOUTME: Defines the immutable PCM format shared by devices, pipeline, and WAV output
package audio

import (
	"fmt"
	"time"
)

// Format describes the PCM stream format for one recording session.
// It is fixed for the session's lifetime and passed explicitly into
// every component instead of living in process-wide state.
type Format struct {
	SampleRate    int // Hz
	Channels      int
	BitsPerSample int // signed little-endian PCM
}

// DefaultFormat returns the standard capture format: 16kHz mono 16-bit.
func DefaultFormat() Format {
	return Format{
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// Validate checks that the format can be carried by the pipeline.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels < 1 {
		return fmt.Errorf("channel count must be at least 1, got %d", f.Channels)
	}
	if f.BitsPerSample != 16 {
		return fmt.Errorf("unsupported bit depth: %d (only 16-bit PCM is supported)", f.BitsPerSample)
	}
	return nil
}

// BytesPerSample returns the storage size of one sample on one channel.
func (f Format) BytesPerSample() int {
	return f.BitsPerSample / 8
}

// BlockAlign returns bytes per sample-frame across all channels.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// ByteRate returns the number of PCM bytes produced per second.
func (f Format) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

// Duration returns the play time of n PCM bytes in this format.
func (f Format) Duration(n int64) time.Duration {
	if f.ByteRate() == 0 {
		return 0
	}
	return time.Duration(n * int64(time.Second) / int64(f.ByteRate()))
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%d-bit", f.SampleRate, f.Channels, f.BitsPerSample)
}
