// ABOUTME: WAV header parsing for recorded-file verification
// ABOUTME: Validates the canonical layout and reports format and duration
package wav

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/audiotap/audiotap/internal/audio"
)

// Info summarizes a recorded WAV file.
type Info struct {
	Format    audio.Format
	DataBytes int64
	RiffSize  int64
	Duration  time.Duration
}

// ReadInfo parses and validates the 44-byte header of the file at path.
func ReadInfo(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open recording: %w", err)
	}
	defer func() { _ = f.Close() }()

	var hdr header
	if err := binary.Read(f, binary.LittleEndian, &hdr); err != nil {
		return Info{}, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if string(hdr.ChunkID[:]) != "RIFF" {
		return Info{}, fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(hdr.Format[:]) != "WAVE" {
		return Info{}, fmt.Errorf("invalid WAV file: missing WAVE format")
	}
	if string(hdr.Subchunk1ID[:]) != "fmt " {
		return Info{}, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}
	if string(hdr.Subchunk2ID[:]) != "data" {
		return Info{}, fmt.Errorf("invalid WAV file: missing data chunk")
	}
	if hdr.AudioFormat != 1 {
		return Info{}, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", hdr.AudioFormat)
	}

	format := audio.Format{
		SampleRate:    int(hdr.SampleRate),
		Channels:      int(hdr.NumChannels),
		BitsPerSample: int(hdr.BitsPerSample),
	}

	return Info{
		Format:    format,
		DataBytes: int64(hdr.Subchunk2Size),
		RiffSize:  int64(hdr.ChunkSize),
		Duration:  format.Duration(int64(hdr.Subchunk2Size)),
	}, nil
}
