// ABOUTME: Streaming WAV file writer with deferred header finalization
// ABOUTME: Writes a 44-byte placeholder, appends PCM, rewrites exact sizes on close
package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/audiotap/audiotap/internal/audio"
)

// HeaderSize is the length of the canonical RIFF/WAVE PCM header.
const HeaderSize = 44

// header mirrors the canonical 44-byte RIFF/WAVE layout.
type header struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // data bytes + 36
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // PCM data bytes
}

// Writer appends PCM to a WAV file whose header is written last.
//
// The file starts with 44 zero bytes. Finalize rewrites the header with
// the exact accumulated sizes; if the process dies first, the file keeps
// the placeholder header but the PCM payload itself remains intact.
// A Writer is owned by a single goroutine.
type Writer struct {
	f         *os.File
	format    audio.Format
	path      string
	dataBytes int64
	finalized bool
}

// Create opens a new WAV file at path, creating the directory if needed,
// and reserves the header region.
func Create(path string, format audio.Format) (*Writer, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording file: %w", err)
	}

	placeholder := make([]byte, HeaderSize)
	if _, err := f.Write(placeholder); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to reserve header: %w", err)
	}

	return &Writer{f: f, format: format, path: path}, nil
}

// Append writes raw little-endian PCM bytes and returns the count written.
// A short write is reported as an error; the caller should treat any
// error as session-ending.
func (w *Writer) Append(p []byte) (int, error) {
	if w.f == nil {
		return 0, fmt.Errorf("writer for %s is closed", w.path)
	}

	n, err := w.f.Write(p)
	w.dataBytes += int64(n)
	if err != nil {
		return n, fmt.Errorf("failed to append PCM data: %w", err)
	}
	if n < len(p) {
		return n, fmt.Errorf("short PCM write (%d of %d bytes): %w", n, len(p), io.ErrShortWrite)
	}
	return n, nil
}

// Finalize seeks back to the start, writes the complete header with the
// accumulated data size, and closes the file. It must be called exactly
// once, after all appends, on the happy path only.
func (w *Writer) Finalize() error {
	if w.f == nil {
		if w.finalized {
			return fmt.Errorf("writer for %s already finalized", w.path)
		}
		return fmt.Errorf("writer for %s is closed", w.path)
	}

	hdr := header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(w.dataBytes) + 36,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(w.format.Channels),
		SampleRate:    uint32(w.format.SampleRate),
		ByteRate:      uint32(w.format.ByteRate()),
		BlockAlign:    uint16(w.format.BlockAlign()),
		BitsPerSample: uint16(w.format.BitsPerSample),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(w.dataBytes),
	}

	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		_ = w.close()
		return fmt.Errorf("failed to seek to header: %w", err)
	}
	if err := binary.Write(w.f, binary.LittleEndian, hdr); err != nil {
		_ = w.close()
		return fmt.Errorf("failed to write WAV header: %w", err)
	}

	syncErr := w.f.Sync()
	closeErr := w.close()
	if syncErr != nil {
		return fmt.Errorf("failed to sync recording: %w", syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close recording: %w", closeErr)
	}
	w.finalized = true
	return nil
}

// Close releases the file without rewriting the header. Used on the
// degraded path after an append failure; the file keeps its placeholder
// header. Safe to call on an already-closed writer.
func (w *Writer) Close() error {
	if w.f == nil {
		return nil
	}
	return w.close()
}

func (w *Writer) close() error {
	err := w.f.Close()
	w.f = nil
	return err
}

// BytesWritten returns the number of PCM bytes appended so far.
func (w *Writer) BytesWritten() int64 {
	return w.dataBytes
}

// Path returns the location of the recording file.
func (w *Writer) Path() string {
	return w.path
}
