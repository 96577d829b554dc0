// ABOUTME: Tests for the streaming WAV writer
// ABOUTME: Verifies byte-exact header layout, sizes, and degraded-path behavior
package wav

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/audiotap/audiotap/internal/audio"
)

func testFormat() audio.Format {
	return audio.Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
}

func makeBlock(samples int, value int16) []byte {
	block := make([]int16, samples)
	for i := range block {
		block[i] = value
	}
	buf := make([]byte, samples*2)
	audio.Int16ToBytes(buf, block)
	return buf
}

func TestFinalizedSizes(t *testing.T) {
	// Three 320-sample blocks of 16-bit mono: 44 + 3*320*2 = 1964 bytes.
	path := filepath.Join(t.TempDir(), "session.wav")
	w, err := Create(path, testFormat())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		block := makeBlock(320, int16(i+1))
		n, err := w.Append(block)
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if n != len(block) {
			t.Fatalf("Append wrote %d bytes, want %d", n, len(block))
		}
	}

	if got := w.BytesWritten(); got != 1920 {
		t.Errorf("BytesWritten() = %d, want 1920", got)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if st.Size() != 1964 {
		t.Errorf("file size = %d, want 1964", st.Size())
	}

	info, err := ReadInfo(path)
	if err != nil {
		t.Fatalf("ReadInfo failed: %v", err)
	}
	if info.DataBytes != 1920 {
		t.Errorf("data size = %d, want 1920", info.DataBytes)
	}
	if info.RiffSize != 1920+36 {
		t.Errorf("RIFF chunk size = %d, want %d", info.RiffSize, 1920+36)
	}
}

func TestHeaderByteLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.wav")
	format := audio.Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}

	w, err := Create(path, format)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Append(makeBlock(100, 7)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(raw) != 44+200 {
		t.Fatalf("file length = %d, want %d", len(raw), 44+200)
	}

	le16 := func(off int) uint16 { return binary.LittleEndian.Uint16(raw[off:]) }
	le32 := func(off int) uint32 { return binary.LittleEndian.Uint32(raw[off:]) }

	if string(raw[0:4]) != "RIFF" {
		t.Errorf("offset 0: got %q, want RIFF", raw[0:4])
	}
	if got := le32(4); got != 200+36 {
		t.Errorf("chunk size = %d, want %d", got, 200+36)
	}
	if string(raw[8:12]) != "WAVE" {
		t.Errorf("offset 8: got %q, want WAVE", raw[8:12])
	}
	if string(raw[12:16]) != "fmt " {
		t.Errorf("offset 12: got %q, want 'fmt '", raw[12:16])
	}
	if got := le32(16); got != 16 {
		t.Errorf("fmt chunk size = %d, want 16", got)
	}
	if got := le16(20); got != 1 {
		t.Errorf("format tag = %d, want 1 (PCM)", got)
	}
	if got := le16(22); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := le32(24); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := le32(28); got != 32000 {
		t.Errorf("byte rate = %d, want 32000", got)
	}
	if got := le16(32); got != 2 {
		t.Errorf("block align = %d, want 2", got)
	}
	if got := le16(34); got != 16 {
		t.Errorf("bits per sample = %d, want 16", got)
	}
	if string(raw[36:40]) != "data" {
		t.Errorf("offset 36: got %q, want data", raw[36:40])
	}
	if got := le32(40); got != 200 {
		t.Errorf("data size = %d, want 200", got)
	}
}

func TestZeroLengthSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	w, err := Create(path, testFormat())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if st.Size() != HeaderSize {
		t.Errorf("file size = %d, want %d", st.Size(), HeaderSize)
	}

	info, err := ReadInfo(path)
	if err != nil {
		t.Fatalf("ReadInfo failed: %v", err)
	}
	if info.DataBytes != 0 {
		t.Errorf("data size = %d, want 0", info.DataBytes)
	}
	if info.Duration != 0 {
		t.Errorf("duration = %v, want 0", info.Duration)
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.wav")
	format := audio.Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16}

	w, err := Create(path, format)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var appended []byte
	for _, v := range []int16{100, -200, 300} {
		block := makeBlock(64, v)
		appended = append(appended, block...)
		if _, err := w.Append(block); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	info, err := ReadInfo(path)
	if err != nil {
		t.Fatalf("ReadInfo failed: %v", err)
	}
	if info.Format != format {
		t.Errorf("parsed format = %+v, want %+v", info.Format, format)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(raw[HeaderSize:], appended) {
		t.Error("PCM payload differs from appended bytes")
	}
}

func TestAppendAfterFinalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.wav")
	w, err := Create(path, testFormat())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	if _, err := w.Append([]byte{1, 2}); err == nil {
		t.Error("Append after Finalize should fail")
	}
	if err := w.Finalize(); err == nil {
		t.Error("second Finalize should fail")
	}
}

func TestFailedFinalizeIsNotMarkedFinalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.wav")
	w, err := Create(path, testFormat())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Append(makeBlock(10, 1)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Close the file handle out from under the writer to force the
	// header rewrite to fail.
	if err := w.f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := w.Finalize(); err == nil {
		t.Fatal("Finalize on a closed file should fail")
	}
	if w.finalized {
		t.Error("a failed Finalize must not mark the writer finalized")
	}
}

func TestCloseLeavesPlaceholderHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "degraded.wav")
	w, err := Create(path, testFormat())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Append(makeBlock(10, 42)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Close is idempotent.
	if err := w.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(raw[:HeaderSize], make([]byte, HeaderSize)) {
		t.Error("header should remain the zero placeholder after Close")
	}
	if len(raw) != HeaderSize+20 {
		t.Errorf("file length = %d, want %d", len(raw), HeaderSize+20)
	}
}

func TestCreateRejectsBadDirectory(t *testing.T) {
	// Using a regular file as the parent directory must fail.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := Create(filepath.Join(blocker, "out.wav"), testFormat()); err == nil {
		t.Error("Create should fail when the directory cannot be created")
	}
}
