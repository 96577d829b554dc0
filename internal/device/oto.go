// ABOUTME: Oto-based playback device
// ABOUTME: Feeds a pipe-backed oto player for platforms where miniaudio output misbehaves
package device

import (
	"errors"
	"fmt"
	"io"

	"github.com/ebitengine/oto/v3"

	"github.com/audiotap/audiotap/internal/audio"
)

// otoPlayback implements Playback on top of oto. The player pulls PCM
// from an in-process pipe, so Write blocks at the device's real-time
// drain rate.
type otoPlayback struct {
	otoCtx      *oto.Context
	player      *oto.Player
	pipeReader  *io.PipeReader
	pipeWriter  *io.PipeWriter
	scratch     []byte
	format      audio.Format
	blockFrames int
}

// NewOtoPlayback returns a Playback backed by the oto library.
func NewOtoPlayback() Playback {
	return &otoPlayback{}
}

func (o *otoPlayback) Open(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if o.otoCtx != nil {
		return fmt.Errorf("playback device already open")
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("%w: failed to create oto context (%s): %v", ErrUnavailable, format, err)
	}
	<-readyChan

	o.pipeReader, o.pipeWriter = io.Pipe()
	o.otoCtx = ctx
	o.player = ctx.NewPlayer(o.pipeReader)
	o.format = format
	o.blockFrames = 2 * periodFrames(format)
	o.scratch = make([]byte, o.blockFrames*format.BlockAlign())
	return nil
}

func (o *otoPlayback) Start() error {
	if o.player == nil {
		return ErrClosed
	}
	o.player.Play()
	return nil
}

func (o *otoPlayback) Write(src []int16) (int, error) {
	if o.pipeWriter == nil {
		return 0, ErrClosed
	}
	if len(src)*2 > len(o.scratch) {
		o.scratch = make([]byte, len(src)*2)
	}
	n := audio.Int16ToBytes(o.scratch, src)
	written, err := o.pipeWriter.Write(o.scratch[:n])
	samples := written / 2
	if err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return samples, ErrClosed
		}
		return samples, fmt.Errorf("failed to write to playback pipe: %w", err)
	}
	return samples, nil
}

func (o *otoPlayback) Stop() error {
	if o.player == nil {
		return ErrClosed
	}
	o.player.Pause()
	return nil
}

func (o *otoPlayback) Release() error {
	if o.pipeWriter != nil {
		_ = o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	var err error
	if o.player != nil {
		err = o.player.Close()
		o.player = nil
	}
	// oto allows only one context per process; it stays alive until exit.
	o.otoCtx = nil
	if err != nil {
		return fmt.Errorf("failed to close oto player: %w", err)
	}
	return nil
}

func (o *otoPlayback) BlockFrames() int {
	return o.blockFrames
}
