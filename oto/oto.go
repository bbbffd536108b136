// Package oto drives a host.Engine from the audio callback of the sound
// card, so that the recorder's clock runs at the rate of a real audio
// device. The output itself is silence.
package oto

import (
	"fmt"
	"time"

	"github.com/chinenual/midirec/host"
	"github.com/ebitengine/oto/v3"
)

const (
	channelCount   = 2
	bytesPerSample = 4 // float32
	bytesPerFrame  = channelCount * bytesPerSample
	bufferDuration = 10 * time.Millisecond
)

type (
	// Reader is the io.Reader handed to the oto player: every frame it is
	// asked for runs one frame of the engine.
	Reader struct {
		engine *host.Engine
		src    host.EventSource
	}

	Driver struct {
		ctx    *oto.Context
		player *oto.Player
	}
)

func NewReader(engine *host.Engine, src host.EventSource) *Reader {
	return &Reader{engine: engine, src: src}
}

// Read processes len(p)/8 frames and fills p with silence.
func (r *Reader) Read(p []byte) (int, error) {
	n := len(p) - len(p)%bytesPerFrame
	if n == 0 {
		clear(p)
		return len(p), nil
	}
	r.engine.Process(n/bytesPerFrame, r.src)
	clear(p[:n])
	return n, nil
}

// NewDriver opens the default audio device and starts pulling frames
// through the engine. src may be nil.
func NewDriver(engine *host.Engine, src host.EventSource, sampleRate int) (*Driver, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatFloat32LE,
		BufferSize:   bufferDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	engine.SetSampleRate(sampleRate)
	player := ctx.NewPlayer(NewReader(engine, src))
	player.Play()
	return &Driver{ctx: ctx, player: player}, nil
}

// Close stops the callback. The engine is not touched after Close returns.
func (d *Driver) Close() error {
	if err := d.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	if err := d.ctx.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}
