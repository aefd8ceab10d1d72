// Package oto plays a rendering graph through the system audio device.
package oto

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

type (
	// Renderer fills an interleaved stereo buffer; *graph.Context is one.
	Renderer interface {
		RenderInterleaved(buf []float32)
	}

	// Output pulls audio from a Renderer on the device goroutine.
	Output struct {
		mu     sync.Mutex
		ctx    *oto.Context
		player *oto.Player
		reader *Reader
	}
)

const DefaultBufferSize = 50 * time.Millisecond

// Open creates the oto context, a float32 stereo stream at sampleRate, and
// starts playing r. bufferSize <= 0 means DefaultBufferSize. The oto
// context can be created only once per process.
func Open(r Renderer, sampleRate int, bufferSize time.Duration) (*Output, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   bufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	o := &Output{ctx: ctx, reader: NewReader(r)}
	o.player = ctx.NewPlayer(o.reader)
	o.player.Play()
	return o, nil
}

// Frames is the number of frames handed to the device so far.
func (o *Output) Frames() int64 { return o.reader.Frames() }

// Suspend pauses the device; the rendering clock stops with it.
func (o *Output) Suspend() error {
	if err := o.ctx.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

func (o *Output) Resume() error {
	if err := o.ctx.Resume(); err != nil {
		return fmt.Errorf("cannot resume oto context: %w", err)
	}
	return nil
}

// Close stops the player. It is safe to call more than once.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	if err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}
