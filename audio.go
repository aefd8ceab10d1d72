package studio

import (
	"context"
	"io"
	"time"
)

type (
	// AudioBuffer is decoded audio in planar layout: Channels[c][frame]. All
	// channels have the same length.
	AudioBuffer struct {
		SampleRate int
		Channels   [][]float32
	}

	// Insert is a processing stage that can be spliced into an insert chain.
	// Its DSP is opaque to the engine: the engine only prepares it, feeds it
	// blocks in place and forwards parameter changes.
	Insert interface {
		Prepare(sampleRate int)
		Reset()
		// Process processes one block in place; block[c] is channel c.
		Process(block [][]float32)
		SetParam(name string, value float64) bool
		Param(name string) (float64, bool)
	}

	// InsertHost resolves the processing instance referenced by an insert
	// slot.
	InsertHost interface {
		Lookup(instance string) (Insert, bool)
	}

	// Decoder turns encoded audio into an AudioBuffer.
	Decoder interface {
		Decode(ctx context.Context, r io.Reader) (*AudioBuffer, error)
	}

	// AssetSource opens the encoded bytes of an asset.
	AssetSource interface {
		Open(ctx context.Context, assetID string) (io.ReadCloser, error)
	}

	// AudioSink is a destination for interleaved stereo audio.
	AudioSink interface {
		WriteAudio(buffer []float32) error
		Close() error
	}
)

// NewAudioBuffer allocates a silent buffer.
func NewAudioBuffer(sampleRate, channels, frames int) *AudioBuffer {
	ret := &AudioBuffer{SampleRate: sampleRate, Channels: make([][]float32, channels)}
	for i := range ret.Channels {
		ret.Channels[i] = make([]float32, frames)
	}
	return ret
}

// Frames is the length of the buffer in sample frames.
func (b *AudioBuffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

func (b *AudioBuffer) NumChannels() int {
	if b == nil {
		return 0
	}
	return len(b.Channels)
}

func (b *AudioBuffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// Channel returns channel i; a mono buffer returns its only channel for any
// i, so mono assets play on both sides of a stereo chain.
func (b *AudioBuffer) Channel(i int) []float32 {
	if len(b.Channels) == 0 {
		return nil
	}
	if i >= len(b.Channels) {
		return b.Channels[len(b.Channels)-1]
	}
	return b.Channels[i]
}

// Interleaved returns the first two channels interleaved as L R L R...
func (b *AudioBuffer) Interleaved() []float32 {
	n := b.Frames()
	ret := make([]float32, 0, n*2)
	l, r := b.Channel(0), b.Channel(1)
	for i := 0; i < n; i++ {
		ret = append(ret, l[i], r[i])
	}
	return ret
}
