package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/vaist/studio"
)

// MP3 decodes MPEG-1 layer III files. The decoder always produces stereo.
// SampleRate > 0 resamples the result.
type MP3 struct {
	SampleRate int
}

func (m MP3) Decode(ctx context.Context, r io.Reader) (*studio.AudioBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("decoding mp3: %w", err)
	}
	pcm := make([]int16, len(raw)/2)
	if err := binary.Read(bytes.NewReader(raw[:len(pcm)*2]), binary.LittleEndian, pcm); err != nil {
		return nil, fmt.Errorf("decoding mp3: %w", err)
	}
	samples := make([]float32, len(pcm))
	for i, v := range pcm {
		samples[i] = float32(v) / 32768
	}
	return Resample(deinterleave(samples, 2, d.SampleRate()), m.SampleRate), nil
}
