package decode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/wav"

	"github.com/vaist/studio"
)

const wavFormatPCM = 1

// WAV decodes integer PCM .wav files. SampleRate > 0 resamples the result.
type WAV struct {
	SampleRate int
}

func (w WAV) Decode(ctx context.Context, r io.Reader) (*studio.AudioBuffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading wav: %w", err)
	}
	return w.decode(ctx, data)
}

func (w WAV) decode(ctx context.Context, data []byte) (*studio.AudioBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav file", ErrUnsupported)
	}
	if d.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: wav audio format %d", ErrUnsupported, d.WavAudioFormat)
	}
	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding wav: %w", err)
	}
	channels := pcm.Format.NumChannels
	if channels < 1 || d.BitDepth == 0 {
		return nil, fmt.Errorf("%w: wav with %d channels at %d bits", ErrUnsupported, channels, d.BitDepth)
	}
	// 8 bit PCM is unsigned
	offset, scale := 0, float32(math.Pow(2, float64(d.BitDepth-1)))
	if d.BitDepth == 8 {
		offset = 128
	}
	samples := make([]float32, len(pcm.Data))
	for i, v := range pcm.Data {
		samples[i] = float32(v-offset) / scale
	}
	buf := deinterleave(samples, channels, pcm.Format.SampleRate)
	return Resample(buf, w.SampleRate), nil
}
