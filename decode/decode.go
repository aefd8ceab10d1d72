// Package decode turns encoded audio assets into planar float32 buffers at
// the session sample rate. WAV and MP3 are decoded in process; anything else
// is piped through an ffmpeg subprocess.
package decode

import (
	"errors"

	"github.com/vaist/studio"
)

var ErrUnsupported = errors.New("unsupported audio format")

// Resample converts buf to rate with linear interpolation. A buffer already
// at rate, or a rate <= 0, returns buf itself.
func Resample(buf *studio.AudioBuffer, rate int) *studio.AudioBuffer {
	if buf == nil || rate <= 0 || buf.SampleRate == rate || buf.SampleRate <= 0 {
		return buf
	}
	n := buf.Frames()
	frames := int(int64(n) * int64(rate) / int64(buf.SampleRate))
	ret := studio.NewAudioBuffer(rate, buf.NumChannels(), frames)
	step := float64(buf.SampleRate) / float64(rate)
	for c, src := range buf.Channels {
		dst := ret.Channels[c]
		for i := range dst {
			pos := float64(i) * step
			k := int(pos)
			if k >= n-1 {
				dst[i] = src[n-1]
				continue
			}
			frac := float32(pos - float64(k))
			dst[i] = src[k] + (src[k+1]-src[k])*frac
		}
	}
	return ret
}

// deinterleave splits interleaved samples into a planar buffer.
func deinterleave(samples []float32, channels, sampleRate int) *studio.AudioBuffer {
	frames := len(samples) / channels
	ret := studio.NewAudioBuffer(sampleRate, channels, frames)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			ret.Channels[c][i] = samples[i*channels+c]
		}
	}
	return ret
}
