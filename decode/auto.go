package decode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vaist/studio"
)

// Auto sniffs the container and dispatches to the matching decoder. Formats
// without an in-process decoder, and WAV variants the WAV decoder rejects,
// go to FFmpeg when it is set.
type Auto struct {
	SampleRate int
	FFmpeg     *FFmpeg
}

func (a Auto) Decode(ctx context.Context, r io.Reader) (*studio.AudioBuffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading asset: %w", err)
	}
	var buf *studio.AudioBuffer
	switch sniff(data) {
	case formatWAV:
		buf, err = WAV{SampleRate: a.SampleRate}.decode(ctx, data)
	case formatMP3:
		buf, err = MP3{SampleRate: a.SampleRate}.Decode(ctx, bytes.NewReader(data))
	default:
		err = ErrUnsupported
	}
	if errors.Is(err, ErrUnsupported) && a.FFmpeg != nil {
		f := *a.FFmpeg
		if a.SampleRate > 0 {
			f.SampleRate = a.SampleRate
		}
		return f.Decode(ctx, bytes.NewReader(data))
	}
	return buf, err
}

type format int

const (
	formatUnknown format = iota
	formatWAV
	formatMP3
)

func sniff(data []byte) format {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return formatWAV
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return formatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return formatMP3
	}
	return formatUnknown
}
