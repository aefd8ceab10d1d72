package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vaist/studio"
)

// FFmpeg decodes anything ffmpeg understands by piping the asset through
// an ffmpeg process, as stereo float32 at SampleRate.
type FFmpeg struct {
	Path       string // defaults to "ffmpeg" on PATH
	SampleRate int
	Log        zerolog.Logger
}

func (f FFmpeg) Decode(ctx context.Context, r io.Reader) (*studio.AudioBuffer, error) {
	path := f.Path
	if path == "" {
		path = "ffmpeg"
	}
	rate := f.SampleRate
	if rate <= 0 {
		rate = studio.DefaultSampleRate
	}
	args := []string{
		"-i", "pipe:0",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", strconv.Itoa(rate),
		"-ac", "2",
		"-loglevel", "error",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = r
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	f.Log.Debug().Str("ffmpeg", path).Strs("args", args).Msg("decoding with ffmpeg")
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffmpeg decode: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("ffmpeg decode: %w", err)
	}
	samples := make([]float32, len(out)/4)
	if err := binary.Read(bytes.NewReader(out[:len(samples)*4]), binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w", err)
	}
	return deinterleave(samples, 2, rate), nil
}
