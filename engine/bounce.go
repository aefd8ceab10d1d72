package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/vaist/studio"
	"github.com/vaist/studio/cache"
	"github.com/vaist/studio/graph"
	"github.com/vaist/studio/state"
)

// InsertForker is implemented by insert hosts that can hand out an
// independent copy of their processors, so an offline render does not share
// DSP state with live playback.
type InsertForker interface {
	Fork() studio.InsertHost
}

var ErrEmptyRange = errors.New("bounce range is empty")

// Bounce renders the timeline range [from, to) of the session offline into a
// stereo buffer at the session sample rate. It drives a private context and
// scheduling loop as fast as possible; the loop region and the metronome are
// ignored. Assets are read from buffers, which is never modified. Missing
// assets render as silence.
func Bounce(ctx context.Context, sess studio.Session, buffers *cache.BufferCache, from, to int64, opts ...Option) (*studio.AudioBuffer, error) {
	from = max(from, 0)
	if to <= from {
		return nil, ErrEmptyRange
	}
	st := state.NewStudio()
	if err := st.Open(sess); err != nil {
		return nil, err
	}
	st.Transport.SetLoopEnabled(false)
	st.Transport.SetMetronome(false)
	st.Transport.SeekTo(from)
	sr := st.Transport.Snapshot().SampleRate
	gctx := graph.NewContext(sr, graph.DefaultBlockSize)
	defer gctx.Close()
	opts = append(opts, WithCache(buffers), WithTickInterval(0))
	e := New(gctx, st, opts...)
	defer e.Close()
	st.Transport.Play()

	frames := int(to - from)
	out := studio.NewAudioBuffer(sr, 2, frames)
	block := gctx.BlockSize()
	for pos := 0; pos < frames; pos += block {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("bounce interrupted at frame %d: %w", pos, err)
		}
		n := min(block, frames-pos)
		e.Tick()
		gctx.Render([][]float32{out.Channels[0][pos : pos+n], out.Channels[1][pos : pos+n]})
	}
	return out, nil
}

// Bounce renders [from, to) of the open session as it currently sounds, with
// the live mixer settings, without disturbing playback.
func (e *Engine) Bounce(ctx context.Context, from, to int64) (*studio.AudioBuffer, error) {
	if e.isClosed() {
		return nil, ErrDisposed
	}
	sess, err := e.studio.Save()
	if err != nil {
		return nil, err
	}
	opts := []Option{
		WithLogger(e.log),
		WithRampTimeConstant(e.timeConstant),
		WithScheduleAhead(e.scheduleAhead),
	}
	if f, ok := e.host.(InsertForker); ok {
		opts = append(opts, WithInsertHost(f.Fork()))
	} else if e.host != nil {
		e.log.Warn().Msg("insert host cannot fork, bouncing without inserts")
	}
	return Bounce(ctx, sess, e.cache, from, to, opts...)
}
