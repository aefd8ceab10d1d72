package engine

import (
	"math"
	"time"

	"github.com/vaist/studio"
	"github.com/vaist/studio/timebase"
)

// Seek stops every source, moves the transport to samples and, while
// rolling, restarts the elapsed time measurement from now so the jump is not
// mistaken for playback.
func (e *Engine) Seek(samples int64) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrDisposed
	}
	e.stopAllLocked()
	e.mu.Unlock()
	e.studio.Transport.SeekTo(samples)
	e.seekTo(max(samples, 0))
	return nil
}

func (e *Engine) seekTo(samples int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.stopAllLocked()
	e.position = samples
	e.resetClock()
}

func (e *Engine) start(tr studio.TransportConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.rolling {
		return
	}
	e.rolling = true
	e.position = tr.PositionSamples
	e.resetClock()
	e.metronome.reset()
	if e.tickInterval > 0 {
		e.closeLoop = make(chan struct{}, 1)
		e.loopDone = make(chan struct{})
		go e.run(e.tickInterval, e.closeLoop, e.loopDone)
	}
	e.log.Debug().Int64("position", tr.PositionSamples).Str("state", tr.State.String()).Msg("transport rolling")
}

// halt stops the loop and every source; pause and stop both end here.
func (e *Engine) halt(tr studio.TransportConfig) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.rolling = false
	e.position = tr.PositionSamples
	e.stopAllLocked()
	closeLoop, done := e.closeLoop, e.loopDone
	e.closeLoop, e.loopDone = nil, nil
	e.mu.Unlock()
	e.waitLoop(closeLoop, done)
	e.log.Debug().Int64("position", tr.PositionSamples).Str("state", tr.State.String()).Msg("transport halted")
}

// waitLoop asks the loop goroutine to finish and waits for it. Must be called
// without e.mu held.
func (e *Engine) waitLoop(closeLoop chan<- struct{}, done <-chan struct{}) {
	if closeLoop == nil {
		return
	}
	TrySend(closeLoop, struct{}{})
	if _, ok := TimeoutReceive(done, loopCloseTimeout); !ok {
		select {
		case <-done:
		default:
			e.log.Warn().Msg("scheduling loop did not stop in time")
		}
	}
}

// frameEpsilon absorbs the rounding error of converting whole frames to
// seconds and back.
const frameEpsilon = 1e-6

func (e *Engine) run(interval time.Duration, closeLoop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	e.Tick()
	for {
		select {
		case <-closeLoop:
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// resetClock restarts elapsed time measurement from the current hardware
// time. Must be called with e.mu held.
func (e *Engine) resetClock() {
	e.lastClock = e.ctx.CurrentTime()
	e.carry = 0
}

// stopAllLocked force-stops the sources of every track and the queued
// metronome clicks. Must be called with e.mu held.
func (e *Engine) stopAllLocked() {
	for _, t := range e.tracks {
		t.StopAllClips()
	}
	e.metronome.reset()
}

// Tick runs one pass of the scheduling loop: advance the position by the
// hardware time elapsed since the previous tick, wrap it at the loop end,
// start the clips that are sounding at the new position or start within the
// schedule-ahead window, then publish the position and the peaks. The
// position is published only if no seek moved the transport meanwhile. It
// does nothing unless the transport is rolling.
func (e *Engine) Tick() {
	e.mu.Lock()
	if e.closed || !e.rolling {
		e.mu.Unlock()
		return
	}
	tr := e.studio.Transport.Snapshot()
	sess, open := e.studio.Session.Snapshot()
	sr := tr.SampleRate
	now := e.ctx.CurrentTime()
	elapsed := max((now-e.lastClock)*float64(sr)+e.carry, 0)
	whole := math.Floor(elapsed + frameEpsilon)
	e.carry = elapsed - whole
	e.lastClock = now
	from := e.position
	pos := from + int64(whole)
	if tr.Loop.Enabled && pos >= tr.Loop.EndSamples {
		pos = tr.Loop.Wrap(pos)
		e.stopAllLocked()
	}
	e.position = pos
	if open {
		e.schedule(&sess, tr, pos, now)
	}
	meters := e.metersLocked()
	e.mu.Unlock()
	if !e.studio.Transport.AdvancePosition(from, pos) {
		e.log.Debug().Int64("position", pos).Msg("position superseded by a seek")
	}
	e.studio.Mixer.UpdatePeaks(meters.Tracks, meters.Master)
}

// Position is the timeline position as of the last tick.
func (e *Engine) Position() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// schedule starts or queues clip sources and metronome clicks for the
// position pos, which sounds at hardware time now. The lookahead window never
// reaches past the loop end. Must be called with e.mu held.
func (e *Engine) schedule(sess *studio.Session, tr studio.TransportConfig, pos int64, now float64) {
	sr := float64(tr.SampleRate)
	horizon := pos + int64(e.scheduleAhead.Seconds()*sr)
	if tr.Loop.Enabled && pos < tr.Loop.EndSamples {
		horizon = min(horizon, tr.Loop.EndSamples)
	}
	for i := range sess.Tracks {
		t := &sess.Tracks[i]
		g := e.tracks[t.ID]
		if g == nil {
			continue
		}
		for _, c := range t.Clips {
			if c.Muted || g.IsActive(c.ID) {
				continue
			}
			var when float64
			var offset int64
			switch {
			case c.Contains(pos):
				when, offset = now, pos-c.StartSamples
			case c.StartSamples > pos && c.StartSamples < horizon:
				when = now + float64(c.StartSamples-pos)/sr
			default:
				continue
			}
			buf, ok := e.cache.Get(c.AssetID)
			if !ok {
				if !e.notReady[c.ID] {
					e.notReady[c.ID] = true
					e.log.Debug().Str("clip", c.ID).Str("asset", c.AssetID).Msg("asset not ready, deferring clip")
				}
				continue
			}
			delete(e.notReady, c.ID)
			g.ScheduleClip(c, buf, when, offset)
		}
	}
	if tr.Metronome.Enabled {
		e.metronome.queue(timebase.TempoOf(tr), pos, pos, max(horizon, pos+1), now)
	}
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive blocks until a value is received from c, or times out after
// t. ok is false on timeout or if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
