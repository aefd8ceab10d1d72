package state

import (
	"math"
	"sync"

	"github.com/vaist/studio"
	"github.com/vaist/studio/timebase"
)

type (
	// Transport is the playback state machine with its position, tempo and
	// loop region. Actions never touch the audio graph; the engine observes
	// the changes.
	Transport struct {
		mu   sync.Mutex
		cfg  studio.TransportConfig
		subs listeners[TransportChange]
	}

	TransportChange struct {
		Prev, Next studio.TransportConfig
		Origin     Origin
	}
)

const (
	MaxNumerator   = 32
	MaxDenominator = 32
	MaxPreRollBars = 8
)

func NewTransport(cfg studio.TransportConfig) *Transport {
	t := &Transport{}
	t.cfg = sanitize(cfg)
	return t
}

// Seeked reports whether the change moved the playhead on behalf of a user
// action, as opposed to playback advancing it.
func (c TransportChange) Seeked() bool {
	return c.Origin != Internal && c.Prev.PositionSamples != c.Next.PositionSamples
}

// StateChanged reports whether the play state changed.
func (c TransportChange) StateChanged() bool {
	return c.Prev.State != c.Next.State
}

func (t *Transport) Snapshot() studio.TransportConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

func (t *Transport) State() studio.PlayState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg.State
}

func (t *Transport) IsPlaying() bool { return t.State() == studio.Playing }

// IsRolling reports whether the transport is playing or recording.
func (t *Transport) IsRolling() bool { return t.State().Rolling() }

// Subscribe registers f for every change; the returned function unregisters
// it.
func (t *Transport) Subscribe(f func(TransportChange)) (cancel func()) {
	return t.subs.add(f)
}

// Load replaces the whole configuration, stopping the transport.
func (t *Transport) Load(cfg studio.TransportConfig) {
	cfg = sanitize(cfg)
	cfg.State = studio.Stopped
	t.update(Load, func(c *studio.TransportConfig) { *c = cfg })
}

// Play starts playback from the current position. It does nothing while
// already playing or recording.
func (t *Transport) Play() {
	t.update(User, func(c *studio.TransportConfig) {
		if !c.State.Rolling() {
			c.State = studio.Playing
		}
	})
}

// Pause halts playback and keeps the position. It does nothing while
// stopped.
func (t *Transport) Pause() {
	t.update(User, func(c *studio.TransportConfig) {
		if c.State != studio.Stopped {
			c.State = studio.Paused
		}
	})
}

// Stop halts playback and rewinds to zero.
func (t *Transport) Stop() {
	t.update(User, func(c *studio.TransportConfig) {
		c.State = studio.Stopped
		c.PositionSamples = 0
	})
}

// Record enters the recording state. Recording is its own entry state; it
// is reachable from any other state.
func (t *Transport) Record() {
	t.update(User, func(c *studio.TransportConfig) {
		c.State = studio.Recording
	})
}

// SeekTo moves the playhead to samples, clamped to zero. It is legal in any
// state.
func (t *Transport) SeekTo(samples int64) {
	t.update(User, func(c *studio.TransportConfig) {
		c.PositionSamples = max(samples, 0)
	})
}

// JumpToBar seeks to the first sample of the 1-based bar at the current
// tempo and time signature.
func (t *Transport) JumpToBar(bar int) {
	t.update(User, func(c *studio.TransportConfig) {
		c.PositionSamples = timebase.TempoOf(*c).BarToSamples(bar)
	})
}

// SetLoopRegion sets the loop bounds without changing whether the loop is
// enabled. The start is clamped to zero and the end to at least start+1.
func (t *Transport) SetLoopRegion(start, end int64) {
	t.update(User, func(c *studio.TransportConfig) {
		c.Loop.StartSamples = max(start, 0)
		c.Loop.EndSamples = max(end, c.Loop.StartSamples+1)
	})
}

// ToggleLoop flips the loop without altering its bounds.
func (t *Transport) ToggleLoop() {
	t.update(User, func(c *studio.TransportConfig) {
		c.Loop.Enabled = !c.Loop.Enabled
	})
}

func (t *Transport) SetLoopEnabled(enabled bool) {
	t.update(User, func(c *studio.TransportConfig) {
		c.Loop.Enabled = enabled
	})
}

// SetBPM sets the tempo, clamped to [MinBPM, MaxBPM]. The playhead stays
// at the same sample position.
func (t *Transport) SetBPM(bpm float64) {
	if math.IsNaN(bpm) {
		return
	}
	t.update(User, func(c *studio.TransportConfig) {
		c.BPM = clamp(bpm, studio.MinBPM, studio.MaxBPM)
	})
}

// SetTimeSignature clamps the numerator to [1, 32] and rounds the
// denominator down to a power of two in [1, 32].
func (t *Transport) SetTimeSignature(numerator, denominator int) {
	t.update(User, func(c *studio.TransportConfig) {
		c.TimeSignature = studio.TimeSignature{
			Numerator:   clamp(numerator, 1, MaxNumerator),
			Denominator: powerOfTwoFloor(clamp(denominator, 1, MaxDenominator)),
		}
	})
}

func (t *Transport) SetMetronome(enabled bool) {
	t.update(User, func(c *studio.TransportConfig) {
		c.Metronome.Enabled = enabled
	})
}

func (t *Transport) SetMetronomeVolume(volume float64) {
	if math.IsNaN(volume) {
		return
	}
	t.update(User, func(c *studio.TransportConfig) {
		c.Metronome.Volume = clamp(volume, 0, 1)
	})
}

func (t *Transport) SetPreRollBars(bars int) {
	t.update(User, func(c *studio.TransportConfig) {
		c.PreRollBars = clamp(bars, 0, MaxPreRollBars)
	})
}

// UpdatePosition is reserved for the engine: it publishes the position the
// scheduling loop advanced to. Listeners see it with the Internal origin. It
// is ignored unless the transport is rolling, so a late update can never undo
// a stop.
func (t *Transport) UpdatePosition(samples int64) {
	t.update(Internal, func(c *studio.TransportConfig) {
		if c.State.Rolling() {
			c.PositionSamples = max(samples, 0)
		}
	})
}

// AdvancePosition is UpdatePosition for a position computed from from: it
// applies only while the transport still sits at from. A seek that landed
// after the engine read the position wins over the stale advance. It
// reports whether the position was written.
func (t *Transport) AdvancePosition(from, to int64) bool {
	applied := false
	t.update(Internal, func(c *studio.TransportConfig) {
		if c.State.Rolling() && c.PositionSamples == from {
			c.PositionSamples = max(to, 0)
			applied = true
		}
	})
	return applied
}

func (t *Transport) update(origin Origin, f func(*studio.TransportConfig)) {
	t.mu.Lock()
	prev := t.cfg
	f(&t.cfg)
	next := t.cfg
	t.mu.Unlock()
	if prev == next && origin != Load {
		return
	}
	t.subs.notify(TransportChange{Prev: prev, Next: next, Origin: origin})
}

func sanitize(cfg studio.TransportConfig) studio.TransportConfig {
	def := studio.DefaultTransport()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.BPM == 0 || math.IsNaN(cfg.BPM) {
		cfg.BPM = def.BPM
	}
	cfg.BPM = clamp(cfg.BPM, studio.MinBPM, studio.MaxBPM)
	if !cfg.TimeSignature.Valid() {
		cfg.TimeSignature = def.TimeSignature
	}
	cfg.PositionSamples = max(cfg.PositionSamples, 0)
	cfg.Loop.StartSamples = max(cfg.Loop.StartSamples, 0)
	cfg.Loop.EndSamples = max(cfg.Loop.EndSamples, cfg.Loop.StartSamples+1)
	cfg.Metronome.Volume = clamp(cfg.Metronome.Volume, 0, 1)
	cfg.PreRollBars = clamp(cfg.PreRollBars, 0, MaxPreRollBars)
	return cfg
}

func powerOfTwoFloor(v int) int {
	p := 1
	for p*2 <= v {
		p *= 2
	}
	return p
}
