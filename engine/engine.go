// Package engine turns the state stores into sound. It owns the master bus,
// one TrackGraph per track of the open session and the buffer cache, and it
// runs the scheduling loop that starts clip sources while the transport
// rolls.
//
// The engine never writes session data. The only store fields it writes are
// the transport position and the mixer peaks, both as Internal updates.
package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vaist/studio"
	"github.com/vaist/studio/cache"
	"github.com/vaist/studio/graph"
	"github.com/vaist/studio/state"
)

type (
	Engine struct {
		ctx    *graph.Context
		studio *state.Studio
		cache  *cache.BufferCache
		log    zerolog.Logger

		decoder       studio.Decoder
		host          studio.InsertHost
		ownsCache     bool
		tickInterval  time.Duration
		scheduleAhead time.Duration
		timeConstant  time.Duration
		meterWindow   int
		splitMeters   bool
		workers       int

		mu         sync.Mutex
		tracks     map[string]*TrackGraph
		master     *masterGraph
		metronome  *metronome
		sampleRate int
		rolling    bool
		position   int64   // timeline position at lastClock
		lastClock  float64 // hardware time of the previous tick
		carry      float64 // fraction of a sample not yet added to position
		notReady   map[string]bool
		closed     bool

		closeLoop chan struct{}
		loopDone  chan struct{}
		cancels   []func()
	}

	Option func(*Engine)

	// Meters is a snapshot of the measured levels and the sounding clips.
	Meters struct {
		Tracks map[string][2]float32
		Master [2]float32
		Active map[string][]string
	}
)

const (
	DefaultTickInterval     = 25 * time.Millisecond
	DefaultScheduleAhead    = 100 * time.Millisecond
	DefaultRampTimeConstant = 10 * time.Millisecond
	DefaultPreloadWorkers   = 4
	loopCloseTimeout        = time.Second
)

var (
	ErrDisposed  = errors.New("engine disposed")
	ErrNoDecoder = errors.New("no decoder configured")
)

func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

func WithDecoder(d studio.Decoder) Option { return func(e *Engine) { e.decoder = d } }

func WithInsertHost(h studio.InsertHost) Option { return func(e *Engine) { e.host = h } }

// WithCache makes the engine use a cache it does not own; Close leaves it
// untouched.
func WithCache(c *cache.BufferCache) Option {
	return func(e *Engine) { e.cache, e.ownsCache = c, false }
}

// WithTickInterval sets the scheduling loop period. Zero disables the loop
// goroutine; the caller then drives the engine with Tick.
func WithTickInterval(d time.Duration) Option { return func(e *Engine) { e.tickInterval = d } }

// WithScheduleAhead sets how far ahead of the playhead clip starts and
// metronome clicks are queued. Zero schedules only what is active at the
// playhead.
func WithScheduleAhead(d time.Duration) Option { return func(e *Engine) { e.scheduleAhead = d } }

func WithRampTimeConstant(d time.Duration) Option { return func(e *Engine) { e.timeConstant = d } }

func WithMeterWindow(n int) Option { return func(e *Engine) { e.meterWindow = n } }

// WithSplitMeters enables true left/right peak metering.
func WithSplitMeters(split bool) Option { return func(e *Engine) { e.splitMeters = split } }

func WithPreloadWorkers(n int) Option { return func(e *Engine) { e.workers = n } }

// New creates an engine rendering into ctx and subscribes it to the stores
// of st. The engine mirrors whatever session is open, and starts playing if
// the transport is already rolling. Close releases it.
func New(ctx *graph.Context, st *state.Studio, opts ...Option) *Engine {
	e := &Engine{
		ctx:           ctx,
		studio:        st,
		cache:         cache.New(),
		ownsCache:     true,
		log:           zerolog.Nop(),
		tickInterval:  DefaultTickInterval,
		scheduleAhead: DefaultScheduleAhead,
		timeConstant:  DefaultRampTimeConstant,
		meterWindow:   graph.DefaultAnalyserWindow,
		workers:       DefaultPreloadWorkers,
		tracks:        map[string]*TrackGraph{},
		notReady:      map[string]bool{},
	}
	for _, o := range opts {
		o(e)
	}
	tr := st.Transport.Snapshot()
	e.sampleRate = tr.SampleRate
	e.position = tr.PositionSamples
	e.master = newMasterGraph(ctx, e.trackOptions())
	e.metronome = newMetronome(ctx, e.master.input)
	e.metronome.setVolume(metronomeVolume(tr))
	e.cancels = []func(){
		st.Session.Subscribe(e.onSession),
		st.Transport.Subscribe(e.onTransport),
		st.Mixer.Subscribe(e.onMixer),
	}
	if sess, ok := st.Session.Snapshot(); ok {
		e.mu.Lock()
		e.syncSession(&sess, st.Mixer.Snapshot())
		e.mu.Unlock()
	}
	e.applyMixer(st.Mixer.Snapshot())
	if tr.State.Rolling() {
		e.start(tr)
	}
	return e
}

func (e *Engine) trackOptions() TrackOptions {
	return TrackOptions{
		SampleRate:   e.sampleRate,
		TimeConstant: e.timeConstant.Seconds(),
		MeterWindow:  e.meterWindow,
		SplitMeters:  e.splitMeters,
	}
}

// Close stops the scheduling loop, disposes every graph and clears the
// cache. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.rolling = false
	closeLoop, done := e.closeLoop, e.loopDone
	e.closeLoop, e.loopDone = nil, nil
	cancels := e.cancels
	e.cancels = nil
	for id, t := range e.tracks {
		t.Dispose()
		delete(e.tracks, id)
	}
	e.metronome.dispose()
	e.master.dispose()
	if e.ownsCache {
		e.cache.Clear()
	}
	e.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	e.waitLoop(closeLoop, done)
	return nil
}

func (e *Engine) Context() *graph.Context   { return e.ctx }
func (e *Engine) Cache() *cache.BufferCache { return e.cache }

// Track returns the graph of the track, or nil.
func (e *Engine) Track(id string) *TrackGraph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracks[id]
}

// TrackIDs returns the IDs of the tracks that currently have a graph.
func (e *Engine) TrackIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ret := make([]string, 0, len(e.tracks))
	for id := range e.tracks {
		ret = append(ret, id)
	}
	return ret
}

// Snapshot measures the levels of every track and the master bus.
func (e *Engine) Snapshot() Meters {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.metersLocked()
	m.Active = make(map[string][]string, len(e.tracks))
	for id, t := range e.tracks {
		m.Active[id] = t.ActiveClips()
	}
	return m
}

func (e *Engine) metersLocked() Meters {
	m := Meters{Tracks: make(map[string][2]float32, len(e.tracks))}
	for id, t := range e.tracks {
		m.Tracks[id] = t.Peak()
	}
	m.Master = e.master.peak()
	return m
}

func (e *Engine) onSession(c state.SessionChange) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.syncSession(c.Next, e.studio.Mixer.Snapshot())
	e.mu.Unlock()
	e.applyMixer(e.studio.Mixer.Snapshot())
}

// syncSession creates graphs for new tracks, disposes graphs of removed
// tracks, and reapplies inserts and routing. Sources started for clips that
// have since been edited or removed are stopped. Must be called with e.mu
// held.
func (e *Engine) syncSession(next *studio.Session, mix state.MixerState) {
	if next == nil {
		for id, t := range e.tracks {
			t.Dispose()
			delete(e.tracks, id)
		}
		e.master.setInserts(nil, e.host)
		return
	}
	soloed := false
	for _, t := range next.Tracks {
		soloed = soloed || t.Solo
	}
	for _, t := range next.Tracks {
		if _, ok := e.tracks[t.ID]; ok {
			continue
		}
		g := NewTrackGraph(e.ctx, t.ID, e.trackOptions())
		if c, ok := mix.Channels[t.ID]; ok {
			g.init(c.Volume, c.Pan, !mix.Audible(t.ID))
		} else {
			g.init(t.Volume, t.Pan, t.Mute || (soloed && !t.Solo))
		}
		e.tracks[t.ID] = g
		e.log.Debug().Str("track", t.ID).Msg("track graph created")
	}
	for id, g := range e.tracks {
		if next.Track(id) == nil {
			g.Dispose()
			delete(e.tracks, id)
			e.log.Debug().Str("track", id).Msg("track graph disposed")
		}
	}
	for i := range next.Tracks {
		t := &next.Tracks[i]
		g := e.tracks[t.ID]
		g.SetInserts(t.Inserts, e.host)
		if out := next.ResolveOutput(t.ID); out == studio.MasterOutput {
			g.ConnectTo(e.master.input)
		} else {
			g.ConnectTo(e.tracks[out].Input())
		}
		for _, id := range g.ActiveClips() {
			playing, _ := g.playingClip(id)
			if c := findClip(t, id); c == nil || *c != playing {
				g.StopClip(id)
			}
		}
	}
	e.master.setInserts(next.Master.Inserts, e.host)
}

func findClip(t *studio.Track, id string) *studio.AudioClip {
	for i := range t.Clips {
		if t.Clips[i].ID == id {
			return &t.Clips[i]
		}
	}
	return nil
}

func (e *Engine) onMixer(c state.MixerChange) {
	if c.Origin == state.Internal {
		return
	}
	e.applyMixer(c.Next)
}

// applyMixer pushes volume, pan and effective mute of every track, and the
// master strip, into the graphs.
func (e *Engine) applyMixer(mix state.MixerState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	for id, t := range e.tracks {
		c, ok := mix.Channels[id]
		if !ok {
			continue
		}
		t.SetVolume(c.Volume)
		t.SetPan(c.Pan)
		t.SetMute(!mix.Audible(id))
	}
	e.master.apply(mix.Master)
}

func (e *Engine) onTransport(c state.TransportChange) {
	if c.Origin == state.Internal {
		return
	}
	switch {
	case c.Next.State.Rolling() && !c.Prev.State.Rolling():
		e.start(c.Next)
	case !c.Next.State.Rolling() && c.Prev.State.Rolling():
		e.halt(c.Next)
	case c.Seeked():
		e.seekTo(c.Next.PositionSamples)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.metronome.setVolume(metronomeVolume(c.Next))
	if c.Next.SampleRate != e.sampleRate {
		e.sampleRate = c.Next.SampleRate
		for _, t := range e.tracks {
			t.setSampleRate(e.sampleRate)
		}
	}
}

func metronomeVolume(tr studio.TransportConfig) float64 {
	if !tr.Metronome.Enabled {
		return 0
	}
	return tr.Metronome.Volume
}
