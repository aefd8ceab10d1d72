package engine

import (
	"sync"

	"github.com/vaist/studio"
	"github.com/vaist/studio/graph"
	"github.com/vaist/studio/state"
)

// masterGraph is the master bus:
//
//	tracks → input → [inserts] → pan → analyser → gain → destination
type masterGraph struct {
	ctx      *graph.Context
	input    *graph.GainNode
	pan      *graph.StereoPannerNode
	analyser *graph.AnalyserNode
	gain     *graph.GainNode
	opts     TrackOptions

	mu     sync.Mutex
	chain  insertChain
	volume float64
	panV   float64
	muted  bool
	primed bool
}

func newMasterGraph(ctx *graph.Context, opts TrackOptions) *masterGraph {
	m := &masterGraph{
		ctx:      ctx,
		input:    ctx.NewGain(1),
		pan:      ctx.NewStereoPanner(0),
		analyser: ctx.NewAnalyser(opts.MeterWindow),
		gain:     ctx.NewGain(1),
		opts:     opts,
		volume:   1,
	}
	m.input.Connect(m.pan)
	m.pan.Connect(m.analyser)
	m.analyser.Connect(m.gain)
	m.gain.Connect(ctx.Destination())
	return m
}

func (m *masterGraph) setInserts(slots []studio.InsertSlot, host studio.InsertHost) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chain.relink(m.ctx, m.input, m.pan, slots, host)
}

// apply ramps the master strip to c; the first call jumps.
func (m *masterGraph) apply(c state.Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.primed {
		m.primed = true
		m.volume, m.panV, m.muted = c.Volume, c.Pan, c.Mute
		g := c.Volume
		if c.Mute {
			g = 0
		}
		m.gain.Gain.SetValue(g)
		m.pan.Pan.SetValue(c.Pan)
		return
	}
	if m.volume != c.Volume || m.muted != c.Mute {
		m.volume, m.muted = c.Volume, c.Mute
		g := m.volume
		if m.muted {
			g = 0
		}
		ramp(m.ctx, m.gain.Gain, g, m.opts.TimeConstant)
	}
	if m.panV != c.Pan {
		m.panV = c.Pan
		ramp(m.ctx, m.pan.Pan, c.Pan, m.opts.TimeConstant)
	}
}

// peak is measured before the master gain, like the track meters measure
// before the output stage.
func (m *masterGraph) peak() [2]float32 {
	if m.opts.SplitMeters {
		return m.analyser.ChannelPeaks()
	}
	p := m.analyser.Peak()
	return [2]float32{p, p}
}

func (m *masterGraph) dispose() {
	m.mu.Lock()
	m.chain.dispose()
	m.mu.Unlock()
	for _, n := range []graph.Node{m.input, m.pan, m.analyser, m.gain} {
		n.Disconnect()
	}
}
