package engine

import (
	"sort"
	"sync"

	"github.com/vaist/studio"
	"github.com/vaist/studio/graph"
)

type (
	// TrackGraph is the signal path of one track:
	//
	//	clip sources → input → [inserts] → gain → pan → analyser → output
	//
	// It keeps at most one source per clip ID. A source that plays to its end
	// removes itself; StopClip and StopAllClips remove sources immediately.
	TrackGraph struct {
		id       string
		ctx      *graph.Context
		input    *graph.GainNode
		gain     *graph.GainNode
		pan      *graph.StereoPannerNode
		analyser *graph.AnalyserNode
		output   *graph.GainNode
		target   graph.Node

		opts TrackOptions

		mu       sync.Mutex
		chain    insertChain
		active   map[string]*voice
		volume   float64
		panValue float64
		muted    bool
		disposed bool
	}

	// TrackOptions are shared by all track graphs of an engine.
	TrackOptions struct {
		// SampleRate is the timeline sample rate of clip positions.
		SampleRate int
		// TimeConstant is the ramp time constant, in seconds, for volume, pan
		// and mute changes. Zero jumps.
		TimeConstant float64
		// MeterWindow is the analyser window in samples.
		MeterWindow int
		// SplitMeters reports true left/right peaks instead of the peak of
		// the mono downmix on both channels.
		SplitMeters bool
	}

	voice struct {
		clip   studio.AudioClip
		source *graph.BufferSourceNode
		gain   *graph.GainNode
	}
)

func NewTrackGraph(ctx *graph.Context, id string, opts TrackOptions) *TrackGraph {
	if opts.SampleRate <= 0 {
		opts.SampleRate = ctx.SampleRate()
	}
	t := &TrackGraph{
		id:       id,
		ctx:      ctx,
		input:    ctx.NewGain(1),
		gain:     ctx.NewGain(1),
		pan:      ctx.NewStereoPanner(0),
		analyser: ctx.NewAnalyser(opts.MeterWindow),
		output:   ctx.NewGain(1),
		opts:     opts,
		active:   map[string]*voice{},
		volume:   1,
	}
	t.input.Connect(t.gain)
	t.gain.Connect(t.pan)
	t.pan.Connect(t.analyser)
	t.analyser.Connect(t.output)
	return t
}

func (t *TrackGraph) ID() string { return t.id }

// init sets the initial strip values without a ramp.
func (t *TrackGraph) init(volume, pan float64, muted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.volume, t.panValue, t.muted = volume, pan, muted
	t.gain.Gain.SetValue(t.targetGain())
	t.pan.Pan.SetValue(pan)
}

func (t *TrackGraph) setSampleRate(sampleRate int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sampleRate > 0 {
		t.opts.SampleRate = sampleRate
	}
}

// Input is where clip sources and routed tracks enter the graph.
func (t *TrackGraph) Input() graph.Node { return t.input }

// ConnectTo routes the output of the track into dst, replacing any previous
// routing.
func (t *TrackGraph) ConnectTo(dst graph.Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed || t.target == dst {
		return
	}
	t.output.Disconnect()
	t.output.Connect(dst)
	t.target = dst
}

// SetInserts rebuilds the insert chain from the slots, in slot order.
func (t *TrackGraph) SetInserts(slots []studio.InsertSlot, host studio.InsertHost) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return
	}
	t.chain.relink(t.ctx, t.input, t.gain, slots, host)
}

// ScheduleClip starts clip at hardware time when, startOffset timeline
// samples into the clip. Any source already registered under the clip ID is
// stopped first. Playback is cut short where the buffer runs out; nothing is
// started, and nil is returned, when the read position lies beyond the
// buffer.
func (t *TrackGraph) ScheduleClip(clip studio.AudioClip, buf *studio.AudioBuffer, when float64, startOffset int64) *graph.BufferSourceNode {
	t.StopClip(clip.ID)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed || buf == nil {
		return nil
	}
	sr := float64(t.opts.SampleRate)
	startOffset = max(startOffset, 0)
	clipDuration := float64(clip.DurationSamples()) / sr
	bufferOffset := float64(clip.OffsetSamples+startOffset) / sr
	windowDuration := clipDuration - float64(startOffset)/sr
	playDuration := min(windowDuration, bufferSeconds(buf, t.ctx.SampleRate())-bufferOffset)
	if playDuration <= 0 {
		return nil
	}
	src := t.ctx.NewBufferSource(buf)
	g := t.ctx.NewGain(clip.Gain)
	t.fades(g.Gain, clip, when, startOffset, windowDuration)
	src.Connect(g)
	g.Connect(t.input)
	v := &voice{clip: clip, source: src, gain: g}
	t.active[clip.ID] = v
	src.OnEnded(func() { t.ended(clip.ID, src) })
	src.Start(when, bufferOffset, playDuration)
	return src
}

// bufferSeconds is the length of buf; a buffer without a rate plays at the
// context rate.
func bufferSeconds(buf *studio.AudioBuffer, contextRate int) float64 {
	rate := buf.SampleRate
	if rate <= 0 {
		rate = contextRate
	}
	return float64(buf.Frames()) / float64(rate)
}

// fades schedules the clip gain envelope for a playback that starts
// startOffset samples into the clip.
func (t *TrackGraph) fades(p *graph.Param, clip studio.AudioClip, when float64, startOffset int64, playDuration float64) {
	sr := float64(t.opts.SampleRate)
	length := clip.DurationSamples()
	fadeIn := min(clip.FadeInSamples, length)
	fadeOut := min(clip.FadeOutSamples, length-fadeIn)
	if fadeIn > startOffset {
		p.SetValueAtTime(clip.Gain*float64(startOffset)/float64(fadeIn), when)
		p.LinearRampToValueAtTime(clip.Gain, when+float64(fadeIn-startOffset)/sr)
	}
	if fadeOut > 0 {
		begin := max(length-fadeOut, startOffset)
		g := clip.Gain
		if rest := length - startOffset; begin == startOffset && rest < fadeOut {
			g = clip.Gain * float64(rest) / float64(fadeOut)
		}
		p.SetValueAtTime(g, when+float64(begin-startOffset)/sr)
		p.LinearRampToValueAtTime(0, when+playDuration)
	}
}

func (t *TrackGraph) ended(clipID string, src *graph.BufferSourceNode) {
	t.mu.Lock()
	v, ok := t.active[clipID]
	if !ok || v.source != src {
		t.mu.Unlock()
		src.Disconnect()
		return
	}
	delete(t.active, clipID)
	t.mu.Unlock()
	v.source.Disconnect()
	v.gain.Disconnect()
}

// StopClip force-stops the source of the clip. Stopping a clip that is not
// playing is a no-op.
func (t *TrackGraph) StopClip(clipID string) {
	t.mu.Lock()
	v, ok := t.active[clipID]
	delete(t.active, clipID)
	t.mu.Unlock()
	if ok {
		v.stop()
	}
}

// StopAllClips force-stops every source on the track.
func (t *TrackGraph) StopAllClips() {
	t.mu.Lock()
	voices := t.active
	t.active = map[string]*voice{}
	t.mu.Unlock()
	for _, v := range voices {
		v.stop()
	}
}

func (v *voice) stop() {
	v.source.Stop()
	v.source.Disconnect()
	v.gain.Disconnect()
}

// ActiveClips returns the IDs of clips with a registered source, sorted.
func (t *TrackGraph) ActiveClips() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ret := make([]string, 0, len(t.active))
	for id := range t.active {
		ret = append(ret, id)
	}
	sort.Strings(ret)
	return ret
}

func (t *TrackGraph) IsActive(clipID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[clipID]
	return ok
}

// Source returns the registered source of the clip, or nil.
func (t *TrackGraph) Source(clipID string) *graph.BufferSourceNode {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.active[clipID]; ok {
		return v.source
	}
	return nil
}

// playingClip returns the clip value the registered source was started
// with.
func (t *TrackGraph) playingClip(clipID string) (studio.AudioClip, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.active[clipID]
	if !ok {
		return studio.AudioClip{}, false
	}
	return v.clip, true
}

// Peak is the maximum absolute sample in the analysis window. Unless split
// metering is enabled, both channels report the peak of the mono downmix.
func (t *TrackGraph) Peak() [2]float32 {
	if t.opts.SplitMeters {
		return t.analyser.ChannelPeaks()
	}
	p := t.analyser.Peak()
	return [2]float32{p, p}
}

func (t *TrackGraph) SetVolume(volume float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.volume == volume {
		return
	}
	t.volume = volume
	t.applyGain()
}

func (t *TrackGraph) SetMute(muted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.muted == muted {
		return
	}
	t.muted = muted
	t.applyGain()
}

func (t *TrackGraph) SetPan(pan float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.panValue == pan || t.disposed {
		return
	}
	t.panValue = pan
	ramp(t.ctx, t.pan.Pan, pan, t.opts.TimeConstant)
}

// Gain is the target gain of the track: its volume, or zero when muted.
func (t *TrackGraph) Gain() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.targetGain()
}

func (t *TrackGraph) targetGain() float64 {
	if t.muted {
		return 0
	}
	return t.volume
}

func (t *TrackGraph) applyGain() {
	if !t.disposed {
		ramp(t.ctx, t.gain.Gain, t.targetGain(), t.opts.TimeConstant)
	}
}

// Dispose stops all sources and disconnects every stage. It is safe to call
// more than once.
func (t *TrackGraph) Dispose() {
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return
	}
	t.disposed = true
	voices := t.active
	t.active = map[string]*voice{}
	t.chain.dispose()
	t.mu.Unlock()
	for _, v := range voices {
		v.stop()
	}
	for _, n := range []graph.Node{t.input, t.gain, t.pan, t.analyser, t.output} {
		n.Disconnect()
	}
}

// ramp moves p towards value with an exponential approach starting now.
func ramp(ctx *graph.Context, p *graph.Param, value, timeConstant float64) {
	now := ctx.CurrentTime()
	p.CancelScheduledValues(now)
	if timeConstant <= 0 {
		p.SetValue(value)
		return
	}
	p.SetTargetAtTime(value, now, timeConstant)
}
