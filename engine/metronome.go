package engine

import (
	"math"

	"github.com/vaist/studio"
	"github.com/vaist/studio/graph"
	"github.com/vaist/studio/timebase"
)

const (
	clickLength    = 0.03 // seconds
	clickDecay     = 0.006
	accentFreq     = 1500.0
	clickFreq      = 1000.0
	clickAmplitude = 0.6
)

// metronome queues one short click per beat, accented on the first beat of
// each bar, into its own gain stage feeding the master bus.
type metronome struct {
	ctx    *graph.Context
	gain   *graph.GainNode
	accent *studio.AudioBuffer
	click  *studio.AudioBuffer

	volume  float64
	last    int64 // timeline sample of the last queued click, -1 if none
	sources []*graph.BufferSourceNode
}

func newMetronome(ctx *graph.Context, dst graph.Node) *metronome {
	m := &metronome{
		ctx:    ctx,
		gain:   ctx.NewGain(0),
		accent: clickBuffer(ctx.SampleRate(), accentFreq),
		click:  clickBuffer(ctx.SampleRate(), clickFreq),
		last:   -1,
	}
	m.gain.Connect(dst)
	return m
}

func clickBuffer(sampleRate int, freq float64) *studio.AudioBuffer {
	n := int(clickLength * float64(sampleRate))
	b := studio.NewAudioBuffer(sampleRate, 1, n)
	for i := range b.Channels[0] {
		t := float64(i) / float64(sampleRate)
		b.Channels[0][i] = float32(clickAmplitude * math.Sin(2*math.Pi*freq*t) * math.Exp(-t/clickDecay))
	}
	return b
}

func (m *metronome) setVolume(volume float64) {
	if m.volume != volume {
		m.volume = volume
		m.gain.Gain.SetValue(volume)
	}
}

// queue schedules the clicks of all beats in [from, to), skipping beats that
// were already queued. now is the hardware time of timeline sample pos.
func (m *metronome) queue(tempo timebase.Tempo, pos, from, to int64, now float64) {
	spb := tempo.SamplesPerBeat()
	if spb <= 0 {
		return
	}
	m.prune()
	beat := int64(math.Ceil(float64(from)/spb - 1e-9))
	for {
		at := int64(math.Round(float64(beat) * spb))
		if at >= to {
			return
		}
		if at > m.last {
			buf := m.click
			if beat%int64(max(tempo.TimeSignature.Numerator, 1)) == 0 {
				buf = m.accent
			}
			src := m.ctx.NewBufferSource(buf)
			src.Connect(m.gain)
			src.OnEnded(src.Disconnect)
			src.Start(now+float64(at-pos)/float64(tempo.SampleRate), 0, -1)
			m.sources = append(m.sources, src)
			m.last = at
		}
		beat++
	}
}

func (m *metronome) prune() {
	n := 0
	for _, s := range m.sources {
		if s.Playing() {
			m.sources[n] = s
			n++
		}
	}
	clear(m.sources[n:])
	m.sources = m.sources[:n]
}

// reset stops all queued clicks and forgets the last queued beat.
func (m *metronome) reset() {
	for _, s := range m.sources {
		s.Stop()
		s.Disconnect()
	}
	m.sources = m.sources[:0]
	m.last = -1
}

func (m *metronome) dispose() {
	m.reset()
	m.gain.Disconnect()
}
