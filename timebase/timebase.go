// Package timebase converts between raw sample counts, seconds and musical
// bars/beats/ticks. Everything here is a pure function of a Tempo; nothing is
// cached, so tempo changes can never leave a stale bar length behind.
package timebase

import (
	"fmt"
	"math"

	"github.com/vaist/studio"
)

// PPQ is the musical resolution: ticks per quarter note.
const PPQ = 480

// eps absorbs float rounding at exact tick and grid boundaries.
const eps = 1e-6

type (
	Tempo struct {
		BPM           float64
		TimeSignature studio.TimeSignature
		SampleRate    int
	}

	// BBT is a musical position. Bar and Beat are 1-based, Tick is 0-based
	// and below TicksPerBeat. A beat is the note value of the time signature
	// denominator while ticks stay PPQ per quarter note, so a beat has 480
	// ticks in x/4, 240 in x/8 and 960 in x/2.
	BBT struct {
		Bar  int
		Beat int
		Tick int
	}
)

// TempoOf extracts the tempo of a transport configuration.
func TempoOf(t studio.TransportConfig) Tempo {
	return Tempo{BPM: t.BPM, TimeSignature: t.TimeSignature, SampleRate: t.SampleRate}
}

func SamplesToSeconds(samples int64, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(samples) / float64(sampleRate)
}

func SecondsToSamples(seconds float64, sampleRate int) int64 {
	return int64(math.Round(seconds * float64(sampleRate)))
}

// SamplesPerQuarter is the length of one quarter note in samples.
func (t Tempo) SamplesPerQuarter() float64 {
	if t.BPM <= 0 {
		return 0
	}
	return float64(t.SampleRate) * 60 / t.BPM
}

// SamplesPerBeat is the length of one beat, where a beat is the note value
// of the time signature denominator (a quarter in 4/4, an eighth in 6/8).
func (t Tempo) SamplesPerBeat() float64 {
	return t.SamplesPerQuarter() * 4 / float64(t.denominator())
}

func (t Tempo) SamplesPerBar() float64 {
	return t.SamplesPerBeat() * float64(t.numerator())
}

func (t Tempo) SamplesPerTick() float64 {
	return t.SamplesPerQuarter() / PPQ
}

// TicksPerBeat is PPQ scaled to the beat note value.
func (t Tempo) TicksPerBeat() int {
	return PPQ * 4 / t.denominator()
}

func (t Tempo) TicksPerBar() int {
	return t.TicksPerBeat() * t.numerator()
}

func (t Tempo) numerator() int {
	return max(t.TimeSignature.Numerator, 1)
}

func (t Tempo) denominator() int {
	if !t.TimeSignature.Valid() {
		return 4
	}
	return t.TimeSignature.Denominator
}

// SamplesToTicks returns the number of whole ticks elapsed at the sample
// position.
func (t Tempo) SamplesToTicks(samples int64) int64 {
	spt := t.SamplesPerTick()
	if spt <= 0 {
		return 0
	}
	return int64(math.Floor(float64(samples)/spt + eps))
}

// TicksToSamples returns the first sample at or after the tick boundary, so
// that SamplesToTicks(TicksToSamples(n)) == n.
func (t Tempo) TicksToSamples(ticks int64) int64 {
	return int64(math.Ceil(float64(ticks)*t.SamplesPerTick() - eps))
}

func (t Tempo) SamplesToBBT(samples int64) BBT {
	if samples < 0 {
		samples = 0
	}
	ticks := t.SamplesToTicks(samples)
	perBar := int64(t.TicksPerBar())
	perBeat := int64(t.TicksPerBeat())
	bar := ticks / perBar
	rem := ticks % perBar
	return BBT{
		Bar:  int(bar) + 1,
		Beat: int(rem/perBeat) + 1,
		Tick: int(rem % perBeat),
	}
}

func (t Tempo) BBTToSamples(p BBT) int64 {
	return t.TicksToSamples(t.BBTToTicks(p))
}

func (t Tempo) BBTToTicks(p BBT) int64 {
	return int64(p.Bar-1)*int64(t.TicksPerBar()) + int64(p.Beat-1)*int64(t.TicksPerBeat()) + int64(p.Tick)
}

// BarToSamples is the first sample of the 1-based bar.
func (t Tempo) BarToSamples(bar int) int64 {
	if bar < 1 {
		bar = 1
	}
	return t.BBTToSamples(BBT{Bar: bar, Beat: 1})
}

func (p BBT) String() string {
	return fmt.Sprintf("%d.%d.%03d", p.Bar, p.Beat, p.Tick)
}

// FormatClock formats a sample position as mm:ss.mmm.
func FormatClock(samples int64, sampleRate int) string {
	if samples < 0 {
		samples = 0
	}
	ms := int64(math.Floor(SamplesToSeconds(samples, sampleRate)*1000 + eps))
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}
