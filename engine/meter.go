package engine

import (
	"math"
)

type (
	// Decibels is a level of the left and right channel in dBFS.
	Decibels [2]float64

	// DecibelMeter smooths peak levels for display, in decibels relative to
	// full scale (0 dB = signal level of +-1).
	DecibelMeter struct {
		Level   Decibels // current level of left and right channels
		Attack  float64  // attack time constant in seconds
		Release float64  // release time constant in seconds
		Min     float64  // floor in decibels
		Max     float64  // ceiling in decibels
	}
)

// NewDecibelMeter returns a meter with peak ballistics: fast attack, slow
// release, clamped to [-60, 6] dB.
func NewDecibelMeter() *DecibelMeter {
	return &DecibelMeter{
		Level:   Decibels{-60, -60},
		Attack:  1.5e-3,
		Release: 1.5,
		Min:     -60,
		Max:     6,
	}
}

// Update moves Level towards the peaks, measured dt seconds after the
// previous update. The level is smoothed with an exponentially decaying
// average using Attack when the new value is louder than the current level
// and Release otherwise. A zero or negative dt jumps straight to the peaks.
func (m *DecibelMeter) Update(peak [2]float32, dt float64) {
	for ch := 0; ch < 2; ch++ {
		dB := m.clamp(ToDecibels(peak[ch]))
		tc := m.Attack
		if dB < m.Level[ch] {
			tc = m.Release
		}
		a := 1.0
		if dt > 0 && tc > 0 {
			a = 1 - math.Exp(-dt/tc)
		}
		m.Level[ch] += (dB - m.Level[ch]) * a
	}
}

func (m *DecibelMeter) clamp(dB float64) float64 {
	if dB < m.Min || math.IsNaN(dB) {
		return m.Min
	}
	if dB > m.Max {
		return m.Max
	}
	return dB
}

// ToDecibels converts a linear amplitude to dBFS; silence is -Inf.
func ToDecibels(amplitude float32) float64 {
	return 20 * math.Log10(math.Abs(float64(amplitude)))
}
