package studio

import (
	"fmt"
	"strings"
)

type (
	// TransportConfig is the musical and sample clock of a session. Bars,
	// beats and ticks are never stored; they are always derived from BPM,
	// TimeSignature and SampleRate with the timebase package.
	TransportConfig struct {
		BPM             float64       `yaml:"bpm"`
		TimeSignature   TimeSignature `yaml:"timesignature,flow"`
		SampleRate      int           `yaml:"samplerate"`
		PositionSamples int64         `yaml:"position,omitempty"`
		State           PlayState     `yaml:"-"`
		Loop            Loop          `yaml:"loop,flow"`
		Metronome       Metronome     `yaml:"metronome,flow"`
		PreRollBars     int           `yaml:"preroll,omitempty"`
	}

	TimeSignature struct {
		Numerator   int `yaml:"numerator"`
		Denominator int `yaml:"denominator"`
	}

	// Loop is a region [StartSamples, EndSamples) the transport wraps inside
	// when Enabled. EndSamples is always greater than StartSamples.
	Loop struct {
		Enabled      bool  `yaml:"enabled"`
		StartSamples int64 `yaml:"start"`
		EndSamples   int64 `yaml:"end"`
	}

	Metronome struct {
		Enabled bool    `yaml:"enabled"`
		Volume  float64 `yaml:"volume"`
	}

	// PlayState is the state of the transport state machine.
	PlayState int
)

const (
	Stopped PlayState = iota
	Playing
	Paused
	Recording
)

const (
	MinBPM = 20
	MaxBPM = 999

	DefaultBPM        = 120
	DefaultSampleRate = 48000
)

var playStateNames = [...]string{"stopped", "playing", "paused", "recording"}

func (s PlayState) String() string {
	if s < 0 || int(s) >= len(playStateNames) {
		return fmt.Sprintf("PlayState(%d)", int(s))
	}
	return playStateNames[s]
}

func (s PlayState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PlayState) UnmarshalText(text []byte) error {
	for i, n := range playStateNames {
		if strings.EqualFold(n, string(text)) {
			*s = PlayState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown play state %q", string(text))
}

// Rolling reports whether the transport is advancing, i.e. playing or
// recording.
func (s PlayState) Rolling() bool {
	return s == Playing || s == Recording
}

// DefaultTransport returns a 120 BPM, 4/4 transport at 48 kHz with a one bar
// loop region set but disabled.
func DefaultTransport() TransportConfig {
	return TransportConfig{
		BPM:           DefaultBPM,
		TimeSignature: TimeSignature{Numerator: 4, Denominator: 4},
		SampleRate:    DefaultSampleRate,
		Loop:          Loop{StartSamples: 0, EndSamples: DefaultSampleRate * 2},
		Metronome:     Metronome{Volume: 0.5},
	}
}

func (t TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", t.Numerator, t.Denominator)
}

// Valid reports whether the time signature has a positive numerator and a
// power of two denominator.
func (t TimeSignature) Valid() bool {
	if t.Numerator < 1 || t.Denominator < 1 {
		return false
	}
	return t.Denominator&(t.Denominator-1) == 0
}

// Contains reports whether pos lies inside the loop region.
func (l Loop) Contains(pos int64) bool {
	return pos >= l.StartSamples && pos < l.EndSamples
}

// Length is the length of the loop region in samples.
func (l Loop) Length() int64 {
	return l.EndSamples - l.StartSamples
}

// Wrap folds pos back into the loop region once it has reached EndSamples.
// Positions before the end are returned unchanged.
func (l Loop) Wrap(pos int64) int64 {
	if pos < l.EndSamples || l.Length() <= 0 {
		return pos
	}
	return l.StartSamples + (pos-l.StartSamples)%l.Length()
}
