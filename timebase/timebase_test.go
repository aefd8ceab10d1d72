package timebase_test

import (
	"testing"

	"github.com/vaist/studio"
	"github.com/vaist/studio/timebase"
)

var tempos = []timebase.Tempo{
	{BPM: 120, TimeSignature: studio.TimeSignature{Numerator: 4, Denominator: 4}, SampleRate: 48000},
	{BPM: 120, TimeSignature: studio.TimeSignature{Numerator: 4, Denominator: 4}, SampleRate: 44100},
	{BPM: 93.5, TimeSignature: studio.TimeSignature{Numerator: 7, Denominator: 8}, SampleRate: 44100},
	{BPM: 999, TimeSignature: studio.TimeSignature{Numerator: 3, Denominator: 4}, SampleRate: 22050},
	{BPM: 20, TimeSignature: studio.TimeSignature{Numerator: 6, Denominator: 8}, SampleRate: 96000},
}

func TestBBTRoundTrip(t *testing.T) {
	for _, tempo := range tempos {
		perBeat := tempo.TicksPerBeat()
		for bar := 1; bar <= 40; bar += 3 {
			for beat := 1; beat <= tempo.TimeSignature.Numerator; beat++ {
				for tick := 0; tick < perBeat; tick += 7 {
					want := timebase.BBT{Bar: bar, Beat: beat, Tick: tick}
					samples := tempo.BBTToSamples(want)
					if got := tempo.SamplesToBBT(samples); got != want {
						t.Fatalf("%+v: SamplesToBBT(BBTToSamples(%v)) = %v (samples %d)", tempo, want, got, samples)
					}
				}
			}
		}
	}
}

func TestTicksFollowBeatNote(t *testing.T) {
	tests := []struct {
		num, den int
		want     int
	}{
		{4, 4, 480},
		{6, 8, 240},
		{7, 8, 240},
		{2, 2, 960},
		{5, 16, 120},
	}
	for _, tt := range tests {
		tempo := timebase.Tempo{BPM: 120, TimeSignature: studio.TimeSignature{Numerator: tt.num, Denominator: tt.den}, SampleRate: 48000}
		if got := tempo.TicksPerBeat(); got != tt.want {
			t.Errorf("TicksPerBeat(%d/%d) = %d, want %d", tt.num, tt.den, got, tt.want)
		}
		if got := tempo.SamplesPerTick(); got != 50 {
			t.Errorf("SamplesPerTick(%d/%d) = %v, want 50 at any meter", tt.num, tt.den, got)
		}
	}
	six8 := timebase.Tempo{BPM: 120, TimeSignature: studio.TimeSignature{Numerator: 6, Denominator: 8}, SampleRate: 48000}
	if got := six8.SamplesToBBT(six8.BBTToSamples(timebase.BBT{Bar: 1, Beat: 1, Tick: 240})).String(); got != "1.2.000" {
		t.Errorf("tick 240 of an eighth-note beat = %s, want 1.2.000", got)
	}
}

func TestSamplesPerBar(t *testing.T) {
	tests := []struct {
		tempo timebase.Tempo
		want  float64
	}{
		{tempos[0], 96000},
		{timebase.Tempo{BPM: 60, TimeSignature: studio.TimeSignature{Numerator: 6, Denominator: 8}, SampleRate: 48000}, 144000},
		{timebase.Tempo{BPM: 120, TimeSignature: studio.TimeSignature{Numerator: 3, Denominator: 4}, SampleRate: 48000}, 72000},
	}
	for _, tt := range tests {
		if got := tt.tempo.SamplesPerBar(); got != tt.want {
			t.Errorf("SamplesPerBar(%+v) = %v, want %v", tt.tempo, got, tt.want)
		}
	}
}

func TestSamplesToBBT(t *testing.T) {
	tempo := tempos[0] // 24000 samples per beat, 50 samples per tick
	tests := []struct {
		samples int64
		want    string
	}{
		{0, "1.1.000"},
		{49, "1.1.000"},
		{50, "1.1.001"},
		{24000, "1.2.000"},
		{96000, "2.1.000"},
		{96000 + 24000*3 + 50*479, "2.4.479"},
		{-10, "1.1.000"},
	}
	for _, tt := range tests {
		if got := tempo.SamplesToBBT(tt.samples).String(); got != tt.want {
			t.Errorf("SamplesToBBT(%d) = %s, want %s", tt.samples, got, tt.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		samples int64
		rate    int
		want    string
	}{
		{0, 48000, "00:00.000"},
		{24000, 48000, "00:00.500"},
		{48000 * 61, 48000, "01:01.000"},
		{44100*125 + 441, 44100, "02:05.010"},
	}
	for _, tt := range tests {
		if got := timebase.FormatClock(tt.samples, tt.rate); got != tt.want {
			t.Errorf("FormatClock(%d, %d) = %s, want %s", tt.samples, tt.rate, got, tt.want)
		}
	}
}

func TestQuantize(t *testing.T) {
	tempo := tempos[0]
	tests := []struct {
		name    string
		fn      func(int64, timebase.Grid) int64
		samples int64
		grid    timebase.Grid
		want    int64
	}{
		{"nearest down", tempo.Quantize, 11999, timebase.GridBeat, 0},
		{"nearest tie", tempo.Quantize, 12000, timebase.GridBeat, 24000},
		{"nearest bar", tempo.Quantize, 150000, timebase.GridBar, 192000},
		{"floor", tempo.QuantizeFloor, 23999, timebase.GridBeat, 0},
		{"floor exact", tempo.QuantizeFloor, 24000, timebase.GridBeat, 24000},
		{"ceil", tempo.QuantizeCeil, 1, timebase.GridSixteenth, 6000},
		{"triplet", tempo.Quantize, 8100, timebase.GridEighthTriplet, 8000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.samples, tt.grid); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseGrid(t *testing.T) {
	for _, name := range []string{"bar", "beat", "1/16", "1/8T"} {
		g, err := timebase.ParseGrid(name)
		if err != nil {
			t.Fatalf("ParseGrid(%q) failed: %v", name, err)
		}
		if g.String() != name {
			t.Errorf("ParseGrid(%q).String() = %q", name, g.String())
		}
	}
	if _, err := timebase.ParseGrid("1/7"); err == nil {
		t.Errorf("expected error for unknown grid")
	}
}
