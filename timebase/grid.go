package timebase

import (
	"fmt"
	"math"
)

// Grid is a snapping resolution for quantization.
type Grid int

const (
	GridBar Grid = iota
	GridBeat
	GridHalf
	GridQuarter
	GridEighth
	GridSixteenth
	GridThirtySecond
	GridQuarterTriplet
	GridEighthTriplet
	GridSixteenthTriplet
)

var gridNames = map[Grid]string{
	GridBar:              "bar",
	GridBeat:             "beat",
	GridHalf:             "1/2",
	GridQuarter:          "1/4",
	GridEighth:           "1/8",
	GridSixteenth:        "1/16",
	GridThirtySecond:     "1/32",
	GridQuarterTriplet:   "1/4T",
	GridEighthTriplet:    "1/8T",
	GridSixteenthTriplet: "1/16T",
}

func (g Grid) String() string {
	if n, ok := gridNames[g]; ok {
		return n
	}
	return fmt.Sprintf("Grid(%d)", int(g))
}

// ParseGrid parses names like "bar", "beat", "1/16" or "1/8T".
func ParseGrid(s string) (Grid, error) {
	for g, n := range gridNames {
		if n == s {
			return g, nil
		}
	}
	return 0, fmt.Errorf("unknown grid %q", s)
}

// GridSamples is the spacing of the grid lines in samples.
func (t Tempo) GridSamples(g Grid) float64 {
	q := t.SamplesPerQuarter()
	switch g {
	case GridBar:
		return t.SamplesPerBar()
	case GridBeat:
		return t.SamplesPerBeat()
	case GridHalf:
		return q * 2
	case GridQuarter:
		return q
	case GridEighth:
		return q / 2
	case GridSixteenth:
		return q / 4
	case GridThirtySecond:
		return q / 8
	case GridQuarterTriplet:
		return q * 2 / 3
	case GridEighthTriplet:
		return q / 3
	case GridSixteenthTriplet:
		return q / 6
	}
	return q
}

// Quantize snaps samples to the nearest grid line; ties go to the later line.
func (t Tempo) Quantize(samples int64, g Grid) int64 {
	return t.snap(samples, g, func(x float64) float64 { return math.Floor(x + 0.5) })
}

// QuantizeFloor snaps samples to the grid line at or before it.
func (t Tempo) QuantizeFloor(samples int64, g Grid) int64 {
	return t.snap(samples, g, func(x float64) float64 { return math.Floor(x + eps) })
}

// QuantizeCeil snaps samples to the grid line at or after it.
func (t Tempo) QuantizeCeil(samples int64, g Grid) int64 {
	return t.snap(samples, g, func(x float64) float64 { return math.Ceil(x - eps) })
}

func (t Tempo) snap(samples int64, g Grid, round func(float64) float64) int64 {
	step := t.GridSamples(g)
	if step <= 0 {
		return samples
	}
	n := round(float64(samples) / step)
	return int64(math.Round(n * step))
}
