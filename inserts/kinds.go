package inserts

import (
	"math"
	"sync"
)

// Param documents one parameter that an insert kind takes.
type Param struct {
	Name    string  // should be found with this name in Spec.Params
	Min     float64 // minimum value of the parameter, inclusive
	Max     float64 // maximum value of the parameter, inclusive
	Default float64
}

// Kinds documents all the built-in insert kinds and the parameters they take.
var Kinds = map[string][]Param{
	"gain": {
		{Name: "gain", Min: -60, Max: 24, Default: 0}, // dB
	},
	"waveshaper": {
		{Name: "drive", Min: 0, Max: 1, Default: 0.5},
		{Name: "mix", Min: 0, Max: 1, Default: 1},
	},
	"tremolo": {
		{Name: "rate", Min: 0.01, Max: 10, Default: 4}, // Hz
		{Name: "depth", Min: 0, Max: 100, Default: 50}, // percent
	},
	"delay": {
		{Name: "time", Min: 0, Max: 1, Default: 0.3}, // fraction of maxDelay
		{Name: "feedback", Min: 0, Max: 1, Default: 0.4},
		{Name: "mix", Min: 0, Max: 1, Default: 0.3},
	},
	"filter": {
		{Name: "cutoff", Min: 0, Max: 1, Default: 0.7}, // log-mapped to [minCutoff, maxCutoff]
		{Name: "resonance", Min: 0, Max: 1, Default: 0.1},
		{Name: "highpass", Min: 0, Max: 1, Default: 0},
	},
}

func kindParam(kind, name string) (Param, bool) {
	for _, p := range Kinds[kind] {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// params holds the current, clamped parameter values of one instance. It is
// written by the control side and read by the render goroutine.
type params struct {
	kind   string
	mu     sync.Mutex
	values map[string]float64
}

func newParams(kind string, init map[string]float64) *params {
	p := &params{kind: kind, values: map[string]float64{}}
	for _, d := range Kinds[kind] {
		p.values[d.Name] = d.Default
	}
	for k, v := range init {
		p.SetParam(k, v)
	}
	return p
}

// SetParam clamps value into the range of the named parameter. NaN and
// unknown names are rejected.
func (p *params) SetParam(name string, value float64) bool {
	d, ok := kindParam(p.kind, name)
	if !ok || math.IsNaN(value) {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[name] = min(max(value, d.Min), d.Max)
	return true
}

func (p *params) Param(name string) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[name]
	return v, ok
}

func (p *params) snapshot() map[string]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ret := make(map[string]float64, len(p.values))
	for k, v := range p.values {
		ret[k] = v
	}
	return ret
}

// sanitize replaces non-finite samples with silence and hard-limits the rest
// to [-1, 1].
func sanitize(block [][]float32) {
	for _, ch := range block[:min(len(block), 2)] {
		for i, v := range ch {
			switch {
			case math.IsNaN(float64(v)) || math.IsInf(float64(v), 0):
				ch[i] = 0
			case v > 1:
				ch[i] = 1
			case v < -1:
				ch[i] = -1
			}
		}
	}
}
