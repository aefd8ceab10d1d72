package graph

import (
	"math"
	"sort"
)

type (
	// Param is an automatable value, evaluated per sample. Scheduled events
	// run in time order; a ramp begins when the event before it ends (or when
	// it was scheduled, whichever is later), and a target approach lasts until
	// the next event begins.
	Param struct {
		ctx    *Context
		value  float64
		min    float64
		max    float64
		events []paramEvent
		last   float64 // end time of the last scheduled event
	}

	paramEvent struct {
		kind         eventKind
		begin        float64 // when the event starts affecting the value
		time         float64 // set time, ramp end time, or target start time
		value        float64
		timeConstant float64
		started      bool
		startValue   float64
	}

	eventKind int
)

const (
	setEvent eventKind = iota
	rampEvent
	targetEvent
)

// settleRatio ends a target approach once the remaining distance is
// negligible.
const settleRatio = 1e-5

func newParam(ctx *Context, value, min, max float64) *Param {
	return &Param{ctx: ctx, value: value, min: min, max: max}
}

// Value is the most recently evaluated value.
func (p *Param) Value() float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.value
}

// SetValue cancels all automation and jumps to value immediately.
func (p *Param) SetValue(value float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.events = nil
	p.value = p.clamp(value)
	p.last = p.ctx.timeOf(p.ctx.frame)
}

func (p *Param) SetValueAtTime(value, t float64) {
	p.schedule(paramEvent{kind: setEvent, begin: t, time: t, value: value})
}

// LinearRampToValueAtTime ramps linearly to value, arriving at time t.
func (p *Param) LinearRampToValueAtTime(value, t float64) {
	p.ctx.mu.Lock()
	begin := max(p.last, p.ctx.timeOf(p.ctx.frame))
	p.ctx.mu.Unlock()
	p.schedule(paramEvent{kind: rampEvent, begin: begin, time: t, value: value})
}

// SetTargetAtTime approaches target exponentially from time t onwards, with
// the given time constant in seconds.
func (p *Param) SetTargetAtTime(target, t, timeConstant float64) {
	if timeConstant <= 0 {
		p.SetValueAtTime(target, t)
		return
	}
	p.schedule(paramEvent{kind: targetEvent, begin: t, time: t, value: target, timeConstant: timeConstant})
}

// CancelScheduledValues removes all events beginning at or after t.
func (p *Param) CancelScheduledValues(t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].begin >= t })
	p.events = p.events[:i]
	p.last = t
}

func (p *Param) schedule(e paramEvent) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	e.value = p.clamp(e.value)
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].begin > e.begin })
	p.events = append(p.events, paramEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
	p.last = max(p.last, e.time)
}

func (p *Param) clamp(v float64) float64 {
	return math.Max(p.min, math.Min(p.max, v))
}

// automated reports whether any event is pending; if not, the value is
// constant for the whole block.
func (p *Param) automated() bool {
	return len(p.events) > 0
}

// valueAt evaluates the param at time t; t must not decrease between calls.
// Must be called with ctx.mu held.
func (p *Param) valueAt(t float64) float64 {
	for len(p.events) > 0 {
		e := &p.events[0]
		if t < e.begin {
			return p.value
		}
		switch e.kind {
		case setEvent:
			p.value = e.value
			p.events = p.events[1:]
		case rampEvent:
			if t >= e.time || e.time <= e.begin {
				p.value = e.value
				p.events = p.events[1:]
				continue
			}
			if !e.started {
				e.started, e.startValue = true, p.value
			}
			p.value = e.startValue + (e.value-e.startValue)*(t-e.begin)/(e.time-e.begin)
			return p.value
		case targetEvent:
			if len(p.events) > 1 && p.events[1].begin <= t {
				p.events = p.events[1:]
				continue
			}
			if !e.started {
				e.started, e.startValue = true, p.value
			}
			p.value = e.value + (e.startValue-e.value)*math.Exp(-(t-e.time)/e.timeConstant)
			if len(p.events) == 1 && math.Abs(p.value-e.value) <= settleRatio*math.Max(math.Abs(e.startValue-e.value), 1e-9) {
				p.value = e.value
				p.events = p.events[1:]
			}
			return p.value
		}
	}
	return p.value
}

// fill writes the param value for each frame of the block into dst.
func (p *Param) fill(dst []float32, start int64, frames int) {
	if !p.automated() {
		v := float32(p.value)
		for i := range dst[:frames] {
			dst[i] = v
		}
		return
	}
	for i := 0; i < frames; i++ {
		dst[i] = float32(p.valueAt(p.ctx.timeOf(start + int64(i))))
	}
}
