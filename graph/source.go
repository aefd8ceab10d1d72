package graph

import (
	"math"

	"github.com/vaist/studio"
)

// BufferSourceNode plays a region of a decoded buffer once. It can be started
// once; Stop silences it for good. A source that plays to the end of its
// region calls its OnEnded callback, a stopped one does not.
type BufferSourceNode struct {
	node
	buffer   *studio.AudioBuffer
	onEnded  func()
	when     float64
	offset   float64
	duration float64

	startFrame int64   // hardware frame of the first output sample
	pos        float64 // read position in buffer frames
	end        float64 // read position where the region ends
	step       float64 // buffer frames per output frame

	started, stopped, ended bool
}

func (c *Context) NewBufferSource(buf *studio.AudioBuffer) *BufferSourceNode {
	n := &BufferSourceNode{buffer: buf, step: 1}
	if buf != nil && buf.SampleRate > 0 && buf.SampleRate != c.sampleRate {
		n.step = float64(buf.SampleRate) / float64(c.sampleRate)
	}
	n.init(c, n)
	return n
}

// OnEnded registers the natural-completion callback. It is called from the
// render goroutine after the graph lock has been released.
func (n *BufferSourceNode) OnEnded(f func()) {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	n.onEnded = f
}

// Start schedules playback at hardware time when (seconds), reading from
// offset seconds into the buffer for duration seconds. duration < 0 plays to
// the end of the buffer. A time in the past starts on the next rendered
// frame. Starting twice is a no-op.
func (n *BufferSourceNode) Start(when, offset, duration float64) {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	if n.started || n.stopped {
		return
	}
	n.started = true
	n.when, n.offset, n.duration = when, max(offset, 0), duration
	n.startFrame = max(n.ctx.frameOf(when), n.ctx.frame)
	sr := float64(n.ctx.sampleRate)
	if n.buffer != nil && n.buffer.SampleRate > 0 {
		sr = float64(n.buffer.SampleRate)
	}
	n.pos = snapFrames(n.offset * sr)
	n.end = float64(n.buffer.Frames())
	if duration >= 0 {
		n.end = min(n.end, n.pos+snapFrames(duration*sr))
	}
}

// Stop silences the source immediately. Stopping twice, or stopping a source
// that already ended, is a no-op.
func (n *BufferSourceNode) Stop() {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	n.stopped = true
}

// Timing reports the parameters passed to Start.
func (n *BufferSourceNode) Timing() (when, offset, duration float64) {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return n.when, n.offset, n.duration
}

// Playing reports whether the source has been started and has neither ended
// nor been stopped.
func (n *BufferSourceNode) Playing() bool {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return n.started && !n.stopped && !n.ended
}

// snapFrames rounds a position to the nearest 1/1024 frame, so sample positions
// that went through seconds land back on whole frames.
func snapFrames(x float64) float64 {
	return math.Round(x*1024) / 1024
}

func (n *BufferSourceNode) Buffer() *studio.AudioBuffer { return n.buffer }

func (n *BufferSourceNode) process(in, out *[numChannels][]float32, start int64, frames int) {
	for ch := 0; ch < numChannels; ch++ {
		clear(out[ch][:frames])
	}
	if !n.started || n.stopped || n.ended || n.buffer == nil {
		return
	}
	i := 0
	if d := n.startFrame - start; d > 0 {
		if d >= int64(frames) {
			return
		}
		i = int(d)
	}
	l, r := n.buffer.Channel(0), n.buffer.Channel(1)
	for ; i < frames; i++ {
		if n.pos >= n.end {
			n.ended = true
			n.ctx.ended = append(n.ctx.ended, n)
			return
		}
		k := int(n.pos)
		if n.step == 1 {
			out[0][i], out[1][i] = l[k], r[k]
		} else {
			frac := float32(n.pos - float64(k))
			k2 := min(k+1, len(l)-1)
			out[0][i] = l[k] + (l[k2]-l[k])*frac
			out[1][i] = r[k] + (r[k2]-r[k])*frac
		}
		n.pos += n.step
	}
	if n.pos >= n.end {
		n.ended = true
		n.ctx.ended = append(n.ctx.ended, n)
	}
}
