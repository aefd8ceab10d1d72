// Package graph is a small block-based audio graph: parameter automation,
// gain, stereo panning, level analysis, buffer playback and opaque insert
// processors, pulled by a host output into a destination.
//
// A Context owns one mutex. Render holds it for the duration of a render
// call, every other method takes it briefly, so commands issued by the
// scheduler are never observed half-applied by the render goroutine.
// Callbacks (OnEnded) are called after the mutex has been released.
package graph

import (
	"sync"
)

type Context struct {
	mu         sync.Mutex
	sampleRate int
	blockSize  int
	frame      int64  // frames rendered so far
	blockID    uint64 // incremented per rendered block, for output caching
	dest       *Destination
	ended      []*BufferSourceNode
	closed     bool
}

const (
	DefaultBlockSize = 128
	numChannels      = 2
)

// NewContext creates a stereo rendering context. blockSize <= 0 means
// DefaultBlockSize.
func NewContext(sampleRate, blockSize int) *Context {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	c := &Context{sampleRate: sampleRate, blockSize: blockSize}
	c.dest = &Destination{}
	c.dest.init(c, c.dest)
	return c
}

func (c *Context) SampleRate() int { return c.sampleRate }
func (c *Context) BlockSize() int  { return c.blockSize }

// Destination is the final node; whatever is connected to it is rendered.
func (c *Context) Destination() *Destination { return c.dest }

// CurrentTime is the hardware clock: seconds of audio rendered so far.
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeOf(c.frame)
}

// CurrentFrame is the number of frames rendered so far.
func (c *Context) CurrentFrame() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

func (c *Context) timeOf(frame int64) float64 {
	return float64(frame) / float64(c.sampleRate)
}

func (c *Context) frameOf(t float64) int64 {
	if t <= 0 {
		return 0
	}
	return int64(t*float64(c.sampleRate) + 0.5)
}

// Render fills the planar stereo buffer out[0], out[1] (equal lengths) and
// advances the clock. After Close, Render writes silence without advancing.
func (c *Context) Render(out [][]float32) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		for ch := range out {
			clear(out[ch])
		}
		return
	}
	frames := len(out[0])
	for pos := 0; pos < frames; {
		n := min(c.blockSize, frames-pos)
		c.blockID++
		block := c.dest.pull(n)
		for ch := range out {
			copy(out[ch][pos:pos+n], block[min(ch, numChannels-1)][:n])
		}
		c.frame += int64(n)
		pos += n
	}
	ended := c.ended
	c.ended = nil
	c.mu.Unlock()
	for _, s := range ended {
		if s.onEnded != nil {
			s.onEnded()
		}
	}
}

// RenderInterleaved is Render for an interleaved L R L R... buffer.
func (c *Context) RenderInterleaved(buf []float32) {
	frames := len(buf) / numChannels
	planar := [][]float32{make([]float32, frames), make([]float32, frames)}
	c.Render(planar)
	for i := 0; i < frames; i++ {
		buf[2*i] = planar[0][i]
		buf[2*i+1] = planar[1][i]
	}
}

// Close stops rendering. It is safe to call more than once.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
