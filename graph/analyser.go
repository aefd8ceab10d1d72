package graph

import (
	"github.com/viterin/vek/vek32"
)

type (
	// RingBuffer keeps the most recent len(Buffer) values; Cursor points one
	// past the newest value.
	RingBuffer[T any] struct {
		Buffer []T
		Cursor int
	}

	// AnalyserNode passes its input through unchanged and keeps the most
	// recent window of samples per channel for level analysis.
	AnalyserNode struct {
		node
		window [numChannels]RingBuffer[float32]
		scratch []float32
	}
)

// DefaultAnalyserWindow matches the browser analyser's default FFT size.
const DefaultAnalyserWindow = 2048

func (r *RingBuffer[T]) WriteWrap(values []T) {
	if len(r.Buffer) == 0 {
		return
	}
	if len(values) > len(r.Buffer) {
		values = values[len(values)-len(r.Buffer):]
	}
	r.Cursor = (r.Cursor + len(values)) % len(r.Buffer)
	a := min(len(values), r.Cursor)                 // how many values to copy before the cursor
	b := min(len(values)-a, len(r.Buffer)-r.Cursor) // how many values to copy to the end of the buffer
	copy(r.Buffer[r.Cursor-a:r.Cursor], values[len(values)-a:])
	copy(r.Buffer[len(r.Buffer)-b:], values[len(values)-a-b:])
}

// Ordered copies the contents oldest first into dst, which must be at least
// len(Buffer) long.
func (r *RingBuffer[T]) Ordered(dst []T) {
	n := copy(dst, r.Buffer[r.Cursor:])
	copy(dst[n:], r.Buffer[:r.Cursor])
}

// NewAnalyser creates an analyser; window <= 0 means DefaultAnalyserWindow.
func (c *Context) NewAnalyser(window int) *AnalyserNode {
	if window <= 0 {
		window = DefaultAnalyserWindow
	}
	n := &AnalyserNode{scratch: make([]float32, window)}
	for ch := range n.window {
		n.window[ch].Buffer = make([]float32, window)
	}
	n.init(c, n)
	return n
}

func (n *AnalyserNode) process(in, out *[numChannels][]float32, start int64, frames int) {
	for ch := 0; ch < numChannels; ch++ {
		copy(out[ch][:frames], in[ch][:frames])
		n.window[ch].WriteWrap(in[ch][:frames])
	}
}

// TimeDomainData copies the analysis window of channel ch, oldest sample
// first, into dst. Channels outside [0, 2) read the downmix (L+R)/2.
func (n *AnalyserNode) TimeDomainData(ch int, dst []float32) {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	if ch >= 0 && ch < numChannels {
		n.window[ch].Ordered(dst)
		return
	}
	n.window[0].Ordered(dst)
	n.window[1].Ordered(n.scratch)
	m := min(len(dst), len(n.scratch))
	vek32.Add_Inplace(dst[:m], n.scratch[:m])
	vek32.MulNumber_Inplace(dst[:m], 0.5)
}

// Peak is the maximum absolute sample of the downmixed window.
func (n *AnalyserNode) Peak() float32 {
	buf := make([]float32, len(n.scratch))
	n.TimeDomainData(-1, buf)
	return absMax(buf)
}

// ChannelPeaks is the maximum absolute sample of each channel's window.
func (n *AnalyserNode) ChannelPeaks() [2]float32 {
	buf := make([]float32, len(n.scratch))
	var ret [2]float32
	for ch := range ret {
		n.TimeDomainData(ch, buf)
		ret[ch] = absMax(buf)
	}
	return ret
}

func absMax(buf []float32) float32 {
	if len(buf) == 0 {
		return 0
	}
	vek32.Abs_Inplace(buf)
	return vek32.Max(buf)
}
