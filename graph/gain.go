package graph

import (
	"math"

	"github.com/viterin/vek/vek32"
)

type (
	// GainNode multiplies its input by Gain.
	GainNode struct {
		node
		Gain *Param
		g    []float32
	}

	// StereoPannerNode places its input in the stereo field with the
	// equal-power law; Pan is in [-1, 1].
	StereoPannerNode struct {
		node
		Pan *Param
		p   []float32
	}
)

// maxGain bounds gain automation; it is far above anything the mixer sets.
const maxGain = 16

func (c *Context) NewGain(gain float64) *GainNode {
	n := &GainNode{g: make([]float32, c.blockSize)}
	n.init(c, n)
	n.Gain = newParam(c, gain, 0, maxGain)
	return n
}

func (n *GainNode) process(in, out *[numChannels][]float32, start int64, frames int) {
	if !n.Gain.automated() {
		g := float32(n.Gain.value)
		for ch := 0; ch < numChannels; ch++ {
			vek32.MulNumber_Into(out[ch][:frames], in[ch][:frames], g)
		}
		return
	}
	n.Gain.fill(n.g, start, frames)
	for ch := 0; ch < numChannels; ch++ {
		vek32.Mul_Into(out[ch][:frames], in[ch][:frames], n.g[:frames])
	}
}

func (c *Context) NewStereoPanner(pan float64) *StereoPannerNode {
	n := &StereoPannerNode{p: make([]float32, c.blockSize)}
	n.init(c, n)
	n.Pan = newParam(c, pan, -1, 1)
	return n
}

func (n *StereoPannerNode) process(in, out *[numChannels][]float32, start int64, frames int) {
	n.Pan.fill(n.p, start, frames)
	inL, inR := in[0], in[1]
	outL, outR := out[0], out[1]
	for i := 0; i < frames; i++ {
		l, r := Pan(n.p[i], inL[i], inR[i])
		outL[i], outR[i] = l, r
	}
}

// Pan applies the equal-power stereo panning law to one stereo frame. At
// pan 0 the frame passes unchanged; at -1 both inputs end up on the left.
func Pan(pan, l, r float32) (float32, float32) {
	if pan <= 0 {
		x := float64(pan + 1)
		gl := float32(math.Cos(x * math.Pi / 2))
		gr := float32(math.Sin(x * math.Pi / 2))
		return l + r*gl, r * gr
	}
	x := float64(pan)
	gl := float32(math.Cos(x * math.Pi / 2))
	gr := float32(math.Sin(x * math.Pi / 2))
	return l * gl, r + l*gr
}
