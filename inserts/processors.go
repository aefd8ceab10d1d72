package inserts

import (
	"math"

	"github.com/viterin/vek/vek32"
)

const (
	maxDelay     = 1.0 // seconds
	maxFeedback  = 0.95
	preGainRange = 10.0
	compensation = 0.7
	minCutoff    = 20.0
	maxCutoff    = 20000.0
	minResonance = 0.5
	maxResonance = 10.0
	fallbackRate = 48000
)

type (
	gainInsert struct {
		*params
	}

	waveshaper struct {
		*params
	}

	tremolo struct {
		*params
		sampleRate float64
		phase      float64
	}

	delay struct {
		*params
		sampleRate float64
		lines      [2][]float32
		write      int
	}

	// filter is a biquad lowpass or highpass in transposed direct form II.
	filter struct {
		*params
		sampleRate float64
		z1, z2     [2]float32
	}
)

func (g *gainInsert) Prepare(int) {}
func (g *gainInsert) Reset()      {}

func (g *gainInsert) Process(block [][]float32) {
	db, _ := g.Param("gain")
	k := float32(math.Pow(10, db/20))
	for _, ch := range block {
		vek32.MulNumber_Inplace(ch, k)
	}
	sanitize(block)
}

func (w *waveshaper) Prepare(int) {}
func (w *waveshaper) Reset()      {}

func (w *waveshaper) Process(block [][]float32) {
	drive, _ := w.Param("drive")
	mix, _ := w.Param("mix")
	pre := 1 + drive*(preGainRange-1)
	for _, ch := range block {
		for i, dry := range ch {
			shaped := math.Tanh(float64(dry)*pre) * compensation
			ch[i] = float32(float64(dry)*(1-mix) + shaped*mix)
		}
	}
	sanitize(block)
}

func (t *tremolo) Prepare(sampleRate int) {
	t.sampleRate = float64(sampleRate)
	t.Reset()
}

func (t *tremolo) Reset() { t.phase = 0 }

func (t *tremolo) Process(block [][]float32) {
	if len(block) == 0 {
		return
	}
	rate, _ := t.Param("rate")
	depth, _ := t.Param("depth")
	sr := t.sampleRate
	if sr <= 0 {
		sr = fallbackRate
	}
	inc := 2 * math.Pi * rate / sr
	phase := t.phase
	for i := range block[0] {
		g := float32(1 - depth/100*(0.5-0.5*math.Cos(phase)))
		for _, ch := range block {
			ch[i] *= g
		}
		phase += inc
	}
	t.phase = math.Mod(phase, 2*math.Pi)
	sanitize(block)
}

func (d *delay) Prepare(sampleRate int) {
	d.sampleRate = float64(sampleRate)
	n := int(d.sampleRate*maxDelay) + 1
	for c := range d.lines {
		d.lines[c] = make([]float32, n)
	}
	d.write = 0
}

func (d *delay) Reset() {
	for c := range d.lines {
		clear(d.lines[c])
	}
	d.write = 0
}

func (d *delay) Process(block [][]float32) {
	size := len(d.lines[0])
	if size == 0 || len(block) == 0 {
		return
	}
	tm, _ := d.Param("time")
	fb, _ := d.Param("feedback")
	mix, _ := d.Param("mix")
	samples := tm * maxDelay * d.sampleRate
	whole := int(samples)
	frac := float32(samples - float64(whole))
	feedback := float32(fb * maxFeedback)
	wet := float32(mix)
	w := d.write
	for i := range block[0] {
		for c, ch := range block[:min(len(block), 2)] {
			line := d.lines[c]
			r := (w - whole + size) % size
			r2 := (r - 1 + size) % size
			delayed := line[r]*(1-frac) + line[r2]*frac
			dry := ch[i]
			line[w] = dry + delayed*feedback
			ch[i] = dry*(1-wet) + delayed*wet
		}
		w = (w + 1) % size
	}
	d.write = w
	sanitize(block)
}

func (f *filter) Prepare(sampleRate int) {
	f.sampleRate = float64(sampleRate)
	f.Reset()
}

func (f *filter) Reset() {
	f.z1, f.z2 = [2]float32{}, [2]float32{}
}

func (f *filter) Process(block [][]float32) {
	cutoff, _ := f.Param("cutoff")
	res, _ := f.Param("resonance")
	hp, _ := f.Param("highpass")
	sr := f.sampleRate
	if sr <= 0 {
		sr = fallbackRate
	}
	freq := min(minCutoff*math.Pow(maxCutoff/minCutoff, cutoff), sr*0.49)
	q := minResonance + res*(maxResonance-minResonance)
	omega := 2 * math.Pi * freq / sr
	sin, cos := math.Sincos(omega)
	alpha := sin / (2 * q)
	b0, b1, b2 := (1-cos)/2, 1-cos, (1-cos)/2
	if hp >= 0.5 {
		b0, b1, b2 = (1+cos)/2, -(1 + cos), (1+cos)/2
	}
	a0, a1, a2 := 1+alpha, -2*cos, 1-alpha
	nb0, nb1, nb2 := float32(b0/a0), float32(b1/a0), float32(b2/a0)
	na1, na2 := float32(a1/a0), float32(a2/a0)
	for c, ch := range block[:min(len(block), 2)] {
		z1, z2 := f.z1[c], f.z2[c]
		for i, in := range ch {
			out := nb0*in + z1
			z1 = nb1*in - na1*out + z2
			z2 = nb2*in - na2*out
			ch[i] = out
		}
		f.z1[c], f.z2[c] = z1, z2
	}
	sanitize(block)
}
