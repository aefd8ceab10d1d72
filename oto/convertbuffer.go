package oto

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

// Reader adapts a Renderer to the io.Reader the oto player pulls from.
type Reader struct {
	r       Renderer
	samples []float32
	frames  atomic.Int64
}

func NewReader(r Renderer) *Reader {
	return &Reader{r: r}
}

// Read renders len(p)/8 frames and encodes them as float32 little endian.
// Trailing bytes that do not make up a whole frame are left zero.
func (r *Reader) Read(p []byte) (int, error) {
	n := len(p) / 8 * 2
	if cap(r.samples) < n {
		r.samples = make([]float32, n)
	}
	samples := r.samples[:n]
	r.r.RenderInterleaved(samples)
	FloatBufferToLE(samples, p)
	clear(p[n*4:])
	r.frames.Add(int64(n / 2))
	return len(p), nil
}

func (r *Reader) Frames() int64 { return r.frames.Load() }

// FloatBufferToLE writes samples into dst as float32 little endian; dst must
// hold at least 4*len(samples) bytes.
func FloatBufferToLE(samples []float32, dst []byte) {
	for i, v := range samples {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

// FloatBufferTo16BitLE is a naive helper method to convert []float32 buffers
// to 16-bit little-endian integer buffers, appending to dst.
func FloatBufferTo16BitLE(samples []float32, dst []byte) []byte {
	for _, v := range samples {
		var uv int16
		if v < -1.0 {
			uv = -math.MaxInt16
		} else if v > 1.0 {
			uv = math.MaxInt16
		} else {
			uv = int16(v * math.MaxInt16)
		}
		dst = binary.LittleEndian.AppendUint16(dst, uint16(uv))
	}
	return dst
}
