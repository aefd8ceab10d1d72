package oto_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/vaist/studio/graph"
	"github.com/vaist/studio/oto"
)

type constRenderer float32

func (c constRenderer) RenderInterleaved(buf []float32) {
	for i := range buf {
		buf[i] = float32(c)
	}
}

func TestReaderEncodesFloat32LE(t *testing.T) {
	r := oto.NewReader(constRenderer(0.25))
	p := make([]byte, 8*3+3)
	n, err := r.Read(p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(p) {
		t.Fatalf("n = %d, want %d", n, len(p))
	}
	for i := 0; i < 6; i++ {
		if got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:])); got != 0.25 {
			t.Errorf("sample %d = %v, want 0.25", i, got)
		}
	}
	for i := 24; i < len(p); i++ {
		if p[i] != 0 {
			t.Errorf("trailing byte %d = %d, want 0", i, p[i])
		}
	}
	if got := r.Frames(); got != 3 {
		t.Errorf("Frames() = %d, want 3", got)
	}
}

func TestReaderAdvancesContext(t *testing.T) {
	ctx := graph.NewContext(48000, 128)
	r := oto.NewReader(ctx)
	if _, err := r.Read(make([]byte, 8*480)); err != nil {
		t.Fatal(err)
	}
	if got := ctx.CurrentFrame(); got != 480 {
		t.Errorf("CurrentFrame() = %d, want 480", got)
	}
}

func TestFloatBufferTo16BitLE(t *testing.T) {
	got := oto.FloatBufferTo16BitLE([]float32{0, 2, -2, 0.5}, nil)
	want := []int16{0, math.MaxInt16, -math.MaxInt16, int16(0.5 * math.MaxInt16)}
	for i, w := range want {
		if v := int16(binary.LittleEndian.Uint16(got[i*2:])); v != w {
			t.Errorf("sample %d = %d, want %d", i, v, w)
		}
	}
}
