package main

import (
	"context"
	"time"

	"github.com/vaist/studio/graph"
)

const silentInterval = 10 * time.Millisecond

// renderSilently pulls the graph in real time and throws the audio away, so
// the scheduling clock runs without an audio device.
func renderSilently(ctx context.Context, gctx *graph.Context) {
	ticker := time.NewTicker(silentInterval)
	defer ticker.Stop()
	sr := float64(gctx.SampleRate())
	start := time.Now()
	var scratch [2][]float32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		due := int64(time.Since(start).Seconds() * sr)
		n := int(due - gctx.CurrentFrame())
		if n <= 0 {
			continue
		}
		if cap(scratch[0]) < n {
			scratch[0], scratch[1] = make([]float32, n), make([]float32, n)
		}
		gctx.Render([][]float32{scratch[0][:n], scratch[1][:n]})
	}
}
