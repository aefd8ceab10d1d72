package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vaist/studio"
	"github.com/vaist/studio/cmd"
	"github.com/vaist/studio/config"
	"github.com/vaist/studio/engine"
	"github.com/vaist/studio/oto"
	"github.com/vaist/studio/remote"
	"github.com/vaist/studio/state"
)

const statusInterval = 200 * time.Millisecond

func studioFor(sess studio.Session) *state.Studio {
	st := state.NewStudio()
	// ReadSession has already validated the session.
	_ = st.Open(sess)
	return st
}

// playSession plays [start, end) through the audio device and returns when
// the playhead reaches end or ctx is cancelled.
func playSession(ctx context.Context, cfg config.Config, e *engine.Engine, st *state.Studio, start, end int64, quiet bool) error {
	tr := st.Transport
	tr := st.Transport
	out, err := oto.Open(e.Context(), tr.Snapshot().SampleRate, cfg.OutputBuffer.Std())
	if err != nil {
		return err
	}
	defer out.Close()
	status, err := cmd.NewStatus(cmd.DefaultStatus)
	if err != nil {
		return err
	}
	if err := e.Seek(start); err != nil {
		return err
	}
	tr.Play()
	defer tr.Stop()
	levels := remote.NewBallistics()
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if !quiet {
			snap := remote.TakeSnapshot(st)
			levels.Apply(&snap, time.Now())
			fmt.Fprint(os.Stdout, "\033[H\033[2J")
			if err := cmd.WriteStatus(os.Stdout, status, snap); err != nil {
				return err
			}
		}
		if tr.Snapshot().PositionSamples >= end || !tr.IsRolling() {
			return nil
		}
	}
}
