package cmd_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaist/studio/cmd"
	"github.com/vaist/studio/engine"
	"github.com/vaist/studio/remote"
	"github.com/vaist/studio/state"
)

func TestDirAssets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kick.wav"), []byte("RIFF"), 0644))
	src := cmd.DirAssets{Root: dir}

	rc, err := src.Open(context.Background(), "kick")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "RIFF", string(b))

	_, err = src.Open(context.Background(), "snare")
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = src.Open(context.Background(), "../etc/passwd")
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	tmpl, err := cmd.NewStatus(cmd.DefaultStatus)
	require.NoError(t, err)
	st := state.NewStudio()
	var buf bytes.Buffer
	require.NoError(t, cmd.WriteStatus(&buf, tmpl, remote.TakeSnapshot(st)))
	out := buf.String()
	assert.Contains(t, out, "STOPPED")
	assert.Contains(t, out, "1.1.000")
	assert.Contains(t, out, "120.00 bpm 4/4")
	assert.Contains(t, out, "master")
}

func TestStatusMeters(t *testing.T) {
	tmpl, err := cmd.NewStatus(cmd.DefaultStatus)
	require.NoError(t, err)
	snap := remote.Snapshot{
		State: "playing",
		Tracks: map[string]remote.TrackSnapshot{
			"full":  {Level: engine.Decibels{0, 0}},
			"half":  {Level: engine.Decibels{-30, -30}},
			"quiet": {Level: engine.Decibels{-60, -60}},
		},
		MasterLevel: engine.Decibels{6, 6},
	}
	var buf bytes.Buffer
	require.NoError(t, cmd.WriteStatus(&buf, tmpl, snap))
	bar := func(n int) string {
		return "[" + strings.Repeat("#", n) + strings.Repeat(" ", 24-n) + "]"
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[1], "full")
	assert.Contains(t, lines[1], bar(24))
	assert.Contains(t, lines[2], bar(12))
	assert.Contains(t, lines[3], bar(0))
	assert.Contains(t, lines[4], "master")
	assert.Contains(t, lines[4], bar(24), "levels above 0 dB stay full")
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := cmd.NewLogger(&buf, "warn")
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
