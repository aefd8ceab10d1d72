package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaist/studio/config"
)

func TestLoadDefaults(t *testing.T) {
	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), c)
	assert.Equal(t, 25*time.Millisecond, c.TickInterval.Std())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 48000, c.SampleRate)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sample_rate: 44100\ntick_interval: 10ms\nlog_level: debug\n"), 0644))
	t.Setenv("STUDIO_LOOKAHEAD_MS", "250")
	t.Setenv("STUDIO_LOG_LEVEL", "warn")
	t.Setenv("STUDIO_BLOCK_SIZE", "not a number")

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 44100, c.SampleRate)
	assert.Equal(t, 10*time.Millisecond, c.TickInterval.Std())
	assert.Equal(t, 250*time.Millisecond, c.ScheduleAhead.Std())
	assert.Equal(t, "warn", c.LogLevel, "environment wins over the file")
	assert.Equal(t, 128, c.BlockSize, "unparsable values fall back")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.yaml")
	want := config.Default()
	want.SplitMeters = true
	want.RampTime = config.Duration(5 * time.Millisecond)
	require.NoError(t, config.Save(path, want))
	got, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestValidate(t *testing.T) {
	c := config.Default()
	c.SampleRate = 10
	c.BlockSize = 0
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample rate")
	assert.Contains(t, err.Error(), "block size")

	_, err = config.Load(writeFile(t, "tick_interval: soon\n"))
	assert.Error(t, err)
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
