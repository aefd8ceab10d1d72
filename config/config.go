// Package config holds the runtime configuration shared by the commands,
// loaded from an optional yaml file and then overridden from the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		SampleRate    int      `yaml:"sample_rate"`
		BlockSize     int      `yaml:"block_size"`
		TickInterval  Duration `yaml:"tick_interval"`
		ScheduleAhead Duration `yaml:"schedule_ahead"`
		RampTime      Duration `yaml:"ramp_time_constant"`
		MeterWindow   int      `yaml:"meter_window"`
		SplitMeters   bool     `yaml:"split_meters"`
		OutputBuffer  Duration `yaml:"output_buffer"`

		Addr         string  `yaml:"addr"`
		SnapshotRate float64 `yaml:"snapshot_rate"` // Hz

		LogLevel  string `yaml:"log_level"`
		FFmpeg    string `yaml:"ffmpeg,omitempty"`
		SentryDSN string `yaml:"sentry_dsn,omitempty"`
		Inserts   string `yaml:"inserts,omitempty"` // path of an insert rack yaml
	}

	// Duration is a time.Duration written as "25ms" in yaml.
	Duration time.Duration
)

func Default() Config {
	return Config{
		SampleRate:    48000,
		BlockSize:     128,
		TickInterval:  Duration(25 * time.Millisecond),
		ScheduleAhead: Duration(100 * time.Millisecond),
		RampTime:      Duration(10 * time.Millisecond),
		MeterWindow:   2048,
		OutputBuffer:  Duration(50 * time.Millisecond),
		Addr:          "127.0.0.1:8765",
		SnapshotRate:  30,
		LogLevel:      "info",
	}
}

// Load reads the yaml file at path on top of the defaults, then applies the
// environment overrides. An empty path, or a path that does not exist, uses
// the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return c, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return c, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}
	c.applyEnv()
	return c, c.Validate()
}

func Save(path string, c Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

func (c *Config) applyEnv() {
	c.SampleRate = envInt("STUDIO_SAMPLE_RATE", c.SampleRate)
	c.BlockSize = envInt("STUDIO_BLOCK_SIZE", c.BlockSize)
	c.TickInterval = envMillis("STUDIO_TICK_MS", c.TickInterval)
	c.ScheduleAhead = envMillis("STUDIO_LOOKAHEAD_MS", c.ScheduleAhead)
	c.RampTime = envMillis("STUDIO_RAMP_MS", c.RampTime)
	c.SnapshotRate = envFloat("STUDIO_SNAPSHOT_HZ", c.SnapshotRate)
	c.LogLevel = envStr("STUDIO_LOG_LEVEL", c.LogLevel)
	c.Addr = envStr("STUDIO_ADDR", c.Addr)
	c.FFmpeg = envStr("STUDIO_FFMPEG", c.FFmpeg)
	c.SentryDSN = envStr("SENTRY_DSN", c.SentryDSN)
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.SampleRate < 8000 || c.SampleRate > 384000 {
		errs = append(errs, fmt.Errorf("sample rate %d out of range [8000, 384000]", c.SampleRate))
	}
	if c.BlockSize <= 0 {
		errs = append(errs, fmt.Errorf("block size %d must be positive", c.BlockSize))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, errors.New("tick interval must be positive"))
	}
	if c.ScheduleAhead < 0 || c.RampTime < 0 {
		errs = append(errs, errors.New("schedule ahead and ramp time must not be negative"))
	}
	if c.SnapshotRate <= 0 {
		errs = append(errs, fmt.Errorf("snapshot rate %v must be positive", c.SnapshotRate))
	}
	return errors.Join(errs...)
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	v, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envMillis(key string, fallback Duration) Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return Duration(time.Duration(n) * time.Millisecond)
		}
	}
	return fallback
}
