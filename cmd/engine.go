package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/vaist/studio"
	"github.com/vaist/studio/config"
	"github.com/vaist/studio/decode"
	"github.com/vaist/studio/engine"
	"github.com/vaist/studio/inserts"
)

// ReadSessionFile reads and validates a session yaml file.
func ReadSessionFile(path string) (studio.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return studio.Session{}, fmt.Errorf("could not open session: %w", err)
	}
	defer f.Close()
	return studio.ReadSession(f)
}

// ReadRack loads the insert rack named by the config, or returns an empty
// rack.
func ReadRack(cfg config.Config) (*inserts.Rack, error) {
	if cfg.Inserts == "" {
		return inserts.NewRack(), nil
	}
	f, err := os.Open(cfg.Inserts)
	if err != nil {
		return nil, fmt.Errorf("could not open insert rack: %w", err)
	}
	defer f.Close()
	return inserts.ReadRack(f)
}

// Decoder decodes to sampleRate, falling back to ffmpeg for formats without
// an in-process decoder.
func Decoder(cfg config.Config, sampleRate int, log zerolog.Logger) decode.Auto {
	return decode.Auto{
		SampleRate: sampleRate,
		FFmpeg:     &decode.FFmpeg{Path: cfg.FFmpeg, SampleRate: sampleRate, Log: log},
	}
}

// EngineOptions translates the config into engine options.
func EngineOptions(cfg config.Config, log zerolog.Logger, dec studio.Decoder, host studio.InsertHost) []engine.Option {
	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithDecoder(dec),
		engine.WithTickInterval(cfg.TickInterval.Std()),
		engine.WithScheduleAhead(cfg.ScheduleAhead.Std()),
		engine.WithRampTimeConstant(cfg.RampTime.Std()),
		engine.WithMeterWindow(cfg.MeterWindow),
		engine.WithSplitMeters(cfg.SplitMeters),
	}
	if host != nil {
		opts = append(opts, engine.WithInsertHost(host))
	}
	return opts
}
