// Package cmd holds the setup shared by the studio commands.
package cmd

import (
	"io"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"

	"github.com/vaist/studio/config"
	"github.com/vaist/studio/version"
)

// NewLogger writes human readable logs to w at the configured level.
// Unknown levels fall back to info.
func NewLogger(w io.Writer, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).With().Timestamp().Logger()
}

// InitSentry enables error reporting when a DSN is configured and hooks it
// into the logger, so every error level event is also captured. The
// returned function flushes pending events and must be called before exit.
func InitSentry(cfg config.Config, program string, log zerolog.Logger) (zerolog.Logger, func()) {
	if cfg.SentryDSN == "" {
		return log, func() {}
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:     cfg.SentryDSN,
		Release: version.UserAgent(program),
	})
	if err != nil {
		log.Warn().Err(err).Msg("sentry disabled")
		return log, func() {}
	}
	return log.Hook(SentryHook{}), func() { sentry.Flush(2 * time.Second) }
}

// SentryHook forwards error and fatal log events to sentry.
type SentryHook struct{}

func (SentryHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level < zerolog.ErrorLevel {
		return
	}
	sentry.AddBreadcrumb(&sentry.Breadcrumb{Category: "log", Message: msg, Level: sentry.LevelError})
	sentry.CaptureMessage(msg)
}

// Stderr is the default log destination of the commands.
var Stderr io.Writer = os.Stderr
