// Package logger builds the zerolog loggers of ledgerctl and the worker
// and carries them through a context, so pipeline steps and the ledger
// engine log with the caller's run and job fields.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// Output formats accepted by Configure.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns a console logger on stderr. Stdout is left to command
// output such as run summaries and tables.
func New() zerolog.Logger {
	return NewConsole(os.Stderr)
}

// NewConsole returns a human readable logger writing to w.
func NewConsole(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// NewJSON returns a logger writing one JSON object per line to w.
func NewJSON(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// Configure builds the stderr logger for the log.level and log.format
// settings. Empty values mean info and console. On an invalid setting the
// info console logger is returned along with the error.
func Configure(level, format string) (zerolog.Logger, error) {
	fallback := New().Level(zerolog.InfoLevel)

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fallback, err
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	switch strings.ToLower(format) {
	case "", FormatConsole:
		return New().Level(lvl), nil
	case FormatJSON:
		return NewJSON(os.Stderr).Level(lvl), nil
	default:
		return fallback, fmt.Errorf("unknown log format %q", format)
	}
}

// WithContext returns a copy of ctx carrying logger.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored by WithContext, or the default
// console logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return logger
	}
	return New()
}

// WithRun stamps run_id on every line logged through the returned logger.
func WithRun(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}
