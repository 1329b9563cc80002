// Package telemetry configures the process-wide structured logger.
package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggingConfig controls the global logger set up by Configure.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error. Unknown values fall
	// back to info.
	Level string

	// JSON emits machine-readable log lines instead of the console format.
	JSON bool

	// Output defaults to stderr so command output on stdout stays clean for
	// piping.
	Output io.Writer
}

// Configure installs the global zerolog logger. Commands call this once from
// the root command before any work runs.
func Configure(cfg LoggingConfig) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(out).With().Timestamp().Logger().Level(parseLevel(cfg.Level))
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
