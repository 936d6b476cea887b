// Package telemetry wires up process-wide logging and metrics collaborators.
package telemetry

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitConsoleLogging configures the global zerolog logger for interactive
// use (colorized, human-readable). Intended for cmd/ entry points.
func InitConsoleLogging(level zerolog.Level) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

// InitJSONLogging configures the global zerolog logger for production use
// (structured JSON to stdout), the shape a supervised process expects.
func InitJSONLogging(level zerolog.Level) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
