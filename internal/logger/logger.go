// Package logger wraps zerolog with the tag-oriented helpers used
// throughout the codebase. Each call names the component it logs for.
package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var log = zerolog.New(zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}).With().Timestamp().Logger()

// Init sets the global log level and switches to JSON output if requested.
// Unknown level strings fall back to info.
func Init(level string, jsonOutput bool) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if jsonOutput {
		log = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

// With returns a zerolog child logger tagged with a component field,
// for packages that want structured fields beyond the helpers below.
func With(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Debug logs a debug message for a component.
func Debug(tag, msg string) {
	log.Debug().Str("component", tag).Msg(msg)
}

// Info logs an informational message for a component.
func Info(tag, msg string) {
	log.Info().Str("component", tag).Msg(msg)
}

// Success logs a completed milestone. Rendered as info with an ok marker.
func Success(tag, msg string) {
	log.Info().Str("component", tag).Bool("ok", true).Msg(msg)
}

// Warn logs a warning for a component.
func Warn(tag, msg string) {
	log.Warn().Str("component", tag).Msg(msg)
}

// Error logs an error message for a component.
func Error(tag, msg string) {
	log.Error().Str("component", tag).Msg(msg)
}

// Banner prints the startup banner with the build version.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	log.Info().Str("version", version).Msg("eve-tactician starting")
}

// Section marks the start of a named startup phase.
func Section(name string) {
	log.Info().Msg(fmt.Sprintf("--- %s ---", name))
}

// Stats logs a single named counter, used for load-time summaries.
func Stats(key string, value any) {
	log.Info().Any(key, value).Msg("stats")
}
