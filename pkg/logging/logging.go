// Package logging builds the process-wide zerolog logger.
//
// Components receive a zerolog.Logger through their Config and default to a
// no-op logger when none is set, so libraries stay quiet unless the caller
// opts in.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Config controls logger construction.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to "info".
	Level string

	// Console enables human-readable console output instead of JSON.
	Console bool

	// Out overrides the output writer. Defaults to os.Stderr.
	Out io.Writer
}

// New constructs a zerolog.Logger from the config.
//
// Example:
//
//	log := logging.New(logging.Config{Level: "debug", Console: true})
//	log.Info().Str("index", "documents").Msg("index ready")
func New(cfg Config) zerolog.Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out}
	}

	level := parseLevel(cfg.Level)
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Nop returns a disabled logger, the default for component configs.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
