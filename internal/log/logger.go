package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds a zerolog logger with the given level (debug, info, warn, error) and
// format ("console" or "json"). A nil writer means stdout.
func New(level, format string, w io.Writer) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if w == nil {
		w = os.Stdout
	}

	var output io.Writer = w
	if !strings.EqualFold(format, "json") {
		output = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(output).Level(ParseLevel(level)).With().Timestamp().Logger()
	return &logger
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
