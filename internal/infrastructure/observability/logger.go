package observability

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger builds the service logger and installs it as the global zerolog
// logger so packages logging through zerolog/log share its level and fields.
func InitLogger(level string, service string, output io.Writer) zerolog.Logger {
	if output == nil {
		output = os.Stdout
	}

	logger := zerolog.New(output).
		Level(parseLogLevel(level)).
		With().
		Timestamp().
		Str("service", service).
		Caller().
		Logger()

	log.Logger = logger
	return logger
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithReservation returns a child logger tagged with reservation fields.
func WithReservation(logger zerolog.Logger, id string, court string, slot string) zerolog.Logger {
	return logger.With().
		Str("reservation_id", id).
		Str("court", court).
		Str("time_slot", slot).
		Logger()
}
