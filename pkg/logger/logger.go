package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "plagiarism-service"

// New returns a console logger at info level, used before configuration is
// loaded.
func New() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger().
		Level(zerolog.InfoLevel)
}

// NewWithConfig builds the service logger. Pretty switches from JSON lines to
// the console writer; unknown levels fall back to info.
func NewWithConfig(level string, pretty, noColor bool) zerolog.Logger {
	var log zerolog.Logger

	if pretty {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			NoColor:    noColor,
		}
		log = zerolog.New(output)
	} else {
		log = zerolog.New(os.Stdout)
	}

	log = log.With().Timestamp().Str("service", serviceName).Logger()

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return log.Level(lvl)
}
