package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var zlog = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init configures the process-wide logger. Development gets a console
// writer, everything else JSON.
func Init(env, level string) {
	var w io.Writer
	if env == "development" || env == "dev" || env == "local" {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	} else {
		w = os.Stdout
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zlog = zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("service", "memories-api").
		Logger()
}

// Get returns the process-wide logger.
func Get() zerolog.Logger {
	return zlog
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return zlog.With().Str("component", name).Logger()
}

// WithUserID returns a logger with user_id field
func WithUserID(userID string) zerolog.Logger {
	return zlog.With().Str("user_id", userID).Logger()
}
