package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog.Logger tagged with the given service name.
func New(service string, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", service)
}

// LevelFor maps a deployment environment name to a log level. Development
// gets debug output, everything else info.
func LevelFor(environment string) slog.Level {
	if environment == "development" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
