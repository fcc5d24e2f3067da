package logging

import (
	"log/slog"
	"os"
)

// EnvLogLevel selects the initial log level: 0=Error, 1=Warn, 2=Info, 3=Debug
const EnvLogLevel = "SCHEMAGEN_LOG_LEVEL"

var (
	logLevel = new(slog.LevelVar)
	logger   *slog.Logger
)

func init() {
	logLevel.Set(parseLogLevel(os.Getenv(EnvLogLevel)))

	// stdout carries the schema, so logs always go to stderr
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	logger = slog.New(handler)
}

// Logger returns the process-wide logger.
func Logger() *slog.Logger {
	return logger
}

// SetLogLevel changes the level of the process-wide logger.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// parseLogLevel maps SCHEMAGEN_LOG_LEVEL values to slog levels, defaulting to Warn.
func parseLogLevel(envVal string) slog.Level {
	switch envVal {
	case "0":
		return slog.LevelError
	case "1":
		return slog.LevelWarn
	case "2":
		return slog.LevelInfo
	case "3":
		return slog.LevelDebug
	default:
		return slog.LevelWarn
	}
}
