package shared

import (
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps the configured log level to slog. Unknown values fall back to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogging configures the default logger based on the log level setting.
func SetupLogging(level string) {
	handler := slog.NewTextHandler(
		os.Stdout,
		&slog.HandlerOptions{
			Level:     ParseLevel(level),
			AddSource: true,
		})
	slog.SetDefault(slog.New(handler))
}
