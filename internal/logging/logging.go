package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init sets up the process-wide logger. GATHER_LOG takes precedence over
// the generic LOG_LEVEL. The default stays at error so log lines do not
// bleed into the meeting TUI.
func Init() {
	level := slog.LevelError

	l := os.Getenv("GATHER_LOG")
	if l == "" {
		l = os.Getenv("LOG_LEVEL")
	}
	if l != "" {
		switch strings.ToLower(l) {
		case "dev", "development", "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error", "production", "prod":
			level = slog.LevelError
		}
	}

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
}
