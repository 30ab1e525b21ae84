package observability

import (
	"io"
	"log/slog"
	"strings"

	"github.com/IshaanNene/TableScout/internal/config"
)

// ParseLevel maps a configured level name to a slog level. Unknown names
// mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger. verbose forces debug level.
func NewLogger(w io.Writer, cfg config.LoggingConfig, verbose bool) *slog.Logger {
	level := ParseLevel(cfg.Level)
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
