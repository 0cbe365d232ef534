package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const serviceName = "firmscope"

// NewJSONLogger builds the process-wide logger for a firmscope role
// (api or worker). Output is one JSON object per line on stdout with
// constant service and role attributes so both binaries produce a
// uniform stream for the log shipper.
func NewJSONLogger(role, level string) *slog.Logger {
	return newLogger(os.Stdout, role, level)
}

func newLogger(w io.Writer, role, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler).With("service", serviceName, "role", role)
}

// ParseLevel maps the LOG_LEVEL setting onto a slog level. Unrecognized
// values fall back to info rather than failing startup.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
