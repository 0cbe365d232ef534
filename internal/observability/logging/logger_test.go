package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"  DEBUG ", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tc := range cases {
		if got := ParseLevel(tc.input); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestLoggerAttachesServiceAndRole(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "worker", "info")

	logger.Info("ingest_started", "source_id", "kingsley-napley")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["service"] != serviceName {
		t.Errorf("service = %v, want %q", entry["service"], serviceName)
	}
	if entry["role"] != "worker" {
		t.Errorf("role = %v, want worker", entry["role"])
	}
	if entry["source_id"] != "kingsley-napley" {
		t.Errorf("source_id = %v, want kingsley-napley", entry["source_id"])
	}
}

func TestLoggerFiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "api", "warn")

	logger.Info("dropped")
	logger.Warn("kept")

	output := buf.String()
	if strings.Contains(output, "dropped") {
		t.Error("info entry emitted despite warn level")
	}
	if !strings.Contains(output, "kept") {
		t.Error("warn entry missing")
	}
}
