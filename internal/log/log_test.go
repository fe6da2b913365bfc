package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tc := range tests {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "info", "json")
	l.Info("tick", "seq", 7)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "tick" {
		t.Errorf("msg = %v, want tick", entry["msg"])
	}
	if entry["seq"] != float64(7) {
		t.Errorf("seq = %v, want 7", entry["seq"])
	}
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "warn", "text")
	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn line should be logged")
	}
}

func TestComponent(t *testing.T) {
	if Component("pipeline") == nil {
		t.Fatal("Component returned nil")
	}
}
