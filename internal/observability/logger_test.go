package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewLoggerTo_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown", "identifier", "alice@altlinux.org")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message logged at warn level")
	}
	if !strings.Contains(out, `"identifier":"alice@altlinux.org"`) {
		t.Errorf("expected key/value attribute in output, got %s", out)
	}
}

func TestNewLoggerTo_UsesUTC(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerTo(&buf, "info").Info("test message")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}

	ts, ok := entry["time"].(string)
	if !ok {
		t.Fatalf("time attribute missing: %v", entry)
	}
	// RFC3339 in UTC ends with 'Z'
	if !strings.HasSuffix(ts, "Z") {
		t.Errorf("expected UTC timestamp, got %s", ts)
	}
}
