package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// useBuffer installs a JSON default logger writing to a buffer for the duration of the test
func useBuffer(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	prev := Default
	t.Cleanup(func() { SetDefault(prev) })
	var buf bytes.Buffer
	SetDefault(New(level, &buf))
	return &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWithFormat(t *testing.T) {
	tests := []struct {
		format string
		check  func(string) bool
	}{
		{"json", func(out string) bool { return strings.HasPrefix(out, "{") }},
		{"JSON", func(out string) bool { return strings.HasPrefix(out, "{") }},
		{"text", func(out string) bool { return strings.Contains(out, "msg=\"map built\"") }},
		{"", func(out string) bool { return strings.HasPrefix(out, "{") }},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			NewWithFormat("info", tt.format, &buf).Info("map built")
			if !tt.check(buf.String()) {
				t.Errorf("unexpected %q output: %s", tt.format, buf.String())
			}
		})
	}
}

func TestPackageHelpersRespectLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		log     func(string, ...any)
		written bool
	}{
		{"debug at debug", "debug", Debug, true},
		{"debug at info", "info", Debug, false},
		{"info at warn", "warn", Info, false},
		{"warn at warn", "warn", Warn, true},
		{"error at error", "error", Error, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := useBuffer(t, tt.level)
			tt.log("dangling reference")
			if got := strings.Contains(buf.String(), "dangling reference"); got != tt.written {
				t.Errorf("written = %v, want %v (output %q)", got, tt.written, buf.String())
			}
		})
	}
}

func TestStructuredAttributes(t *testing.T) {
	buf := useBuffer(t, "info")

	Info("partial data", "application", "api", "instances", 3)

	entry := decode(t, buf)
	if entry["msg"] != "partial data" {
		t.Errorf("Expected msg 'partial data', got '%v'", entry["msg"])
	}
	if entry["application"] != "api" {
		t.Errorf("Expected application 'api', got '%v'", entry["application"])
	}
	if entry["instances"] != float64(3) {
		t.Errorf("Expected instances 3, got '%v'", entry["instances"])
	}
}

func TestWithAndComponent(t *testing.T) {
	buf := useBuffer(t, "info")

	Component("topology").With("window", "[a, b)").Info("build started")

	entry := decode(t, buf)
	if entry["component"] != "topology" {
		t.Errorf("Expected component 'topology', got '%v'", entry["component"])
	}
	if entry["window"] != "[a, b)" {
		t.Errorf("Expected window attribute, got '%v'", entry["window"])
	}

	buf.Reset()
	With("request_id", "req-1").Warn("map build failed")
	if entry := decode(t, buf); entry["request_id"] != "req-1" || entry["level"] != "WARN" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestSetDefaultAlsoSetsSlogDefault(t *testing.T) {
	buf := useBuffer(t, "debug")

	slog.Debug("through slog")
	if !strings.Contains(buf.String(), "through slog") {
		t.Errorf("Expected slog.Default to write to the installed logger, got %q", buf.String())
	}
}
