package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestInitAndLogging(t *testing.T) {
	Init("debug", "json")

	if !L.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug level to be enabled")
	}

	Info("test info message", "key", "value")
}

func TestInitTextFormatDefaultsToInfo(t *testing.T) {
	Init("", "text")

	if L.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled at the default level")
	}
	if !L.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be enabled at the default level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%s) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
