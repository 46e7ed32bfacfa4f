package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestDefaultLoggerIsSilent(t *testing.T) {
	if Logger().Enabled(t.Context(), slog.LevelError) {
		t.Error("default logger should be disabled")
	}
}

func TestSetLogger(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	var buf bytes.Buffer
	SetLogger(NewText(&buf, slog.LevelWarn))
	Logger().Info("hidden")
	Logger().Warn("block re-registered", "block", "fog")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info leaked: %q", out)
	}
	if !strings.Contains(out, "block=fog") {
		t.Errorf("missing warn record: %q", out)
	}

	SetLogger(nil)
	if Logger().Enabled(t.Context(), slog.LevelError) {
		t.Error("SetLogger(nil) should restore the nop logger")
	}
}

func TestOr(t *testing.T) {
	own := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if Or(own) != own {
		t.Error("Or should prefer the explicit logger")
	}
	if Or(nil) != Logger() {
		t.Error("Or(nil) should return the shared logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		level  slog.Level
		silent bool
		err    bool
	}{
		{"off", 0, true, false},
		{"debug", slog.LevelDebug, false, false},
		{"WARN", slog.LevelWarn, false, false},
		{"error", slog.LevelError, false, false},
		{"loud", 0, false, true},
	}
	for _, tt := range tests {
		level, silent, err := ParseLevel(tt.in)
		if (err != nil) != tt.err || level != tt.level || silent != tt.silent {
			t.Errorf("ParseLevel(%q) = %v,%v,%v", tt.in, level, silent, err)
		}
	}
}
