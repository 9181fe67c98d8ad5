package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestCompactHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.Info("graph built", "nodes", 3, "email", "alice@example.com", "label", "two words")

	line := buf.String()
	if !strings.HasPrefix(line, "[INFO]  ") {
		t.Errorf("Expected INFO prefix, got %q", line)
	}
	for _, want := range []string{"graph built |", "nodes=3", "email=a***@example.com", `label="two words"`} {
		if !strings.Contains(line, want) {
			t.Errorf("Expected %q in %q", want, line)
		}
	}
}

func TestCompactHandler_ShortensIDsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, nil)).WithGroup("drag")

	log.Info("node moved", "session", "6f1c2d3e-aaaa-bbbb-cccc-1234567890ab", "x", 1.5)

	line := buf.String()
	for _, want := range []string{"node moved | drag.session=6f1c2d3e", "drag.x=1.5"} {
		if !strings.Contains(line, want) {
			t.Errorf("Expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "aaaa") {
		t.Errorf("Expected the session id to be shortened, got %q", line)
	}
}

func TestMaskEmail(t *testing.T) {
	tests := map[string]string{
		"alice@example.com": "a***@example.com",
		"b@x.org":           "b***@x.org",
		"not-an-email":      "***",
		"@example.com":      "***",
		"":                  "***",
	}
	for in, want := range tests {
		if got := MaskEmail(in); got != want {
			t.Errorf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCompactHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewCompactHandler(&buf, nil)
	log := slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "layout"), slog.Int("session", 7)}))

	log.Warn("relax cancelled")

	line := buf.String()
	if !strings.Contains(line, "layout: relax cancelled") {
		t.Errorf("Expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "session=7") {
		t.Errorf("Expected accumulated attribute, got %q", line)
	}
}

func TestCompactHandler_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected debug to be filtered, got %q", buf.String())
	}

	log.Log(context.Background(), LevelTrace, "also hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected trace to be filtered, got %q", buf.String())
	}
}

func TestNew_FollowsLevelChanges(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, slog.LevelInfo)
	defer SetOutput(&bytes.Buffer{}, slog.LevelInfo)

	log := New("breach")
	log.Debug("before")
	if buf.Len() != 0 {
		t.Fatalf("Expected nothing at info level, got %q", buf.String())
	}

	SetLevel(slog.LevelDebug)
	log.DebugContext(WithRequestID(context.Background(), "0123456789abcdef"), "after")

	line := buf.String()
	if !strings.Contains(line, "breach: after") {
		t.Errorf("Expected component logger output, got %q", line)
	}
	if !strings.Contains(line, "req=01234567") {
		t.Errorf("Expected shortened request id, got %q", line)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  slog.Level
	}{
		{"", 0, slog.LevelInfo},
		{"", 1, slog.LevelDebug},
		{"", 3, LevelTrace},
		{"warn", 0, slog.LevelWarn},
		{"ERROR", 2, slog.LevelError},
		{"trace", 0, LevelTrace},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.name, tt.count); got != tt.want {
			t.Errorf("ParseLevel(%q, %d) = %v, want %v", tt.name, tt.count, got, tt.want)
		}
	}
}
