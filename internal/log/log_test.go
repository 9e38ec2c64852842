package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseLevel(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "JSON")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Level != slog.LevelDebug || cfg.Format != "json" {
		t.Fatalf("cfg = %+v", cfg)
	}

	t.Setenv("LOG_FORMAT", "xml")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLoggerComponentAndRequest(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf}).WithComponent(ComponentReport)
	if l.Component() != ComponentReport {
		t.Fatalf("component = %q", l.Component())
	}

	ctx := context.WithValue(context.Background(), RequestIDContextKey, "req_1")
	l.WithRequest(ctx).InfoContext(ctx, "hello", FieldFileKey, "a~b.xlsx")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("lines = %d", len(lines))
	}
	got := lines[0]
	if got[FieldComponent] != ComponentReport || got[FieldRequestID] != "req_1" || got[FieldFileKey] != "a~b.xlsx" {
		t.Fatalf("record = %v", got)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))
	ctx := context.Background()

	sl.LogHTTPEnd(ctx, httptest.NewRequest("GET", "/api/rates?refresh=true", nil), 503, 25*time.Millisecond, "10.0.0.1")
	sl.LogReportGenerated(ctx, "b", "e", "Projects", 12, 1, time.Second)
	sl.LogClassificationSaved(ctx, "b", "ana", 24)
	sl.LogError(ctx, "save failed", errors.New("disk full"), ErrorTypeDatabase, OpUpdate, nil)

	lines := decodeLines(t, &buf)
	if len(lines) != 4 {
		t.Fatalf("lines = %d", len(lines))
	}
	if lines[0]["level"] != "ERROR" || lines[0][FieldStatusCode] != float64(503) || lines[0][FieldSuccess] != false {
		t.Fatalf("http record = %v", lines[0])
	}
	if lines[1][FieldRows] != float64(12) || lines[1][FieldFilter] != "Projects" {
		t.Fatalf("report record = %v", lines[1])
	}
	if lines[2][FieldEntries] != float64(24) || lines[2][FieldActor] != "ana" {
		t.Fatalf("classification record = %v", lines[2])
	}
	if lines[3][FieldError] != "disk full" || lines[3][FieldErrorType] != ErrorTypeDatabase {
		t.Fatalf("error record = %v", lines[3])
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatal("missing logger should fall back to the default")
	}
	l := New(DefaultConfig())
	ctx := context.WithValue(context.Background(), LoggerContextKey, l)
	if FromContext(ctx) != l {
		t.Fatal("logger from context not returned")
	}
}
