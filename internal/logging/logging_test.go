package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Debug(context.Background(), "hidden")
	log.With(String("project", "depot")).Info(context.Background(), "exported",
		Int("pages", 3), Err(errors.New("boom")))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (debug filtered), got %d", len(lines))
	}
	got := lines[0]
	if got["msg"] != "exported" || got["project"] != "depot" || got["pages"] != float64(3) || got["error"] != "boom" {
		t.Errorf("unexpected log line %v", got)
	}
}

func TestTextLoggerDefault(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Output: &buf}).Warn(context.Background(), "careful", String("k", "v"))
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "k=v") {
		t.Errorf("unexpected text output %q", buf.String())
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv(EnvLevel, "debug")
	t.Setenv(EnvFormat, "json")

	var buf bytes.Buffer
	NewFromEnv(Config{Level: "error", Format: "text", Output: &buf}).Debug(context.Background(), "visible")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["msg"] != "visible" {
		t.Errorf("env override not applied: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "DEBUG",
		"WARNING": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"bogus":   "INFO",
	}
	for in, want := range tests {
		if got := parseLevel(in).Level().String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf})

	ctx, log := WithRequestLogger(context.Background(), base)
	id := RequestIDFromContext(ctx)
	if id == "" {
		t.Fatal("expected request id")
	}
	if again, _ := EnsureRequestID(ctx); RequestIDFromContext(again) != id {
		t.Error("EnsureRequestID should keep an existing id")
	}

	FromContext(ctx, Noop()).Info(ctx, "handled")
	log.Info(ctx, "direct")
	for _, line := range decodeLines(t, &buf) {
		if line["request_id"] != id {
			t.Errorf("expected request_id %s, got %v", id, line["request_id"])
		}
	}
}

func TestFromContextFallback(t *testing.T) {
	if _, ok := FromContext(context.Background(), nil).(noopLogger); !ok {
		t.Error("expected noop fallback")
	}
	var buf bytes.Buffer
	fallback := New(Config{Output: &buf})
	if FromContext(context.Background(), fallback) != fallback {
		t.Error("expected provided fallback")
	}
}
