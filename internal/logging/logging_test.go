package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestLoggerWritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "debug", Format: "json", Output: &buf})

	ctx := WithRequestID(context.Background(), "req-1")
	logger.With(slog.String("component", "api")).WithGroup("review").
		InfoContext(ctx, "Review created", slog.Int64("id", 42))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"level":      "info",
		"message":    "Review created",
		"request_id": "req-1",
		"component":  "api",
		"review.id":  float64(42),
	}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("%s = %v, want %v", k, rec[k], v)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Output: &buf})

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info record written at warn level: %q", buf.String())
	}
	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Fatalf("warn record not written")
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if got := ParseLevel("bogus").String(); got != "info" {
		t.Fatalf("ParseLevel(bogus) = %s", got)
	}
	if got := ParseLevel(" DEBUG ").String(); got != "debug" {
		t.Fatalf("ParseLevel(DEBUG) = %s", got)
	}
}
