package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("run_id", "r1")).Info(context.Background(), "tick complete",
		Int("tick", 3),
		Float64("infected_percent", 12.5),
		Err(errors.New("boom")),
	)

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if got["msg"] != "tick complete" {
		t.Fatalf("msg = %v, want tick complete", got["msg"])
	}
	if got["run_id"] != "r1" {
		t.Fatalf("run_id = %v, want r1", got["run_id"])
	}
	if got["tick"] != float64(3) {
		t.Fatalf("tick = %v, want 3", got["tick"])
	}
	if got["error"] != "boom" {
		t.Fatalf("error = %v, want boom", got["error"])
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})
	log.Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %q", buf.String())
	}
	log.Warn(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn line missing: %q", buf.String())
	}
}

func TestWithRunLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf})

	ctx, log := WithRunLogger(context.Background(), base, "run-42")
	if got := RunIDFromContext(ctx); got != "run-42" {
		t.Fatalf("RunIDFromContext = %q, want run-42", got)
	}
	log.Info(ctx, "hello")
	if !strings.Contains(buf.String(), `"run_id":"run-42"`) {
		t.Fatalf("run_id missing from %q", buf.String())
	}
}
