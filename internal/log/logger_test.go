package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func reset() {
	logger = nil
	once = *new(sync.Once)
}

func TestSetupWritesJSON(t *testing.T) {
	reset()
	t.Cleanup(reset)

	var buf bytes.Buffer
	Setup("DEBUG", "json", &buf)
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}

	Debug("decoded", "chunks", 3)

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if out["msg"] != "decoded" {
		t.Errorf("Expected msg 'decoded', got %v", out["msg"])
	}
	if out["chunks"] != float64(3) {
		t.Errorf("Expected chunks 3, got %v", out["chunks"])
	}
}

func TestSetupTextFormat(t *testing.T) {
	reset()
	t.Cleanup(reset)

	var buf bytes.Buffer
	Setup("info", "TEXT", &buf)
	Info("launched", "pid", 42)

	line := buf.String()
	if !strings.Contains(line, "msg=launched") || !strings.Contains(line, "pid=42") {
		t.Errorf("Expected text record, got %q", line)
	}
}

func TestSetupHonoursLevel(t *testing.T) {
	reset()
	t.Cleanup(reset)

	var buf bytes.Buffer
	Setup("warn", "json", &buf)
	Info("hidden")
	Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("Expected no output below WARN, got %q", buf.String())
	}
	Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("Expected warn record, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, nil)
	logger = slog.New(h)
	t.Cleanup(reset)

	l2 := WithComponent("launcher")
	l2.Info("hello")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}

	if out["component"] != "launcher" {
		t.Errorf("Expected component 'launcher', got %v", out["component"])
	}
	if out["msg"] != "hello" {
		t.Errorf("Expected msg 'hello', got %v", out["msg"])
	}
}

func TestWithRun(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, nil)
	logger = slog.New(h)
	t.Cleanup(reset)

	WithRun("run-123").Info("run msg")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}

	if out["run_id"] != "run-123" {
		t.Errorf("Expected run_id 'run-123', got %v", out["run_id"])
	}
}
