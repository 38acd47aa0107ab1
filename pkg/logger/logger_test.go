package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	for _, format := range []string{"text", "json", ""} {
		if err := InitWithFormat(format); err != nil {
			t.Fatalf("failed to initialize %q logger: %v", format, err)
		}
		if Get() == nil {
			t.Fatalf("logger is nil after %q initialization", format)
		}
	}
	if err := InitWithFormat("xml"); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
	if err := Sync(); err != nil {
		t.Errorf("failed to sync logger: %v", err)
	}
}

func TestLoggerJSON(t *testing.T) {
	if err := SetLevelString("info"); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	l, err := New(&buf, "json")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	l.Named("session").Info(context.Background(), "round committed",
		String("session_id", "s1"), Int("round", 2), Float64("rating", 6.4))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not json: %v: %s", err, buf.String())
	}
	if line["msg"] != "round committed" {
		t.Errorf("unexpected msg: %v", line["msg"])
	}
	group, ok := line["session"].(map[string]any)
	if !ok {
		t.Fatalf("expected fields under the session group, got %v", line)
	}
	if group["round"] != float64(2) {
		t.Errorf("unexpected round: %v", group["round"])
	}
	if _, ok := group["source"]; !ok {
		t.Error("expected source field")
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "text")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = SetLevelString("info") }()

	if err := SetLevelString("WARN"); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	l.Info(ctx, "hidden")
	l.Warn(ctx, "shown", Error(context.Canceled))
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line leaked at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "context canceled") {
		t.Errorf("warn line missing: %s", out)
	}
	if err := SetLevelString("loud"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	ctx := context.Background()
	l.Info(ctx, "nothing", Any("k", 1))
	l.Named("x").Error(ctx, "still nothing")
}

func TestLoggerNamed(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	namedLogger := Named("test")
	if namedLogger == nil {
		t.Fatal("named logger is nil")
	}
	namedLogger.Debug(context.Background(), "test message")
}
