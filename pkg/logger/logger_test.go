package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
	if err := InitWith(Options{Format: "xml"}); err == nil {
		t.Error("expected unknown format to fail")
	}
}

func TestLoggerJSONFields(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWith(Options{Format: "json", Output: &buf}); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()

	ctx := WithRequestID(context.Background(), "req-123")
	Named("recommend").Info(ctx, "ranked", Int("candidates", 7), Bool("cached", true))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "ranked" {
		t.Errorf("unexpected msg %v", line["msg"])
	}
	if line["component"] != "recommend" {
		t.Errorf("unexpected component %v", line["component"])
	}
	if line["request_id"] != "req-123" {
		t.Errorf("unexpected request id %v", line["request_id"])
	}
	if line["candidates"] != float64(7) {
		t.Errorf("unexpected candidates %v", line["candidates"])
	}
	if src, _ := line["source"].(string); !strings.Contains(src, "logger_test.go") {
		t.Errorf("expected source to point at the caller, got %q", src)
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWith(Options{Output: &buf}); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		_ = SetLevelString("info")
		_ = Init()
	}()

	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Get().Info(context.Background(), "hidden")
	Get().Warn(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("level filter not applied: %q", out)
	}
	if err := SetLevelString("loud"); err == nil {
		t.Error("expected unknown level to fail")
	}
}
