package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
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
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithFormat(FormatJSON), WithWriter(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()

	Get().Info(context.Background(), "assessment stored",
		String("assessment_id", "abc"),
		Int64("user_id", 12345),
		Error(errors.New("boom")),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "assessment stored" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["assessment_id"] != "abc" {
		t.Errorf("missing assessment_id field: %v", entry)
	}
	src, _ := entry["source"].(string)
	if !strings.Contains(src, "logger_test.go") {
		t.Errorf("source should point at the caller, got %q", src)
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()

	ctx := context.Background()
	Get().Debug(ctx, "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered at info level, got %q", buf.String())
	}

	if err := SetLevelString("DEBUG"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Get().Debug(ctx, "visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("debug should be written after SetLevelString, got %q", buf.String())
	}

	if err := SetLevelString("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestLoggerNamed(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()

	Named("worker-pool").Info(context.Background(), "started")
	if !strings.Contains(buf.String(), "logger=worker-pool") {
		t.Fatalf("named logger should tag entries, got %q", buf.String())
	}
}
