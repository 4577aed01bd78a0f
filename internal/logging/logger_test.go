package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&consoleHandler{writer: &buf, level: slog.LevelInfo})

	logger.With("component", "importer").Info("manifest parsed", "source", "instagram", "records", 66)

	line := buf.String()
	if !strings.Contains(line, "INFO importer: manifest parsed") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "source=instagram") || !strings.Contains(line, "records=66") {
		t.Fatalf("expected attrs in line: %q", line)
	}
}

func TestConsoleHandlerQuotesValues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&consoleHandler{writer: &buf, level: slog.LevelInfo})

	logger.Warn("media unresolved", "reason", "no such file")

	if !strings.Contains(buf.String(), `reason="no such file"`) {
		t.Fatalf("expected quoted value: %q", buf.String())
	}
}

func TestConsoleHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	handler := &consoleHandler{writer: &buf, level: slog.LevelWarn}
	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be filtered at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("error should pass at warn level")
	}
}

func TestConsoleHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&consoleHandler{writer: &buf, level: slog.LevelDebug})

	logger.WithGroup("geo").Debug("cache hit", "bucket", "60.1699,24.9384")

	if !strings.Contains(buf.String(), "geo.bucket=") {
		t.Fatalf("expected group-prefixed key: %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("debug") != slog.LevelDebug {
		t.Fatal("debug level")
	}
	if parseLevel("nonsense") != slog.LevelInfo {
		t.Fatal("unknown level should default to info")
	}
}
