package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestInfoWritesKeyValues(t *testing.T) {
	buf := captureOutput(t)
	Info("task created", "id", "7", "title", "Buy milk")

	line := buf.String()
	if !strings.Contains(line, "[INFO] task created") {
		t.Fatalf("missing level or message: %q", line)
	}
	if !strings.Contains(line, "id=7") || !strings.Contains(line, `title="Buy milk"`) {
		t.Fatalf("missing key values: %q", line)
	}
}

func TestErrorPrependsErr(t *testing.T) {
	buf := captureOutput(t)
	Error("move failed", errors.New("boom"), "id", "7")
	if !strings.Contains(buf.String(), "[ERROR] move failed err=boom id=7") {
		t.Fatalf("unexpected error line: %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t)
	Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered at info level: %q", buf.String())
	}
	SetLevel(LevelError)
	Info("hidden too")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at error level: %q", buf.String())
	}
	SetLevel(LevelDebug)
	Debug("shown")
	if !strings.Contains(buf.String(), "[DEBUG] shown") {
		t.Fatalf("expected debug line: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if l, ok := ParseLevel(" debug "); !ok || l != LevelDebug {
		t.Fatalf("unexpected parse: %v %v", l, ok)
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatal("expected unknown level to fail")
	}
}
