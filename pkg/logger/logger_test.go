package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest/observer"
)

func TestLogLevelFiltering(t *testing.T) {
	core, logs := observer.New(level)
	restore := useCore(core)
	defer restore()

	prev := GetLevel()
	defer SetLevel(prev)

	SetLevel(WARN)
	InfoC("test", "hidden")
	WarnC("test", "shown")

	if logs.Len() != 1 {
		t.Fatalf("log count = %d, want 1", logs.Len())
	}
	entry := logs.All()[0]
	if entry.Message != "shown" {
		t.Fatalf("message = %q, want %q", entry.Message, "shown")
	}
	if got := entry.ContextMap()["component"]; got != "test" {
		t.Fatalf("component = %v, want %q", got, "test")
	}
}

func TestLogFieldsAreAttached(t *testing.T) {
	core, logs := observer.New(level)
	restore := useCore(core)
	defer restore()

	prev := GetLevel()
	defer SetLevel(prev)
	SetLevel(DEBUG)

	DebugCF("cloudsign", "Reply dropped", map[string]interface{}{
		"reason": "sentinel",
		"length": 1,
	})

	entries := logs.FilterMessage("Reply dropped").All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["reason"] != "sentinel" {
		t.Fatalf("reason = %v, want sentinel", fields["reason"])
	}
	if fields["length"] != int64(1) {
		t.Fatalf("length = %v (%T), want 1", fields["length"], fields["length"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug": DEBUG,
		"":      INFO,
		"WARN":  WARN,
		"error": ERROR,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) error = %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestEnableFileLogging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cloudsign.log")
	if err := EnableFileLogging(path); err != nil {
		t.Fatalf("EnableFileLogging() error = %v", err)
	}
	defer DisableFileLogging()

	ErrorCF("test", "written to file", map[string]interface{}{"k": "v"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") || !strings.Contains(string(data), `"component":"test"`) {
		t.Fatalf("unexpected log file content: %s", data)
	}
}
