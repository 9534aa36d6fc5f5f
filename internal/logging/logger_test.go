package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":       zerolog.InfoLevel,
		"debug":  zerolog.DebugLevel,
		" WARN ": zerolog.WarnLevel,
		"trace":  zerolog.TraceLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, zerolog.InfoLevel)
	logger.Debug().Msg("hidden")
	logger.Info().Str("task_id", "task-1").Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line must be filtered: %s", out)
	}
	if !strings.Contains(out, `"task_id":"task-1"`) || !strings.Contains(out, `"timestamp"`) {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestOpenFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cloudtasks.log")
	for _, msg := range []string{"first", "second"} {
		logger, closer, err := OpenFile(path, "debug")
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		logger.Debug().Msg(msg)
		_ = closer.Close()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), "first") || !strings.Contains(string(raw), "second") {
		t.Fatalf("expected both lines, got %s", raw)
	}
}
