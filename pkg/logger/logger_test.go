package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" info ":  zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "warn", Output: &buf, Service: "orgadmin"})

	log.Info().Msg("dropped")
	log.Warn().Str("entity", "asset").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), buf.String())
	}

	var event map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if event["message"] != "kept" || event["entity"] != "asset" || event["service"] != "orgadmin" {
		t.Errorf("unexpected event %v", event)
	}
	if _, ok := event["time"]; !ok {
		t.Errorf("expected a timestamp")
	}
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Pretty: true, Output: &buf})
	log.Info().Msg("hello")

	if !strings.Contains(buf.String(), "hello") || strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected console output, got %q", buf.String())
	}
}
