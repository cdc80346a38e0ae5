package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		cfg     Config
		wantErr bool
	}{
		{Config{}, false},
		{Config{Level: "debug", Format: "json"}, false},
		{Config{Level: "WARN", Format: "Console"}, false},
		{Config{Level: "loud"}, true},
		{Config{Format: "xml"}, true},
	}
	for _, tt := range tests {
		err := tt.cfg.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
		}
	}
}

func TestNew_DefaultsToWarn(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf, Format: FormatJSON})

	if log.GetLevel() != zerolog.WarnLevel {
		t.Errorf("expected warn level, got %s", log.GetLevel())
	}
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("expected warn message in output")
	}
}

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: FormatJSON, Output: &buf})
	log.Debug().Str("row", "row-1").Msg("generation started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if entry["row"] != "row-1" || entry["message"] != "generation started" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "error", Output: &buf, NoColor: true})
	log.Error().Str("row", "row-2").Msg("generation failed")

	out := buf.String()
	if !strings.Contains(out, "generation failed") || !strings.Contains(out, "row=row-2") {
		t.Errorf("unexpected console output: %q", out)
	}
}
