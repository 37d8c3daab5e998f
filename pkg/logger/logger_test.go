package logger

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wonny/rotor/pkg/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewIncludesEnvField(t *testing.T) {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "debug",
		LogFormat: "json",
	}

	log := New(cfg)
	if log == nil {
		t.Fatal("New() returned nil")
	}
}

func TestWithFieldsProducesJSON(t *testing.T) {
	var buf strings.Builder
	zlog := zerolog.New(&buf).With().Timestamp().Logger()
	log := &Logger{zlog: zlog}

	log.WithFields(map[string]interface{}{
		"ticker": "AAPL",
		"rank":   3,
	}).Info("Ranked entry")

	var record map[string]interface{}
	if err := json.Unmarshal([]byte(buf.String()), &record); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}

	if record["ticker"] != "AAPL" {
		t.Errorf("Expected ticker field AAPL, got %v", record["ticker"])
	}
	if record["message"] != "Ranked entry" {
		t.Errorf("Expected message 'Ranked entry', got %v", record["message"])
	}
}

func TestWithErrorAttachesError(t *testing.T) {
	var buf strings.Builder
	zlog := zerolog.New(&buf)
	log := &Logger{zlog: zlog}

	log.WithError(errTest).Error("Cycle failed")

	if !strings.Contains(buf.String(), "ranking feed down") {
		t.Errorf("Expected error text in output, got %s", buf.String())
	}
}

func TestNopDiscardsOutput(t *testing.T) {
	log := Nop()
	// Must not panic and must not write anywhere
	log.WithField("key", "value").Info("dropped")
	log.Errorf("dropped %d", 1)
}

var errTest = errFixed("ranking feed down")

type errFixed string

func (e errFixed) Error() string { return string(e) }
