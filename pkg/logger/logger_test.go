package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"flickrharvest/pkg/config"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level", cfg: &config.LoggingConfig{Level: "debug"}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "chatty"}, wantErr: true},
		{
			name: "file output in nested dir",
			cfg:  &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "harvest.log")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"chatty", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.WarnLevel)

	logger.Info("quiet")
	logger.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Error("Info message should be filtered at warn level")
	}
	if !strings.Contains(out, "loud") {
		t.Error("Warn message missing")
	}
	if !strings.Contains(out, `"app":"flickrharvest"`) {
		t.Error("App field missing")
	}
}

func TestFieldsAreInherited(t *testing.T) {
	var buf bytes.Buffer
	root := NewWithWriter(&buf, zerolog.DebugLevel)

	child := root.
		WithField("run_id", "abc").
		WithFields(map[string]interface{}{"page": 3, "bbox": "1,2,3,4"})
	child.Info("page fetched")

	out := buf.String()
	for _, want := range []string{`"run_id":"abc"`, `"page":3`, `"bbox":"1,2,3,4"`, "page fetched"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}

	buf.Reset()
	root.Info("bare")
	if strings.Contains(buf.String(), "run_id") {
		t.Error("child fields leaked into parent")
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.DebugLevel)

	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}

	logger.WithError(errors.New("bbox rejected")).Error("query failed")
	if !strings.Contains(buf.String(), "bbox rejected") {
		t.Error("Error text not found in output")
	}
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.DebugLevel)

	logger.InfoWithFields("typed", map[string]interface{}{
		"int64":    int64(456),
		"float":    0.5,
		"bool":     true,
		"time":     time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		"duration": 5 * time.Second,
		"strings":  []string{"a", "b"},
		"custom":   struct{ Name string }{Name: "test"},
	})

	out := buf.String()
	for _, want := range []string{`"int64":456`, `"float":0.5`, `"bool":true`, `"strings":["a","b"]`, `"Name":"test"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
}

func TestGlobalLogger(t *testing.T) {
	tl := NewTestLogger()
	SetLogger(tl)
	defer SetLogger(NewNopLogger())

	LogSplit(nil, "spatial", "0,0,1,1", 40)
	LogHarvestProgress(nil, 50, 200)
	WithField("k", "v").Warn("with field")

	if !tl.HasMessage("DEBUG", "Region subdivided") {
		t.Error("split message not captured")
	}
	progress := tl.GetMessagesByLevel("INFO")
	if len(progress) != 1 || progress[0].Fields["percentage"] != "25.0%" {
		t.Errorf("unexpected progress messages: %v", progress)
	}
	if !tl.HasMessage("WARN", "with field") {
		t.Error("warn message not captured")
	}
}

func TestHelpersUseGivenLogger(t *testing.T) {
	global := NewTestLogger()
	SetLogger(global)
	defer SetLogger(NewNopLogger())

	own := NewTestLogger()
	run := own.WithField("run_id", "run-7")
	LogComponentStart(run, "harvester", map[string]interface{}{"max_pages": 16})
	LogQuery(run, "0,0,1,1", 1, 3, 700, 12)
	LogSplit(run, "temporal", "0,0,1,1", 40)
	LogRateLimit(run, "flickr.photos.search", 30)
	LogHarvestProgress(run, 10, 40)
	LogComponentStop(run, "harvester", "finished")
	LogSplit(NewNopLogger(), "spatial", "0,0,1,1", 40)

	if n := len(global.GetMessages()); n != 0 {
		t.Errorf("expected nothing on the global logger, got %d messages", n)
	}
	msgs := own.GetMessages()
	if len(msgs) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(msgs))
	}
	for _, m := range msgs {
		if m.Fields["run_id"] != "run-7" {
			t.Errorf("%q lost the run_id field: %v", m.Message, m.Fields)
		}
	}
}

func TestTestLoggerSharesBuffer(t *testing.T) {
	tl := NewTestLogger()
	tl.WithError(errors.New("boom")).Error("failed")
	tl.Info("ok")

	if len(tl.GetMessages()) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(tl.GetMessages()))
	}
	if !tl.HasError() {
		t.Error("expected captured error")
	}
	if !strings.Contains(tl.String(), "error=boom") {
		t.Errorf("unexpected rendering: %s", tl.String())
	}

	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear should drop messages")
	}
}
