package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	config := LoggerConfig{
		Level:     LevelInfo,
		Format:    "json",
		Output:    &buf,
		Component: "fetch",
	}

	logger := NewLogger(config)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("expected log output to contain 'test message', got: %s", output)
	}
	if !strings.Contains(output, "fetch") {
		t.Errorf("expected log output to contain component name, got: %s", output)
	}
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		if got := test.level.String(); got != test.expected {
			t.Errorf("LogLevel(%d).String() = %s, want %s", test.level, got, test.expected)
		}
	}
}

func TestNewDefaultLogger(t *testing.T) {
	logger := NewDefaultLogger()
	if logger == nil {
		t.Fatal("NewDefaultLogger returned nil")
	}
	logger.Info("test message")
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LevelInfo, Format: "json", Output: &buf})

	logger.Info("test json message", "key", "value")

	var jsonData map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &jsonData); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, buf.String())
	}
	if jsonData["msg"] != "test json message" {
		t.Errorf("expected message 'test json message', got: %v", jsonData["msg"])
	}
	if jsonData["key"] != "value" {
		t.Errorf("expected key 'value', got: %v", jsonData["key"])
	}
}

func TestLogger_WithMethods(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LevelInfo, Format: "json", Output: &buf})

	logger.WithFile("ea_20230101.xml").Info("file test")
	if output := buf.String(); !strings.Contains(output, "ea_20230101.xml") {
		t.Errorf("expected filename in output, got: %s", output)
	}
	buf.Reset()

	logger.WithRegion("EA").Info("region test")
	if output := buf.String(); !strings.Contains(output, "EA") {
		t.Errorf("expected region in output, got: %s", output)
	}
	buf.Reset()

	logger.WithError(errors.New("boom")).Info("error test")
	if output := buf.String(); !strings.Contains(output, "boom") {
		t.Errorf("expected error message in output, got: %s", output)
	}
	buf.Reset()

	logger.WithDuration("convert", 150*time.Millisecond).Info("duration test")
	if output := buf.String(); !strings.Contains(output, "150") {
		t.Errorf("expected duration in output, got: %s", output)
	}
}

func TestLogger_StageLifecycle(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.StageStart("convert")
	if output := buf.String(); !strings.Contains(output, "stage starting") {
		t.Errorf("expected stage start message, got: %s", output)
	}
	buf.Reset()

	logger.StageComplete("convert", 2*time.Second, 42)
	if output := buf.String(); !strings.Contains(output, "\"documents_processed\":42") {
		t.Errorf("expected document count in output, got: %s", output)
	}
	buf.Reset()

	logger.DocumentSkipped("ea_20230101.xml", "expired")
	if output := buf.String(); !strings.Contains(output, "document skipped") {
		t.Errorf("expected skip message, got: %s", output)
	}
	buf.Reset()

	logger.DocumentFailed("ea_20230101.xml", errors.New("bad schema"))
	if output := buf.String(); !strings.Contains(output, "bad schema") {
		t.Errorf("expected failure message, got: %s", output)
	}
}

func TestLogger_IsLevelEnabled(t *testing.T) {
	logger := NewLogger(LoggerConfig{Level: LevelWarn})

	if !logger.IsLevelEnabled(LevelError) {
		t.Error("expected ERROR level to be enabled for WARN logger")
	}
	if !logger.IsLevelEnabled(LevelWarn) {
		t.Error("expected WARN level to be enabled for WARN logger")
	}
	if logger.IsLevelEnabled(LevelInfo) {
		t.Error("expected INFO level to be disabled for WARN logger")
	}
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	originalLogger := defaultLogger
	defer func() { defaultLogger = originalLogger }()

	testLogger := NewLogger(LoggerConfig{Level: LevelInfo, Format: "json", Output: &buf})
	SetDefaultLogger(testLogger)

	if GetDefaultLogger() != testLogger {
		t.Error("GetDefaultLogger did not return the expected logger")
	}

	Info("test info", "key", "value")
	if output := buf.String(); !strings.Contains(output, "test info") {
		t.Errorf("expected global Info to work, got: %s", output)
	}
	buf.Reset()

	Warn("test warning")
	if output := buf.String(); !strings.Contains(output, "test warning") {
		t.Errorf("expected global Warn to work, got: %s", output)
	}
	buf.Reset()

	Error("test error")
	if output := buf.String(); !strings.Contains(output, "test error") {
		t.Errorf("expected global Error to work, got: %s", output)
	}
}
