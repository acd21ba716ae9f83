package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "nil config falls back to default", config: nil},
		{
			name: "explicit debug level",
			config: &Config{
				Level:  LevelDebug,
				Output: &bytes.Buffer{},
			},
		},
		{
			name: "explicit error level",
			config: &Config{
				Level:  LevelError,
				Output: &bytes.Buffer{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			if logger == nil {
				t.Fatal("NewLogger() returned nil")
			}
			if logger.core == nil {
				t.Error("NewLogger() left core uninitialized")
			}
		})
	}
}

func TestLoggerLevelGating(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("set 3 miss")
	logger.Info("partition reconfigured")
	if buf.Len() != 0 {
		t.Errorf("expected debug/info suppressed below LevelWarn, got: %s", buf.String())
	}

	logger.Warn("wq full")
	if !strings.Contains(buf.String(), "wq full") {
		t.Errorf("expected warn message to pass the gate, got: %s", buf.String())
	}
}

func TestLoggerWithCycle(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	cycleLogger := logger.WithCycle(5_000_000)
	cycleLogger.Info("partition reconfigured")

	output := buf.String()
	if !strings.Contains(output, "cycle=5000000") {
		t.Errorf("expected cycle=5000000 in output, got: %s", output)
	}
}

func TestLoggerWithCacheAndCPU(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	cacheLogger := logger.WithCache("LLC")
	buf.Reset()
	cpuLogger := cacheLogger.WithCPU(2)
	cpuLogger.Debug("mshr full, stalling")

	output := buf.String()
	if !strings.Contains(output, "cache=LLC") {
		t.Errorf("expected cache=LLC in output, got: %s", output)
	}
	if !strings.Contains(output, "cpu=2") {
		t.Errorf("expected cpu=2 in output, got: %s", output)
	}

	// Deriving cpuLogger from cacheLogger must not mutate cacheLogger itself.
	buf.Reset()
	cacheLogger.Debug("set sampled for atd")
	if strings.Contains(buf.String(), "cpu=2") {
		t.Errorf("WithCPU leaked into its parent logger's fields: %s", buf.String())
	}
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	testErr := errors.New("no mshr entry for address")
	errorLogger := logger.WithError(testErr)
	errorLogger.Error("return_data violation")

	output := buf.String()
	if !strings.Contains(output, "no mshr entry for address") {
		t.Errorf("expected wrapped error text in output, got: %s", output)
	}
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))

	Debug("debug message", "key", "value")
	output := buf.String()
	if !strings.Contains(output, "debug message") {
		t.Errorf("Expected debug message, got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("Expected key=value, got: %s", output)
	}

	buf.Reset()
	Info("info message")
	if !strings.Contains(buf.String(), "info message") {
		t.Errorf("Expected info message, got: %s", buf.String())
	}

	buf.Reset()
	Warn("warning message")
	if !strings.Contains(buf.String(), "warning message") {
		t.Errorf("Expected warning message, got: %s", buf.String())
	}

	buf.Reset()
	Error("error message")
	if !strings.Contains(buf.String(), "error message") {
		t.Errorf("Expected error message, got: %s", buf.String())
	}
}
