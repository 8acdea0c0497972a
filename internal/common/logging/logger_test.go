package logging

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level LogLevel) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: level, Output: &buf})
	require.NoError(t, err)
	return logger, &buf
}

func TestZapLoggerLevels(t *testing.T) {
	logger, buf := newBufferLogger(t, WarnLevel)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message", fmt.Errorf("boom"))

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
	assert.Contains(t, out, "boom")
}

func TestZapLoggerFields(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel)

	logger.Info("request rejected",
		String("provider", "stripe"),
		Int("limit", 2),
		Bool("rate_limited", true),
	)

	out := buf.String()
	assert.Contains(t, out, "stripe")
	assert.Contains(t, out, "rate_limited")
}

func TestZapLoggerWithFields(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel)

	scoped := logger.WithFields(String("provider", "twilio"))
	scoped.Info("validated")

	assert.Contains(t, buf.String(), "twilio")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, InfoLevel, ParseLevel("unknown"))
}
