package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Formats(t *testing.T) {
	tests := []struct {
		name   string
		format string
		check  func(t *testing.T, out string)
	}{
		{"text", FormatText, func(t *testing.T, out string) {
			assert.Contains(t, out, "msg=\"deployed contract\"")
		}},
		{"json", FormatJSON, func(t *testing.T, out string) {
			var m map[string]any
			require.NoError(t, json.Unmarshal([]byte(out), &m))
			assert.Equal(t, "deployed contract", m["msg"])
			assert.Equal(t, "flow", m["network"])
		}},
		{"cli", FormatCLI, func(t *testing.T, out string) {
			assert.Contains(t, out, "deployed contract: network=flow")
			assert.Contains(t, out, colorGreen)
		}},
		{"unknown falls back to text", "xml", func(t *testing.T, out string) {
			assert.Contains(t, out, "level=INFO")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, tt.format, "info")
			require.NotNil(t, logger)
			logger.Info("deployed contract", "network", "flow")
			tt.check(t, buf.String())
		})
	}
}

func TestCLIHandler_InfoMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCLIHandler(&buf, slog.LevelInfo))

	logger.Info("test info message")

	output := buf.String()
	assert.Contains(t, output, "test info message")
	assert.NotContains(t, output, colorRed)
}

func TestCLIHandler_ErrorMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCLIHandler(&buf, slog.LevelInfo))

	logger.Error("test error message")

	output := buf.String()
	assert.Contains(t, output, "test error message")
	assert.Contains(t, output, colorRed)
	assert.Contains(t, output, colorReset)
}

func TestCLIHandler_LevelFiltering(t *testing.T) {
	tests := []struct {
		name         string
		handlerLevel slog.Level
		logFunc      func(*slog.Logger)
		shouldLog    bool
	}{
		{"info handler logs info", slog.LevelInfo, func(l *slog.Logger) { l.Info("test") }, true},
		{"info handler filters debug", slog.LevelInfo, func(l *slog.Logger) { l.Debug("test") }, false},
		{"debug handler logs debug", slog.LevelDebug, func(l *slog.Logger) { l.Debug("test") }, true},
		{"error handler logs error", slog.LevelError, func(l *slog.Logger) { l.Error("test") }, true},
		{"error handler filters info", slog.LevelError, func(l *slog.Logger) { l.Info("test") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(NewCLIHandler(&buf, tt.handlerLevel))

			tt.logFunc(logger)

			assert.Equal(t, tt.shouldLog, buf.Len() > 0)
		})
	}
}

func TestCLIHandler_IncludesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCLIHandler(&buf, slog.LevelInfo))

	logger.Info("score submitted", "address", "0xabc", "tx", "0x123")

	output := buf.String()
	assert.Contains(t, output, "score submitted")
	assert.Contains(t, output, "address=0xabc")
	assert.Contains(t, output, "tx=0x123")
}

func TestCLIHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := NewCLIHandler(&buf, slog.LevelInfo)

	logger := slog.New(handler.WithAttrs([]slog.Attr{slog.String("network", "flowTestnet")}))
	logger.Info("dialed", "chain_id", 545)

	output := buf.String()
	assert.Contains(t, output, "network=flowTestnet chain_id=545")
}

func TestCLIHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	handler := NewCLIHandler(&buf, slog.LevelInfo)

	grouped := handler.WithGroup("deploy")
	require.NotEqual(t, handler, grouped)

	slog.New(grouped).WithGroup("journal").Info("test message")

	output := buf.String()
	assert.Contains(t, output, "[deploy.journal]")
	assert.Contains(t, output, "test message")
}

func TestCLIHandler_WithGroup_Empty(t *testing.T) {
	var buf bytes.Buffer
	handler := NewCLIHandler(&buf, slog.LevelInfo)

	slog.New(handler.WithGroup("")).Info("no prefix")

	output := buf.String()
	assert.NotContains(t, output, "] no prefix")
	assert.Contains(t, output, "no prefix")
}

func TestSetDefault(t *testing.T) {
	originalLogger := slog.Default()
	defer slog.SetDefault(originalLogger)

	SetDefault(FormatCLI, "debug")

	defaultLogger := slog.Default()
	require.NotNil(t, defaultLogger)
	assert.True(t, defaultLogger.Enabled(t.Context(), slog.LevelDebug))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"  debug  ", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLogLevel(tt.input))
		})
	}
}

func TestCLIHandler_PrefixInOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCLIHandler(&buf, slog.LevelInfo)).WithGroup("server")

	logger.Info("hello")

	output := buf.String()
	assert.True(t, strings.Contains(output, "[server]"))
	assert.True(t, strings.Contains(output, "hello"))
}
