package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/config"
)

func fileLoggingConfig(t *testing.T, level string) config.LoggingConfig {
	t.Helper()
	return config.LoggingConfig{
		Level:      level,
		Format:     "json",
		Output:     "file",
		FilePath:   filepath.Join(t.TempDir(), "logs", "test.log"),
		MaxSizeMB:  1,
		MaxBackups: 1,
	}
}

func readLastEntry(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestInitializeLogger(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	cfg := fileLoggingConfig(t, "info")

	logger, err := InitializeLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger.Info("test message", "key", "value")
	require.NoError(t, CloseLogFile())

	entry := readLastEntry(t, cfg.FilePath)
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "INFO", entry["level"])

	// Later calls return the first logger.
	again, err := InitializeLogger(config.LoggingConfig{Level: "debug", Output: "console"})
	require.NoError(t, err)
	assert.Same(t, logger, again)
	assert.Same(t, logger, GetLogger())
}

func TestContextIDsAreInjected(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	cfg := fileLoggingConfig(t, "debug")
	logger, err := InitializeLogger(cfg)
	require.NoError(t, err)

	ctx := WithTraceID(context.Background(), "trace-123")
	ctx = WithSessionID(ctx, "session-abc")
	logger.InfoContext(ctx, "with ids")
	require.NoError(t, CloseLogFile())

	entry := readLastEntry(t, cfg.FilePath)
	assert.Equal(t, "trace-123", entry["trace_id"])
	assert.Equal(t, "session-abc", entry["session_id"])
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level      string
		debugShown bool
		infoShown  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"bogus", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, tt.level)

			logger.Debug("debug line")
			logger.Info("info line")

			assert.Equal(t, tt.debugShown, strings.Contains(buf.String(), "debug line"))
			assert.Equal(t, tt.infoShown, strings.Contains(buf.String(), "info line"))
		})
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetSessionID(ctx))

	ctx = EnsureTraceID(ctx)
	traceID := GetTraceID(ctx)
	assert.Len(t, traceID, 36)
	assert.Equal(t, traceID, GetTraceID(EnsureTraceID(ctx)), "existing trace id is kept")

	var buf bytes.Buffer
	base := NewLogger(&buf, "info")
	WithComponent(LoggerWithContext(WithSessionID(ctx, "s-1"), base), "loader").Info("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "loader", entry["component"])
	assert.Equal(t, "s-1", entry["session_id"])
	assert.Equal(t, traceID, entry["trace_id"])
}
