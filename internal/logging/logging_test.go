// ABOUTME: Tests for logger construction
// ABOUTME: Level parsing, console sink and rotated file sink
package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Console: &buf})
	require.NoError(t, err)

	logger.Debug("Exchange complete", zap.Int64("sent", 1000))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "Exchange complete")
	assert.Contains(t, out, "1000")
}

func TestNewLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Console: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "clocksync.log")

	logger, err := New(Config{File: path})
	require.NoError(t, err)

	logger.Info("Clock client configured", zap.Float64("timeoutDelay", 102))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "Clock client configured", entry["msg"])
	assert.Equal(t, 102.0, entry["timeoutDelay"])
}

func TestNewWithoutSinks(t *testing.T) {
	logger, err := New(Config{})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
