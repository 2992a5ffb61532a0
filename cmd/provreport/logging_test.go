package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogHandler_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newLogHandler(&buf, "info", "json"))

	logger.Info("started", "sink", "elastic")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "started", record["msg"])
	assert.Equal(t, "elastic", record["sink"])
}

func TestNewLogHandler_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newLogHandler(&buf, "info", "text"))

	logger.Info("started")

	assert.Error(t, json.Unmarshal(buf.Bytes(), &map[string]any{}))
	assert.Contains(t, buf.String(), "msg=started")
}

func TestNewLogHandler_UnknownFormatDefaultsToJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newLogHandler(&buf, "info", "yaml"))

	logger.Info("started")

	require.NoError(t, json.Unmarshal(buf.Bytes(), &map[string]any{}))
}

func TestNewLogHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newLogHandler(&buf, "warn", "json"))

	logger.Info("suppressed")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestNewLogHandler_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newLogHandler(&buf, "verbose", "json"))

	logger.Debug("suppressed")
	assert.Zero(t, buf.Len())

	logger.Info("kept")
	assert.NotZero(t, buf.Len())
}
