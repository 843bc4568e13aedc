package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLogLevel(tt.input))
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHATKIT_API_URL", "")
	t.Setenv("CHATKIT_WS_URL", "")
	t.Setenv("CHATKIT_SESSION_WS_URL", "")
	t.Setenv("CHATKIT_LOG_LEVEL", "")
	t.Setenv("HOME", t.TempDir()) // no config file

	cfg := Load()

	assert.Equal(t, "http://localhost:8080/api", cfg.APIURL)
	assert.Equal(t, "ws://localhost:8080/ws", cfg.WSURL)
	assert.Empty(t, cfg.SessionWSURL)
	assert.Equal(t, 4*time.Second, cfg.PollInterval)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CHATKIT_API_URL", "https://api.example.com")
	t.Setenv("CHATKIT_WS_URL", "wss://ws.example.com")
	t.Setenv("CHATKIT_SESSION_WS_URL", "wss://ws.example.com/sessions")
	t.Setenv("CHATKIT_TOKEN", "tok")
	t.Setenv("CHATKIT_USER_ID", "u1")
	t.Setenv("CHATKIT_LOG_LEVEL", "DEBUG")

	cfg := Load()

	assert.Equal(t, "https://api.example.com", cfg.APIURL)
	assert.Equal(t, "wss://ws.example.com", cfg.WSURL)
	assert.Equal(t, "wss://ws.example.com/sessions", cfg.SessionWSURL)
	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, "u1", cfg.UserID)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestSetupLoggerWithWritersFansOut(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("connection established", "attempt", 1)

	assert.Contains(t, stderr.String(), "connection established")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "connection established", entry["msg"])
	assert.EqualValues(t, 1, entry["attempt"])
}

func TestSetupLoggerWithWritersRespectsLevel(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelWarn)

	logger.Debug("noise")
	logger.Info("still noise")
	logger.Warn("kept")

	assert.NotContains(t, stderr.String(), "noise")
	assert.Equal(t, 1, strings.Count(file.String(), "\n"))
}
