// Package config loads client configuration and sets up logging.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// Backend endpoints
	APIURL       string
	WSURL        string
	SessionWSURL string // empty selects the polling fallback for session rooms

	// Identity
	Token  string
	UserID string

	// Session room polling
	PollInterval time.Duration

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig mirrors the optional YAML config file. Every field can be
// overridden by environment variables.
type fileConfig struct {
	APIURL       string `yaml:"api_url"`
	WSURL        string `yaml:"ws_url"`
	SessionWSURL string `yaml:"session_ws_url"`
	Token        string `yaml:"token"`
	UserID       string `yaml:"user_id"`
	LogFile      string `yaml:"log_file"`
	LogLevel     string `yaml:"log_level"`
}

// Load reads configuration from, in increasing precedence: the YAML file at
// ~/.config/chatkit/config.yaml, a .env file in the working directory, and
// the process environment.
func Load() Config {
	// Hydrate the environment from .env if present; a missing file is fine.
	_ = godotenv.Load()

	fc := loadFile()

	return Config{
		APIURL:       getEnv("CHATKIT_API_URL", fallback(fc.APIURL, "http://localhost:8080/api")),
		WSURL:        getEnv("CHATKIT_WS_URL", fallback(fc.WSURL, "ws://localhost:8080/ws")),
		SessionWSURL: getEnv("CHATKIT_SESSION_WS_URL", fc.SessionWSURL),

		Token:  getEnv("CHATKIT_TOKEN", fc.Token),
		UserID: getEnv("CHATKIT_USER_ID", fc.UserID),

		PollInterval: 4 * time.Second,

		LogFile:  getEnv("CHATKIT_LOG_FILE", fallback(fc.LogFile, filepath.Join(os.TempDir(), "chatkit.log"))),
		LogLevel: ParseLogLevel(getEnv("CHATKIT_LOG_LEVEL", fallback(fc.LogLevel, "INFO"))),
	}
}

// loadFile reads the optional YAML config file. Errors are swallowed: a
// missing or malformed file simply yields defaults.
func loadFile() fileConfig {
	var fc fileConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return fc
	}

	data, err := os.ReadFile(filepath.Join(home, ".config", "chatkit", "config.yaml"))
	if err != nil {
		return fc
	}

	_ = yaml.Unmarshal(data, &fc)
	return fc
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func fallback(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// ParseLogLevel maps a level name to a slog.Level, defaulting to Info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
