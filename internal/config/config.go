// Package config provides configuration management for beechat.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Config holds all configuration for the beechat bridge server.
type Config struct {
	// ServerAddr is the address the HTTP server listens on (e.g., ":8000").
	ServerAddr string

	// DataDir is the directory for persistent data (SQLite DB, etc.).
	DataDir string

	// DatabasePath is the full path to the SQLite database file.
	DatabasePath string

	// AgentURL is the WebSocket URL of the external AI agent service.
	AgentURL string

	// ReconnectDelay is the fixed wait between agent reconnect attempts.
	ReconnectDelay time.Duration

	// DebounceWindow bounds the outbound editor-state snapshot rate.
	DebounceWindow time.Duration

	// Beefree SDK credentials used by the token proxy.
	BeefreeClientID     string
	BeefreeClientSecret string

	// BeefreeUID identifies this user to the Beefree SDK. Generated when
	// not configured.
	BeefreeUID string

	// BeefreeAuthURL is the loginV2 endpoint the token proxy calls.
	BeefreeAuthURL string
}

// Load creates a Config from environment variables with sensible defaults.
func Load() (*Config, error) {
	dataDir := envOr("BEECHAT_DATA_DIR", defaultDataDir())
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	cfg := &Config{
		ServerAddr:          envOr("BEECHAT_ADDR", ":8000"),
		DataDir:             dataDir,
		DatabasePath:        filepath.Join(dataDir, "beechat.db"),
		AgentURL:            envOr("BEECHAT_AGENT_URL", "ws://localhost:8800/ws"),
		ReconnectDelay:      envOrDuration("BEECHAT_RECONNECT_DELAY", 3*time.Second),
		DebounceWindow:      envOrDuration("BEECHAT_DEBOUNCE_WINDOW", 500*time.Millisecond),
		BeefreeClientID:     os.Getenv("BEEFREE_CLIENT_ID"),
		BeefreeClientSecret: os.Getenv("BEEFREE_CLIENT_SECRET"),
		BeefreeUID:          envOr("BEEFREE_UID", "user_"+uuid.NewString()[:8]),
		BeefreeAuthURL:      envOr("BEEFREE_AUTH_URL", "https://bee-auth.getbee.io/loginV2"),
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.AgentURL == "" {
		return fmt.Errorf("BEECHAT_AGENT_URL is required")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("BEECHAT_RECONNECT_DELAY must be positive")
	}
	if c.DebounceWindow <= 0 {
		return fmt.Errorf("BEECHAT_DEBOUNCE_WINDOW must be positive")
	}
	return nil
}

// EditorEnabled returns true if the Beefree token proxy is configured.
func (c *Config) EditorEnabled() bool {
	return c.BeefreeClientID != "" && c.BeefreeClientSecret != ""
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			// Bare numbers are read as milliseconds.
			return time.Duration(n) * time.Millisecond
		}
	}
	return fallback
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".beechat"
	}
	return filepath.Join(home, ".beechat")
}
