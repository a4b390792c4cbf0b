// Package config contains everything related to configuration
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Mode selects which backend transport is used.
type Mode int

const (
	// ModeLocal reads the backend's SQLite database directly.
	ModeLocal Mode = iota
	// ModeRemote talks to a backend service over HTTP and WebSocket.
	ModeRemote
)

// String returns the display name of the mode.
func (m Mode) String() string {
	if m == ModeRemote {
		return "remote"
	}
	return "local"
}

// Config holds the application configuration.
type Config struct {
	BackendURL     string
	StreamURL      string
	StreamClientID string
	DatabasePath   string
	WatchPaths     []string
	ExportDir      string

	StreamReconnectDelay    time.Duration
	StreamMaxReconnectDelay time.Duration
	StreamMaxReconnects     int
	HTTPTimeout             time.Duration

	CostAlertUSD float64

	LogFile  string
	LogLevel string
}

// Default values
const (
	defaultReconnectDelay    = time.Second
	defaultMaxReconnectDelay = 30 * time.Second
	defaultMaxReconnects     = 10
	defaultLogLevel          = "info"
)

// Mode reports the transport selected by the configuration.
func (c *Config) Mode() Mode {
	if c.BackendURL != "" {
		return ModeRemote
	}
	return ModeLocal
}

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		BackendURL:              strings.TrimRight(getEnvString("BACKEND_URL", ""), "/"),
		StreamURL:               getEnvString("STREAM_URL", ""),
		StreamClientID:          getEnvString("STREAM_CLIENT_ID", ""),
		DatabasePath:            getEnvString("DATABASE_PATH", getDefaultDatabasePath()),
		ExportDir:               getEnvString("EXPORT_DIR", getDefaultExportDir()),
		WatchPaths:              getEnvList("WATCH_PATHS"),
		StreamReconnectDelay:    getEnvDuration("STREAM_RECONNECT_DELAY", defaultReconnectDelay),
		StreamMaxReconnectDelay: getEnvDuration("STREAM_MAX_RECONNECT_DELAY", defaultMaxReconnectDelay),
		StreamMaxReconnects:     getEnvInt("STREAM_MAX_RECONNECTS", defaultMaxReconnects),
		HTTPTimeout:             getEnvDuration("HTTP_TIMEOUT", 0),
		CostAlertUSD:            getEnvFloat("COST_ALERT_USD", 0),
		LogFile:                 getEnvString("LOG_FILE", ""),
		LogLevel:                getEnvString("LOG_LEVEL", defaultLogLevel),
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize validates the configuration and fills in derived values. It is
// called by Load and again after command-line overrides are applied.
func (c *Config) Finalize() error {
	if c.StreamMaxReconnectDelay < c.StreamReconnectDelay {
		c.StreamMaxReconnectDelay = c.StreamReconnectDelay
	}

	if c.Mode() == ModeRemote {
		u, err := url.Parse(c.BackendURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("BACKEND_URL must be an http(s) URL, got %q", c.BackendURL)
		}
		if c.StreamURL == "" {
			c.StreamURL = deriveStreamURL(u)
		}
		return nil
	}

	if len(c.WatchPaths) == 0 {
		c.WatchPaths = []string{filepath.Dir(c.DatabasePath)}
	}

	// Ensure database directory exists
	return ensureDir(filepath.Dir(c.DatabasePath))
}

// deriveStreamURL maps the backend URL onto its WebSocket endpoint.
func deriveStreamURL(backend *url.URL) string {
	u := *backend
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = ""
	return u.String()
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "token-monitor", ".env"),
			filepath.Join(home, ".token-monitor", ".env"),
		)
	}

	// Parent directories (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		parent := filepath.Dir(cwd)
		paths = append(paths, filepath.Join(parent, ".env"))
	}

	return paths
}

// getDefaultDatabasePath returns the default path for the SQLite database.
func getDefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "monitor.db"
	}
	return filepath.Join(home, ".config", "token-monitor", "monitor.db")
}

// getDefaultExportDir returns the default directory for usage exports.
func getDefaultExportDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "exports"
	}
	return filepath.Join(home, ".config", "token-monitor", "exports")
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
