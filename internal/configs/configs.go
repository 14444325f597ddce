/*
Package configs is responsible for loading and parsing the client's configuration settings.

Values come from the process environment, after an optional .env file in the working
directory has been loaded. They cover the REST and socket endpoints, the chat timing
constants, the session persistence backend, Google OAuth credentials and the local
diagnostics listener.
*/
package configs

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends accepted by STORE_BACKEND.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// AppConfig contains all configuration parameters required for the client to run.
type AppConfig struct {
	// General Settings
	Environment string `mapstructure:"ENVIRONMENT"`

	// Backend Endpoints
	APIURL         string        `mapstructure:"API_URL"`
	SocketURL      string        `mapstructure:"SOCKET_URL"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	// Chat Timing
	ReconnectDelay time.Duration `mapstructure:"RECONNECT_DELAY"`
	TypingTimeout  time.Duration `mapstructure:"TYPING_TIMEOUT"`

	// Session Persistence
	StoreBackend   string `mapstructure:"STORE_BACKEND"`
	StorePath      string `mapstructure:"STORE_PATH"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	StoreNamespace string `mapstructure:"STORE_NAMESPACE"`

	// Google OAuth
	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `mapstructure:"GOOGLE_REDIRECT_URL"`

	// Diagnostics Listener
	DebugAddr         string `mapstructure:"DEBUG_ADDR"`
	AllowedOriginsRaw string `mapstructure:"ALLOWED_ORIGINS"`
	AllowedOrigins    []string
}

// IsDevelopment reports whether the client runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// GoogleEnabled reports whether Google login is configured.
func (c *AppConfig) GoogleEnabled() bool {
	return c.GoogleClientID != ""
}

// LoadConfig loads .env (if present) and then reads the configuration from the environment.
// Environment variables override .env values.
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("API_URL", "http://localhost:5000/api")
	v.SetDefault("SOCKET_URL", "")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("RECONNECT_DELAY", "5s")
	v.SetDefault("TYPING_TIMEOUT", "3s")
	v.SetDefault("STORE_BACKEND", StoreFile)
	v.SetDefault("STORE_PATH", defaultStorePath())
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("STORE_NAMESPACE", "gymbro")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URL", "http://localhost:5173/oauth/callback")
	v.SetDefault("DEBUG_ADDR", "")
	v.SetDefault("ALLOWED_ORIGINS", "")

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// finalize validates the decoded values and fills in derived settings.
func (c *AppConfig) finalize() error {
	// --- Backend Endpoints ---
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	apiURL, err := url.Parse(c.APIURL)
	if err != nil || apiURL.Host == "" || (apiURL.Scheme != "http" && apiURL.Scheme != "https") {
		return fmt.Errorf("invalid API_URL %q: must be an absolute http(s) URL", c.APIURL)
	}

	if c.SocketURL == "" {
		c.SocketURL = DeriveSocketURL(apiURL)
	}
	socketURL, err := url.Parse(c.SocketURL)
	if err != nil || socketURL.Host == "" || (socketURL.Scheme != "ws" && socketURL.Scheme != "wss") {
		return fmt.Errorf("invalid SOCKET_URL %q: must be an absolute ws(s) URL", c.SocketURL)
	}

	// --- Timing ---
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("RECONNECT_DELAY must be positive, got %s", c.ReconnectDelay)
	}
	if c.TypingTimeout <= 0 {
		return fmt.Errorf("TYPING_TIMEOUT must be positive, got %s", c.TypingTimeout)
	}

	// --- Session Persistence ---
	switch c.StoreBackend {
	case StoreFile:
		if c.StorePath == "" {
			return fmt.Errorf("STORE_PATH is required when STORE_BACKEND=%s", StoreFile)
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_BACKEND=%s", StoreRedis)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: expected %s, %s or %s", c.StoreBackend, StoreFile, StoreRedis, StoreMemory)
	}

	// --- Diagnostics Listener ---
	c.AllowedOrigins = []string{}
	for _, origin := range strings.Split(c.AllowedOriginsRaw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			c.AllowedOrigins = append(c.AllowedOrigins, trimmed)
		}
	}

	return nil
}

// DeriveSocketURL maps the REST base URL to the socket endpoint on the same host:
// http becomes ws, https becomes wss, and the path becomes /socket.
func DeriveSocketURL(apiURL *url.URL) string {
	scheme := "ws"
	if apiURL.Scheme == "https" {
		scheme = "wss"
	}

	u := url.URL{Scheme: scheme, Host: apiURL.Host, Path: "/socket"}
	return u.String()
}

// defaultStorePath returns $HOME/.gymbro/state.json, or a relative path when HOME is unknown.
func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".gymbro", "state.json")
	}
	return filepath.Join(home, ".gymbro", "state.json")
}
