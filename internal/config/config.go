// Package config loads and validates the triagemail runtime
// configuration from the environment, with optional .env file support
// for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for optional settings.
const (
	DefaultRedirectURI = "http://localhost:3000/auth/callback"
	DefaultServerAddr  = ":8000"
	DefaultMetricsAddr = ":9090"
	DefaultFeedTimeout = 15 * time.Second
	DefaultLogLevel    = "info"
)

// ConfigError indicates missing or malformed configuration. It is fatal
// at startup: the server refuses to run with a broken OAuth client
// registration rather than failing on the first login.
type ConfigError struct {
	Key    string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// Microsoft holds the OAuth2 client registration for the Microsoft
// identity platform.
type Microsoft struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Feed holds the analyzed-email feed settings.
type Feed struct {
	// BaseURL is the root of the external analysis backend that serves
	// pre-analyzed email records.
	BaseURL string

	// Timeout bounds each feed request.
	Timeout time.Duration

	// Limit is the maximum number of records fetched per sync.
	Limit int
}

// Config is the full runtime configuration.
type Config struct {
	Microsoft Microsoft
	Feed      Feed

	ServerAddr string

	MetricsEnabled bool
	MetricsAddr    string

	LogLevel string
	LogJSON  bool
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present; real environment
// variables win over .env entries.
func Load() (*Config, error) {
	// godotenv.Load never overrides variables already set in the
	// environment, which is the precedence we want.
	_ = godotenv.Load()

	cfg := &Config{
		Microsoft: Microsoft{
			TenantID:     os.Getenv("MICROSOFT_TENANT_ID"),
			ClientID:     os.Getenv("MICROSOFT_CLIENT_ID"),
			ClientSecret: os.Getenv("MICROSOFT_CLIENT_SECRET"),
			RedirectURI:  envOr("MICROSOFT_REDIRECT_URI", DefaultRedirectURI),
		},
		Feed: Feed{
			BaseURL: os.Getenv("FEED_URL"),
			Timeout: envDuration("FEED_TIMEOUT", DefaultFeedTimeout),
			Limit:   envInt("FEED_LIMIT", 50),
		},
		ServerAddr:     envOr("SERVER_ADDR", DefaultServerAddr),
		MetricsEnabled: envBool("METRICS_ENABLED", true),
		MetricsAddr:    envOr("METRICS_ADDR", DefaultMetricsAddr),
		LogLevel:       envOr("LOG_LEVEL", DefaultLogLevel),
		LogJSON:        envBool("LOG_JSON", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every required setting is present and
// well-formed.
func (c *Config) Validate() error {
	if c.Microsoft.TenantID == "" {
		return &ConfigError{Key: "MICROSOFT_TENANT_ID", Reason: "required"}
	}
	if c.Microsoft.ClientID == "" {
		return &ConfigError{Key: "MICROSOFT_CLIENT_ID", Reason: "required"}
	}
	if c.Microsoft.ClientSecret == "" {
		return &ConfigError{Key: "MICROSOFT_CLIENT_SECRET", Reason: "required"}
	}
	if c.Microsoft.RedirectURI == "" {
		return &ConfigError{Key: "MICROSOFT_REDIRECT_URI", Reason: "required"}
	}
	if c.Feed.BaseURL == "" {
		return &ConfigError{Key: "FEED_URL", Reason: "required"}
	}
	if c.Feed.Limit <= 0 {
		return &ConfigError{Key: "FEED_LIMIT", Reason: "must be a positive integer"}
	}
	if c.Feed.Timeout <= 0 {
		return &ConfigError{Key: "FEED_TIMEOUT", Reason: "must be a positive duration"}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
