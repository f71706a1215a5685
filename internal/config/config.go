// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	GatewayURL     string        // Base URL of the document gateway (required)
	AuthToken      string        // Bearer token for the authenticated session
	WorkDir        string        // Directory for merged record artifacts
	MaxFileSize    int64         // Per-file upload ceiling in bytes
	MaxAttempts    int           // Upload attempts per document before the batch fails
	PollInterval   time.Duration // Fixed interval between processing-status polls
	PollCeiling    time.Duration // Maximum total wait for processing to settle
	RequestTimeout time.Duration // Gateway request timeout
	MetricsAddr    string        // Optional: listen address for the Prometheus endpoint
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		GatewayURL:     getEnv("NDR_GATEWAY_URL", ""),
		AuthToken:      getEnv("NDR_AUTH_TOKEN", ""),
		WorkDir:        getEnv("NDR_WORK_DIR", os.TempDir()),
		MaxFileSize:    getEnvInt64("NDR_MAX_FILE_SIZE", 5<<30), // 5GB default
		MaxAttempts:    getEnvInt("NDR_MAX_ATTEMPTS", 3),
		PollInterval:   getEnvSeconds("NDR_POLL_INTERVAL_SECONDS", 5),
		PollCeiling:    getEnvSeconds("NDR_POLL_CEILING_SECONDS", 120),
		RequestTimeout: getEnvSeconds("NDR_REQUEST_TIMEOUT_SECONDS", 300),
		MetricsAddr:    getEnv("NDR_METRICS_ADDR", ""), // Optional
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate ensures configuration values are sensible
func (c *Config) validate() error {
	if c.GatewayURL == "" {
		return fmt.Errorf("NDR_GATEWAY_URL cannot be empty")
	}

	u, err := url.Parse(c.GatewayURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("NDR_GATEWAY_URL must be a valid absolute URL, got %q", c.GatewayURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("NDR_GATEWAY_URL must use http or https, got %q", u.Scheme)
	}

	if c.WorkDir == "" {
		return fmt.Errorf("NDR_WORK_DIR cannot be empty")
	}

	if c.MaxFileSize <= 0 {
		return fmt.Errorf("NDR_MAX_FILE_SIZE must be positive, got %d", c.MaxFileSize)
	}

	if c.MaxAttempts <= 0 {
		return fmt.Errorf("NDR_MAX_ATTEMPTS must be positive, got %d", c.MaxAttempts)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("NDR_POLL_INTERVAL_SECONDS must be positive, got %s", c.PollInterval)
	}

	if c.PollCeiling <= 0 {
		return fmt.Errorf("NDR_POLL_CEILING_SECONDS must be positive, got %s", c.PollCeiling)
	}

	if c.PollInterval > c.PollCeiling {
		return fmt.Errorf("NDR_POLL_INTERVAL_SECONDS (%s) cannot exceed NDR_POLL_CEILING_SECONDS (%s)", c.PollInterval, c.PollCeiling)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("NDR_REQUEST_TIMEOUT_SECONDS must be positive, got %s", c.RequestTimeout)
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvInt64 retrieves an int64 environment variable or returns a default value
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvSeconds retrieves a duration expressed in whole seconds
func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}
