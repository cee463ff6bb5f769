// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration, for both the client host and
// the dev server.
type Config struct {
	// Client side.
	ServerURL  string // WebSocket endpoint of the assistant service
	APIBaseURL string // base URL of the REST session service
	ProcessID  string // diagram/process the conversation is about

	Reconnect ReconnectConfig
	// TypingQuiet is how long local typing may idle before a stopped
	// signal is forced.
	TypingQuiet time.Duration

	// Server side.
	Port          string
	DBPath        string
	AllowedOrigin string
}

// ReconnectConfig controls the transport's retry behavior.
type ReconnectConfig struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ServerURL:   getEnv("FLOWMATE_WS_URL", "ws://localhost:8090/ws"),
		APIBaseURL:  getEnv("FLOWMATE_API_URL", "http://localhost:8090"),
		ProcessID:   getEnv("FLOWMATE_PROCESS_ID", "demo-process"),
		TypingQuiet: getEnvDuration("FLOWMATE_TYPING_QUIET", 2*time.Second),
		Reconnect: ReconnectConfig{
			Base:        getEnvDuration("FLOWMATE_RECONNECT_BASE", time.Second),
			Max:         getEnvDuration("FLOWMATE_RECONNECT_MAX", 30*time.Second),
			MaxAttempts: getEnvInt("FLOWMATE_RECONNECT_ATTEMPTS", 10),
		},
		Port:          getEnv("PORT", "8090"),
		DBPath:        getEnv("DB_PATH", "./data/flowmate.db"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "*"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("FLOWMATE_WS_URL cannot be empty")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("FLOWMATE_API_URL cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Reconnect.Base <= 0 || c.Reconnect.Max < c.Reconnect.Base {
		return fmt.Errorf("reconnect backoff must satisfy 0 < base <= max")
	}
	if c.Reconnect.MaxAttempts <= 0 {
		return fmt.Errorf("FLOWMATE_RECONNECT_ATTEMPTS must be > 0")
	}
	if c.TypingQuiet <= 0 {
		return fmt.Errorf("FLOWMATE_TYPING_QUIET must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
