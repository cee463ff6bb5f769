package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerURL != "ws://localhost:8090/ws" {
		t.Errorf("Unexpected default ServerURL %q", cfg.ServerURL)
	}
	if cfg.TypingQuiet != 2*time.Second {
		t.Errorf("Unexpected default TypingQuiet %v", cfg.TypingQuiet)
	}
	if cfg.Reconnect.Base != time.Second || cfg.Reconnect.Max != 30*time.Second {
		t.Errorf("Unexpected default backoff %+v", cfg.Reconnect)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FLOWMATE_WS_URL", "ws://example.test/ws")
	t.Setenv("FLOWMATE_RECONNECT_BASE", "250ms")
	t.Setenv("FLOWMATE_RECONNECT_ATTEMPTS", "5")
	t.Setenv("PORT", "9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerURL != "ws://example.test/ws" {
		t.Errorf("Expected env ServerURL, got %q", cfg.ServerURL)
	}
	if cfg.Reconnect.Base != 250*time.Millisecond {
		t.Errorf("Expected 250ms base, got %v", cfg.Reconnect.Base)
	}
	if cfg.Reconnect.MaxAttempts != 5 {
		t.Errorf("Expected 5 attempts, got %d", cfg.Reconnect.MaxAttempts)
	}
	if cfg.Port != "9999" {
		t.Errorf("Expected port 9999, got %q", cfg.Port)
	}
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("FLOWMATE_RECONNECT_BASE", "soon")
	t.Setenv("FLOWMATE_RECONNECT_ATTEMPTS", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Reconnect.Base != time.Second {
		t.Errorf("Expected fallback base, got %v", cfg.Reconnect.Base)
	}
	if cfg.Reconnect.MaxAttempts != 10 {
		t.Errorf("Expected fallback attempts, got %d", cfg.Reconnect.MaxAttempts)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty ws url", func(c *Config) { c.ServerURL = "" }},
		{"empty api url", func(c *Config) { c.APIBaseURL = "" }},
		{"empty port", func(c *Config) { c.Port = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"max below base", func(c *Config) { c.Reconnect.Max = c.Reconnect.Base / 2 }},
		{"zero attempts", func(c *Config) { c.Reconnect.MaxAttempts = 0 }},
		{"zero typing quiet", func(c *Config) { c.TypingQuiet = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
